package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/swarmd/pkg/log"
	"github.com/cuemby/swarmd/pkg/metrics"
	"github.com/cuemby/swarmd/pkg/provider"
	"github.com/cuemby/swarmd/pkg/swarmerr"
	"github.com/cuemby/swarmd/pkg/types"
	"github.com/rs/zerolog"
)

// InstanceSource is the subset of pkg/registry.Registry the monitor needs.
type InstanceSource interface {
	Get(id string) *types.Instance
	List(filter *types.Filter) ([]*types.Instance, error)
}

// DriverResolver looks up the live driver for a provider kind.
type DriverResolver func(providerKind string) (provider.Driver, bool)

// Config configures a Monitor.
type Config struct {
	StateDir            string
	CheckInterval       time.Duration
	CheckTimeout        time.Duration
	HistorySize         int
	ProbeType           CheckType
	ProbeCommand        []string
	ProbePath           string
	AutoRecover         bool
	MaxRecoveryAttempts int
}

func (c *Config) applyDefaults() {
	if c.CheckInterval == 0 {
		c.CheckInterval = 30 * time.Second
	}
	if c.CheckTimeout == 0 {
		c.CheckTimeout = 10 * time.Second
	}
	if c.HistorySize == 0 {
		c.HistorySize = 20
	}
	if c.ProbeType == "" {
		c.ProbeType = CheckTypeExec
	}
	if len(c.ProbeCommand) == 0 {
		c.ProbeCommand = []string{"echo", "swarmd-probe-ok"}
	}
	if c.ProbePath == "" {
		c.ProbePath = "/health"
	}
	if c.MaxRecoveryAttempts == 0 {
		c.MaxRecoveryAttempts = 3
	}
}

// instanceMonitor holds the mutable health state tracked for one instance.
type instanceMonitor struct {
	instanceID       string
	buffer           *ringBuffer
	status           types.HealthStatus
	lastChecked      time.Time
	lastDetails      types.HealthDetails
	recoveryAttempts int
}

// Monitor runs periodic liveness checks over every Running instance known
// to the registry, generalized from a per-task health loop into a
// per-instance one: syncHealthChecks reconciles the set of active check
// loops against the registry every CheckInterval, and each instance's
// checks run on their own goroutine so a slow check on one instance never
// delays another's.
type Monitor struct {
	cfg      Config
	registry InstanceSource
	drivers  DriverResolver
	store    *healthStore

	mu        sync.Mutex
	monitors  map[string]*instanceMonitor
	cancelFns map[string]context.CancelFunc
	stopCh    chan struct{}

	log zerolog.Logger
}

func New(cfg Config, registry InstanceSource, drivers DriverResolver) *Monitor {
	cfg.applyDefaults()
	return &Monitor{
		cfg:       cfg,
		registry:  registry,
		drivers:   drivers,
		store:     newHealthStore(cfg.StateDir),
		monitors:  make(map[string]*instanceMonitor),
		cancelFns: make(map[string]context.CancelFunc),
		stopCh:    make(chan struct{}),
		log:       log.WithComponent("health"),
	}
}

// Start launches the monitor loop. Safe to call once.
func (m *Monitor) Start() error {
	if err := m.store.ensureDir(); err != nil {
		return err
	}
	go m.monitorLoop()
	return nil
}

// Stop halts the monitor loop. In-flight checks are allowed to complete;
// it does not wait for them.
func (m *Monitor) Stop() {
	close(m.stopCh)
}

func (m *Monitor) monitorLoop() {
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	m.syncHealthChecks()
	for {
		select {
		case <-ticker.C:
			m.syncHealthChecks()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Monitor) syncHealthChecks() {
	running, err := m.registry.List(&types.Filter{Status: []types.InstanceStatus{types.InstanceStatusRunning}})
	if err != nil {
		m.log.Warn().Err(err).Msg("failed to list running instances for health sync")
		return
	}

	current := make(map[string]struct{}, len(running))
	for _, inst := range running {
		current[inst.ID] = struct{}{}
	}

	m.mu.Lock()
	for id, cancel := range m.cancelFns {
		if _, ok := current[id]; !ok {
			cancel()
			delete(m.cancelFns, id)
			delete(m.monitors, id)
		}
	}
	toStart := make([]string, 0)
	for id := range current {
		if _, exists := m.monitors[id]; !exists {
			toStart = append(toStart, id)
		}
	}
	m.mu.Unlock()

	for _, id := range toStart {
		m.startInstanceMonitor(id)
	}
}

func (m *Monitor) startInstanceMonitor(instanceID string) {
	im := &instanceMonitor{
		instanceID: instanceID,
		buffer:     newRingBuffer(m.cfg.HistorySize),
		status:     types.HealthUnknown,
	}
	if existing, ok := m.store.load(instanceID); ok {
		im.buffer.loadOrdered(existing.History)
		im.status = existing.Status
		im.lastChecked = existing.LastChecked
		im.lastDetails = existing.Details
		im.recoveryAttempts = existing.RecoveryAttempts
	}

	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	m.monitors[instanceID] = im
	m.cancelFns[instanceID] = cancel
	m.mu.Unlock()

	log.WithInstanceID(instanceID).Debug().Msg("starting health check loop")
	go m.healthCheckLoop(ctx, im)
}

func (m *Monitor) healthCheckLoop(ctx context.Context, im *instanceMonitor) {
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	m.runHealthCheck(ctx, im)
	for {
		select {
		case <-ticker.C:
			m.runHealthCheck(ctx, im)
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		}
	}
}

func (m *Monitor) runHealthCheck(ctx context.Context, im *instanceMonitor) {
	inst := m.registry.Get(im.instanceID)
	if inst == nil {
		// Next sync pass will stop this monitor; nothing to record.
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, m.cfg.CheckTimeout)
	defer cancel()

	timer := metrics.NewTimer()
	result := m.probe(checkCtx, inst)
	timer.ObserveDurationVec(metrics.HealthCheckDuration, inst.ProviderKind)

	outcome := "healthy"
	if !result.Healthy {
		outcome = "unhealthy"
	}
	metrics.HealthChecksTotal.WithLabelValues(outcome).Inc()

	m.record(inst, im, result)

	if !result.Healthy && m.cfg.AutoRecover {
		m.recover(context.Background(), inst, im)
	}
}

// probe implements the spec's per-instance check sequence: refresh state
// from the driver, then run the probe command iff the driver reports the
// instance Running.
func (m *Monitor) probe(ctx context.Context, inst *types.Instance) Result {
	start := time.Now()

	driver, ok := m.drivers(inst.ProviderKind)
	if !ok {
		return Result{Healthy: false, Message: "provider driver unavailable", CheckedAt: start, Duration: time.Since(start)}
	}

	cur, err := driver.Get(ctx, inst.ProviderInstanceID)
	if err != nil {
		return Result{Healthy: false, Message: fmt.Sprintf("get failed: %v", err), CheckedAt: start, Duration: time.Since(start)}
	}
	if cur == nil {
		return Result{Healthy: false, Message: "not found in provider", CheckedAt: start, Duration: time.Since(start)}
	}
	if cur.Status != types.InstanceStatusRunning {
		return Result{Healthy: false, Message: fmt.Sprintf("provider reports status=%s", cur.Status), CheckedAt: start, Duration: time.Since(start)}
	}

	switch m.cfg.ProbeType {
	case CheckTypeHTTP:
		return m.probeHTTP(ctx, cur, start)
	case CheckTypeTCP:
		return m.probeTCP(ctx, cur, start)
	default:
		checker := NewExecChecker(m.cfg.ProbeCommand, inst.ProviderInstanceID, execAdapter(driver))
		return checker.Check(ctx)
	}
}

// probeHTTP and probeTCP target the instance's published network facts
// rather than the provider instance id, since HTTP/TCP checks run from
// outside the instance and have no driver-exec channel to go through.
func (m *Monitor) probeHTTP(ctx context.Context, cur *types.Instance, start time.Time) Result {
	addr := probeAddress(cur)
	if addr == "" {
		return Result{Healthy: false, Message: "no published network facts for http probe", CheckedAt: start, Duration: time.Since(start)}
	}
	checker := NewHTTPChecker(fmt.Sprintf("http://%s%s", addr, m.cfg.ProbePath)).WithTimeout(m.cfg.CheckTimeout)
	return checker.Check(ctx)
}

func (m *Monitor) probeTCP(ctx context.Context, cur *types.Instance, start time.Time) Result {
	addr := probeAddress(cur)
	if addr == "" {
		return Result{Healthy: false, Message: "no published network facts for tcp probe", CheckedAt: start, Duration: time.Since(start)}
	}
	checker := NewTCPChecker(addr).WithTimeout(m.cfg.CheckTimeout)
	return checker.Check(ctx)
}

// probeAddress resolves a host:port to dial from an instance's observed
// NetworkFacts, preferring the internal IP and the first published port.
func probeAddress(inst *types.Instance) string {
	if inst.Network == nil || inst.Network.InternalIP == "" {
		return ""
	}
	port := inst.Spec.Network.Port
	if len(inst.Network.Ports) > 0 {
		port = inst.Network.Ports[0].Internal
	}
	if port == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", inst.Network.InternalIP, port)
}

// execAdapter bridges pkg/provider.Driver.Exec to the ExecFunc shape
// ExecChecker expects.
func execAdapter(driver provider.Driver) ExecFunc {
	return func(ctx context.Context, providerInstanceID string, cmd []string) (int, string, string, error) {
		result, err := driver.Exec(ctx, providerInstanceID, cmd)
		if err != nil {
			return 0, "", "", err
		}
		return result.ExitCode, result.Stdout, result.Stderr, nil
	}
}

func (m *Monitor) record(inst *types.Instance, im *instanceMonitor, result Result) {
	status := types.HealthHealthy
	if !result.Healthy {
		status = types.HealthUnhealthy
	}

	details := types.HealthDetails{
		Message:            result.Message,
		ResponseTimeMillis: result.Duration.Milliseconds(),
	}
	if !result.Healthy {
		details.Error = result.Message
	}

	im.buffer.Push(types.HealthEntry{Status: status, CheckedAt: result.CheckedAt, Details: details})
	im.status = status
	im.lastChecked = result.CheckedAt
	im.lastDetails = details
	if result.Healthy {
		im.recoveryAttempts = 0
	}

	m.persist(inst.ID, im)
}

func (m *Monitor) persist(instanceID string, im *instanceMonitor) {
	h := &types.InstanceHealth{
		InstanceID:       instanceID,
		Status:           im.status,
		LastChecked:      im.lastChecked,
		Details:          im.lastDetails,
		History:          im.buffer.Ordered(),
		HistorySize:      m.cfg.HistorySize,
		RecoveryAttempts: im.recoveryAttempts,
	}
	if err := m.store.write(h); err != nil {
		m.log.Warn().Err(err).Str("instance_id", instanceID).Msg("failed to persist health record")
	}
}

// recover implements the spec's bounded-retry restart policy: stop then
// start via the owning driver, recorded as a Recovering entry. A
// Creating-status instance that fails its probe still consumes a
// recovery-attempt slot, the simplest behavior consistent with the rest
// of the policy.
func (m *Monitor) recover(ctx context.Context, inst *types.Instance, im *instanceMonitor) {
	if im.recoveryAttempts >= m.cfg.MaxRecoveryAttempts {
		return
	}

	driver, ok := m.drivers(inst.ProviderKind)
	if !ok {
		return
	}

	im.recoveryAttempts++
	now := time.Now()
	im.buffer.Push(types.HealthEntry{
		Status:    types.HealthRecovering,
		CheckedAt: now,
		Details:   types.HealthDetails{Message: fmt.Sprintf("recovery attempt %d/%d", im.recoveryAttempts, m.cfg.MaxRecoveryAttempts)},
	})
	im.status = types.HealthRecovering
	m.persist(inst.ID, im)

	outcome := "succeeded"
	if _, err := driver.Stop(ctx, inst.ProviderInstanceID, true); err != nil {
		m.log.Warn().Err(err).Str("instance_id", inst.ID).Msg("recovery stop failed")
		outcome = "failed"
	}
	if _, err := driver.Start(ctx, inst.ProviderInstanceID); err != nil {
		m.log.Warn().Err(err).Str("instance_id", inst.ID).Msg("recovery start failed")
		outcome = "failed"
	}
	metrics.RecoveryAttemptsTotal.WithLabelValues(outcome).Inc()
}

// Recover triggers an immediate, manual recovery attempt for an instance
// regardless of the regular check interval, used by the swarm
// controller's recover() operation.
func (m *Monitor) Recover(ctx context.Context, instanceID string) error {
	inst := m.registry.Get(instanceID)
	if inst == nil {
		return swarmerr.NotFound("instance not found: " + instanceID)
	}
	if _, ok := m.drivers(inst.ProviderKind); !ok {
		return swarmerr.Unavailable("provider driver not loaded: " + inst.ProviderKind)
	}

	m.mu.Lock()
	im, exists := m.monitors[instanceID]
	if !exists {
		im = &instanceMonitor{instanceID: instanceID, buffer: newRingBuffer(m.cfg.HistorySize), status: types.HealthUnknown}
		m.monitors[instanceID] = im
	}
	m.mu.Unlock()

	m.recover(ctx, inst, im)
	return nil
}

// Health returns the current in-memory health view for an instance. For an
// instance that is not being monitored it returns the persisted health
// record if one exists, and nil otherwise.
func (m *Monitor) Health(instanceID string) *types.InstanceHealth {
	m.mu.Lock()
	im, ok := m.monitors[instanceID]
	m.mu.Unlock()
	if !ok {
		if h, ok := m.store.load(instanceID); ok {
			return h
		}
		return nil
	}

	return &types.InstanceHealth{
		InstanceID:       instanceID,
		Status:           im.status,
		LastChecked:      im.lastChecked,
		Details:          im.lastDetails,
		History:          im.buffer.Ordered(),
		HistorySize:      m.cfg.HistorySize,
		RecoveryAttempts: im.recoveryAttempts,
	}
}
