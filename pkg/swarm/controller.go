package swarm

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/swarmd/pkg/health"
	"github.com/cuemby/swarmd/pkg/log"
	"github.com/cuemby/swarmd/pkg/metrics"
	"github.com/cuemby/swarmd/pkg/migration"
	"github.com/cuemby/swarmd/pkg/provider"
	providerregistry "github.com/cuemby/swarmd/pkg/provider/registry"
	"github.com/cuemby/swarmd/pkg/registry"
	"github.com/cuemby/swarmd/pkg/swarmerr"
	"github.com/cuemby/swarmd/pkg/types"
	"github.com/rs/zerolog"
)

// ProviderConfig is one provider kind's startup configuration.
type ProviderConfig struct {
	Kind    string
	Enabled bool
	Raw     any
}

// Config configures a Controller.
type Config struct {
	StateDir            string
	Providers           []ProviderConfig
	Instances           registry.Config
	Health              health.Config
	Migration           migration.Config
	EnableHealthMonitor bool
	EnableMigration     bool
}

// ProviderStatus is one provider kind's status, as reported by status().
type ProviderStatus struct {
	Enabled       bool
	InstanceCount int
}

// StatusReport is the result of status().
type StatusReport struct {
	Initialized            bool
	Providers              map[string]ProviderStatus
	TotalInstances         int
	HealthMonitorRunning   bool
	MigrationEngineRunning bool
}

// Controller owns the lifecycle of every other component and is the
// single entry point external collaborators call into.
type Controller struct {
	cfg     Config
	factory *providerregistry.Registry

	driversMu sync.RWMutex
	drivers   map[string]provider.Driver

	instances *registry.Registry
	monitor   *health.Monitor
	migrator  *migration.Engine
	collector *metrics.Collector

	mu          sync.Mutex
	initialized bool

	dispatchMu sync.Mutex
	dispatch   map[string]*sync.Mutex

	livenessStop chan struct{}

	log zerolog.Logger
}

// livenessInterval paces how often Initialize's background loop pushes
// this controller's real component state into pkg/metrics's process
// health/readiness endpoints.
const livenessInterval = 15 * time.Second

// New builds a Controller. factory must have every provider kind named
// in cfg.Providers already Register()ed; Initialize seals it.
func New(cfg Config, factory *providerregistry.Registry) *Controller {
	return &Controller{
		cfg:      cfg,
		factory:  factory,
		drivers:  make(map[string]provider.Driver),
		dispatch: make(map[string]*sync.Mutex),
		log:      log.WithComponent("swarm"),
	}
}

// Initialize must be called exactly once. It seals the provider factory,
// creates and initializes a driver for every enabled provider config (a
// failing driver is logged and dropped, never fatal), then initializes
// the instance registry, health monitor, and migration engine in that
// order.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return swarmerr.Conflict("controller already initialized")
	}

	c.factory.Seal()

	for _, pc := range c.cfg.Providers {
		if !pc.Enabled {
			continue
		}
		pkLog := log.WithProviderKind(pc.Kind)
		d, err := c.factory.CreateAndInitialize(ctx, pc.Kind, pc.Raw)
		if err != nil {
			pkLog.Error().Err(err).Msg("failed to initialize provider driver, dropping")
			continue
		}
		pkLog.Info().Msg("provider driver initialized")
		c.driversMu.Lock()
		c.drivers[pc.Kind] = d
		c.driversMu.Unlock()
	}

	instancesCfg := c.cfg.Instances
	instancesCfg.StateDir = c.cfg.StateDir
	c.instances = registry.New(instancesCfg)
	if err := c.instances.Start(); err != nil {
		return err
	}

	if c.cfg.EnableHealthMonitor {
		healthCfg := c.cfg.Health
		healthCfg.StateDir = c.cfg.StateDir
		c.monitor = health.New(healthCfg, c.instances, c.resolveDriver)
		if err := c.monitor.Start(); err != nil {
			return err
		}
	}

	if c.cfg.EnableMigration {
		migrationCfg := c.cfg.Migration
		migrationCfg.StateDir = c.cfg.StateDir
		c.migrator = migration.New(migrationCfg, c.instances, c.resolveDriver)
		if err := c.migrator.Start(); err != nil {
			return err
		}
	}

	var healthSource metrics.HealthSource
	if c.monitor != nil {
		healthSource = c.monitor
	}
	c.collector = metrics.NewCollector(c.instances, healthSource)
	c.collector.Start()

	c.livenessStop = make(chan struct{})
	c.reportLiveness()
	go c.livenessLoop()

	c.initialized = true
	metrics.SwarmInitialized.Set(1)
	return nil
}

// Dispose tears down the health monitor, migration engine, and instance
// registry in that order, swallowing component-level errors so that one
// failure does not prevent the others from disposing.
func (c *Controller) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return
	}

	if c.livenessStop != nil {
		close(c.livenessStop)
	}
	if c.collector != nil {
		c.collector.Stop()
	}
	if c.monitor != nil {
		c.monitor.Stop()
	}
	if c.migrator != nil {
		c.migrator.Stop()
	}
	if c.instances != nil {
		c.instances.Stop()
	}

	c.initialized = false
	metrics.SwarmInitialized.Set(0)
}

func (c *Controller) resolveDriver(kind string) (provider.Driver, bool) {
	c.driversMu.RLock()
	defer c.driversMu.RUnlock()
	d, ok := c.drivers[kind]
	return d, ok
}

// livenessLoop periodically pushes this controller's real component state
// into pkg/metrics so /healthz and /readyz reflect live drift (a driver
// dropped after a failed re-initialize, a disabled health monitor) instead
// of the one-shot snapshot taken at process start.
func (c *Controller) livenessLoop() {
	ticker := time.NewTicker(livenessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.reportLiveness()
		case <-c.livenessStop:
			return
		}
	}
}

// reportLiveness samples the controller's own state (not a fixed literal)
// into pkg/metrics's health checker: "registry" tracks whether the
// instance registry started, "drivers" whether every enabled provider
// kind actually has a loaded driver, and "health_monitor"/
// "migration_engine" whether those optional components are running.
func (c *Controller) reportLiveness() {
	metrics.UpdateComponent("registry", c.instances != nil, "")

	c.driversMu.RLock()
	loaded := len(c.drivers)
	c.driversMu.RUnlock()

	configured := 0
	for _, pc := range c.cfg.Providers {
		if pc.Enabled {
			configured++
		}
	}
	driversHealthy := configured == 0 || loaded > 0
	driversMsg := ""
	if !driversHealthy {
		driversMsg = "no provider driver initialized"
	}
	metrics.UpdateComponent("drivers", driversHealthy, driversMsg)

	if c.cfg.EnableHealthMonitor {
		metrics.UpdateComponent("health_monitor", c.monitor != nil, "")
	}
	if c.cfg.EnableMigration {
		metrics.UpdateComponent("migration_engine", c.migrator != nil, "")
	}
}

// observeDriverOp records DriverOperationDuration for every driver call and,
// on error, DriverErrorsTotal labeled by the error's swarmerr.Kind (or
// "internal" for an error of unknown shape).
func (c *Controller) observeDriverOp(kind, operation string, timer *metrics.Timer, err error) {
	timer.ObserveDurationVec(metrics.DriverOperationDuration, kind, operation)
	if err != nil {
		errKind, _ := swarmerr.KindOf(err)
		metrics.DriverErrorsTotal.WithLabelValues(kind, string(errKind)).Inc()
	}
}

// lockFor returns the per-instance-id stripe lock, creating it lazily.
func (c *Controller) lockFor(id string) *sync.Mutex {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()
	m, ok := c.dispatch[id]
	if !ok {
		m = &sync.Mutex{}
		c.dispatch[id] = m
	}
	return m
}

// CreateInstance creates a new instance on the named provider kind.
func (c *Controller) CreateInstance(ctx context.Context, name string, spec types.Spec, kind string) (*types.Instance, error) {
	driver, ok := c.resolveDriver(kind)
	if !ok {
		return nil, swarmerr.Unavailable("provider driver not loaded: " + kind)
	}

	timer := metrics.NewTimer()
	inst, err := driver.Create(ctx, name, spec)
	c.observeDriverOp(kind, "create", timer, err)
	if err != nil {
		return nil, err
	}
	inst.ProviderKind = kind

	if err := c.instances.Register(inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// Get returns the latest known state for id, refreshing live facts from
// the owning driver when it is loaded. Returns (nil, nil) if id is
// unknown; a loaded instance with no driver available returns the
// registry record unchanged per the dispatch rule for read operations.
func (c *Controller) Get(ctx context.Context, id string) (*types.Instance, error) {
	lock := c.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	inst := c.instances.Get(id)
	if inst == nil {
		return nil, nil
	}

	driver, ok := c.resolveDriver(inst.ProviderKind)
	if !ok {
		return inst, nil
	}

	timer := metrics.NewTimer()
	fresh, err := driver.Get(ctx, inst.ProviderInstanceID)
	c.observeDriverOp(inst.ProviderKind, "get", timer, err)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return inst, nil
	}

	merged := provider.MergeLiveFacts(inst, fresh)
	if err := c.instances.Update(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// List returns registry instances matching filter; it does not refresh
// live facts (use Get for a single up-to-date instance).
func (c *Controller) List(filter *types.Filter) ([]*types.Instance, error) {
	return c.instances.List(filter)
}

// Start starts a Stopped or Creating instance; idempotent on an already
// Running instance.
func (c *Controller) Start(ctx context.Context, id string) (*types.Instance, error) {
	lock := c.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	inst, err := c.requireWritable(id)
	if err != nil {
		return nil, err
	}

	driver, ok := c.resolveDriver(inst.ProviderKind)
	if !ok {
		return nil, swarmerr.Unavailable("provider driver not loaded: " + inst.ProviderKind)
	}

	timer := metrics.NewTimer()
	fresh, err := driver.Start(ctx, inst.ProviderInstanceID)
	c.observeDriverOp(inst.ProviderKind, "start", timer, err)
	if err != nil {
		return nil, err
	}

	merged := provider.MergeLiveFacts(inst, fresh)
	if err := c.instances.Update(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// Stop stops a Running instance; idempotent on an already Stopped one.
func (c *Controller) Stop(ctx context.Context, id string, force bool) (*types.Instance, error) {
	lock := c.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	inst, err := c.requireWritable(id)
	if err != nil {
		return nil, err
	}

	driver, ok := c.resolveDriver(inst.ProviderKind)
	if !ok {
		return nil, swarmerr.Unavailable("provider driver not loaded: " + inst.ProviderKind)
	}

	timer := metrics.NewTimer()
	fresh, err := driver.Stop(ctx, inst.ProviderInstanceID, force)
	c.observeDriverOp(inst.ProviderKind, "stop", timer, err)
	if err != nil {
		return nil, err
	}

	merged := provider.MergeLiveFacts(inst, fresh)
	if err := c.instances.Update(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// Delete destroys the backend object and removes the registry record.
func (c *Controller) Delete(ctx context.Context, id string) (bool, error) {
	lock := c.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	inst, err := c.requireWritable(id)
	if err != nil {
		return false, err
	}

	driver, ok := c.resolveDriver(inst.ProviderKind)
	if !ok {
		return false, swarmerr.Unavailable("provider driver not loaded: " + inst.ProviderKind)
	}

	timer := metrics.NewTimer()
	ok2, err := driver.Delete(ctx, inst.ProviderInstanceID)
	c.observeDriverOp(inst.ProviderKind, "delete", timer, err)
	if err != nil {
		return false, err
	}
	c.instances.Remove(id)
	return ok2, nil
}

// Update merges update onto the instance's current spec (only update's
// non-zero fields override; see provider.MergeSpec) and applies the result
// via the driver's recreate semantics, preserving the registry id across
// the backend recreation.
func (c *Controller) Update(ctx context.Context, id string, update types.Spec) (*types.Instance, error) {
	lock := c.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	inst, err := c.requireWritable(id)
	if err != nil {
		return nil, err
	}

	driver, ok := c.resolveDriver(inst.ProviderKind)
	if !ok {
		return nil, swarmerr.Unavailable("provider driver not loaded: " + inst.ProviderKind)
	}

	merged := provider.MergeSpec(inst.Spec, update)
	if err := provider.ValidateSpec(merged); err != nil {
		return nil, err
	}

	timer := metrics.NewTimer()
	fresh, err := driver.Update(ctx, inst.ProviderInstanceID, merged)
	c.observeDriverOp(inst.ProviderKind, "update", timer, err)
	if err != nil {
		return nil, err
	}

	inst.Spec = merged
	result := provider.MergeLiveFacts(inst, fresh)
	if err := c.instances.Update(result); err != nil {
		return nil, err
	}
	return result, nil
}

// Exec runs cmd inside a Running instance. Fails Conflict on any other
// status, mirroring requireWritable's id-resolution but against the
// Running status specifically rather than "not Deleted."
func (c *Controller) Exec(ctx context.Context, id string, cmd []string) (*types.ExecResult, error) {
	lock := c.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	inst, driver, err := c.requireRunning(id)
	if err != nil {
		return nil, err
	}
	timer := metrics.NewTimer()
	result, err := driver.Exec(ctx, inst.ProviderInstanceID, cmd)
	c.observeDriverOp(inst.ProviderKind, "exec", timer, err)
	return result, err
}

// Logs fetches log output for an instance. Unlike Exec, this is allowed
// against any non-Deleted instance so logs remain readable after a stop.
func (c *Controller) Logs(ctx context.Context, id string, opts types.LogOptions) (*types.LogBatch, error) {
	lock := c.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	inst, err := c.requireWritable(id)
	if err != nil {
		return nil, err
	}
	driver, ok := c.resolveDriver(inst.ProviderKind)
	if !ok {
		return nil, swarmerr.Unavailable("provider driver not loaded: " + inst.ProviderKind)
	}
	timer := metrics.NewTimer()
	result, err := driver.Logs(ctx, inst.ProviderInstanceID, opts)
	c.observeDriverOp(inst.ProviderKind, "logs", timer, err)
	return result, err
}

// requireRunning fetches id and its driver, failing NotFound if unknown
// and Conflict if the instance is not currently Running.
func (c *Controller) requireRunning(id string) (*types.Instance, provider.Driver, error) {
	inst := c.instances.Get(id)
	if inst == nil {
		return nil, nil, swarmerr.NotFound("instance not found: " + id)
	}
	if inst.Status != types.InstanceStatusRunning {
		return nil, nil, swarmerr.Conflict("instance is not running: " + id)
	}
	driver, ok := c.resolveDriver(inst.ProviderKind)
	if !ok {
		return nil, nil, swarmerr.Unavailable("provider driver not loaded: " + inst.ProviderKind)
	}
	return inst, driver, nil
}

// requireWritable fetches id, failing NotFound if unknown and Conflict
// if already Deleted.
func (c *Controller) requireWritable(id string) (*types.Instance, error) {
	inst := c.instances.Get(id)
	if inst == nil {
		return nil, swarmerr.NotFound("instance not found: " + id)
	}
	if inst.Status == types.InstanceStatusDeleted {
		return nil, swarmerr.Conflict("instance is deleted: " + id)
	}
	return inst, nil
}

// CheckHealth returns the current health view for an instance.
func (c *Controller) CheckHealth(id string) (*types.InstanceHealth, error) {
	if c.monitor == nil {
		return nil, swarmerr.Unavailable("health monitor is not enabled")
	}
	return c.monitor.Health(id), nil
}

// Recover triggers an immediate, manual recovery attempt.
func (c *Controller) Recover(ctx context.Context, id string) error {
	if c.monitor == nil {
		return swarmerr.Unavailable("health monitor is not enabled")
	}
	return c.monitor.Recover(ctx, id)
}

// CreateMigrationPlan builds a new migration plan for an instance.
func (c *Controller) CreateMigrationPlan(sourceID, targetKind string, opts migration.Options) (*types.MigrationPlan, error) {
	if c.migrator == nil {
		return nil, swarmerr.Unavailable("migration engine is not enabled")
	}
	return c.migrator.CreatePlan(sourceID, targetKind, opts)
}

// StartMigration starts executing a Pending plan.
func (c *Controller) StartMigration(planID string) error {
	if c.migrator == nil {
		return swarmerr.Unavailable("migration engine is not enabled")
	}
	return c.migrator.StartPlan(planID)
}

// CancelMigration requests cancellation of a Pending or InProgress plan.
func (c *Controller) CancelMigration(planID string) error {
	if c.migrator == nil {
		return swarmerr.Unavailable("migration engine is not enabled")
	}
	return c.migrator.Cancel(planID)
}

// GetMigrationPlan returns the current state of a plan.
func (c *Controller) GetMigrationPlan(planID string) (*types.MigrationPlan, error) {
	if c.migrator == nil {
		return nil, swarmerr.Unavailable("migration engine is not enabled")
	}
	return c.migrator.Get(planID), nil
}

// ListMigrationPlans returns every known migration plan.
func (c *Controller) ListMigrationPlans() ([]*types.MigrationPlan, error) {
	if c.migrator == nil {
		return nil, swarmerr.Unavailable("migration engine is not enabled")
	}
	return c.migrator.List(), nil
}

// ProviderCapabilities returns the static capabilities of a loaded driver.
func (c *Controller) ProviderCapabilities(kind string) (types.ProviderCapabilities, error) {
	driver, ok := c.resolveDriver(kind)
	if !ok {
		return types.ProviderCapabilities{}, swarmerr.NotFound("provider driver not loaded: " + kind)
	}
	return driver.Capabilities(), nil
}

// Status reports whether the controller is initialized, per-kind
// instance counts, the total instance count, and whether the health
// monitor and migration engine are enabled.
func (c *Controller) Status() StatusReport {
	c.mu.Lock()
	initialized := c.initialized
	c.mu.Unlock()

	report := StatusReport{
		Initialized:            initialized,
		Providers:              make(map[string]ProviderStatus),
		HealthMonitorRunning:   c.monitor != nil,
		MigrationEngineRunning: c.migrator != nil,
	}

	if !initialized || c.instances == nil {
		return report
	}

	total, byKind := c.instances.Count()
	report.TotalInstances = total

	c.driversMu.RLock()
	defer c.driversMu.RUnlock()
	for _, pc := range c.cfg.Providers {
		_, enabled := c.drivers[pc.Kind]
		report.Providers[pc.Kind] = ProviderStatus{Enabled: enabled, InstanceCount: byKind[pc.Kind]}
	}
	return report
}
