package migration

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/swarmd/pkg/log"
	"github.com/cuemby/swarmd/pkg/metrics"
	"github.com/cuemby/swarmd/pkg/provider"
	"github.com/cuemby/swarmd/pkg/swarmerr"
	"github.com/cuemby/swarmd/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RegistryPort is the subset of pkg/registry.Registry the engine needs.
// Its method set matches pkg/registry.Registry directly so the real
// registry satisfies it with no adapter.
type RegistryPort interface {
	Get(id string) *types.Instance
	Register(inst *types.Instance) error
	Update(inst *types.Instance) error
	Remove(id string)
}

// DriverResolver looks up the live driver for a provider kind.
type DriverResolver func(providerKind string) (provider.Driver, bool)

// Options configures one migration plan at creation time.
type Options struct {
	Strategy    types.MigrationStrategy
	KeepSource  bool
	StartTarget bool
	Timeout     time.Duration
}

// Config configures an Engine.
type Config struct {
	StateDir       string
	DefaultTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.DefaultTimeout == 0 {
		c.DefaultTimeout = 15 * time.Minute
	}
}

// Engine drives migration plans as a durable, resumable state machine.
// Multiple plans run concurrently; each plan's own steps execute
// strictly sequentially, enforced by a single-flight guard per plan id.
type Engine struct {
	cfg      Config
	registry RegistryPort
	drivers  DriverResolver
	store    *planStore

	mu              sync.Mutex
	plans           map[string]*types.MigrationPlan
	cancelRequested map[string]bool
	running         map[string]bool

	log zerolog.Logger
}

func New(cfg Config, registry RegistryPort, drivers DriverResolver) *Engine {
	cfg.applyDefaults()
	return &Engine{
		cfg:             cfg,
		registry:        registry,
		drivers:         drivers,
		store:           newPlanStore(cfg.StateDir),
		plans:           make(map[string]*types.MigrationPlan),
		cancelRequested: make(map[string]bool),
		running:         make(map[string]bool),
		log:             log.WithComponent("migration"),
	}
}

// Start loads persisted plans, timing out any stale InProgress plan and
// resuming the rest from their last completed step.
func (e *Engine) Start() error {
	if err := e.store.ensureDir(); err != nil {
		return err
	}

	plans, loadErrs := e.store.loadAll()
	for _, err := range loadErrs {
		e.log.Warn().Err(err).Msg("failed to load migration plan record, skipping")
	}

	now := time.Now()
	for _, p := range plans {
		e.mu.Lock()
		e.plans[p.ID] = p
		e.mu.Unlock()

		if p.Status != types.PlanInProgress {
			continue
		}
		if now.After(p.ExpiresAt) {
			e.markTimedOut(p)
			continue
		}
		go e.run(p)
	}
	return nil
}

// Stop requests cancellation of every in-flight plan; it does not block
// for their current step to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id := range e.running {
		e.cancelRequested[id] = true
	}
}

// CreatePlan builds a Pending plan with a precomputed step list.
func (e *Engine) CreatePlan(sourceID, targetKind string, opts Options) (*types.MigrationPlan, error) {
	source := e.registry.Get(sourceID)
	if source == nil {
		return nil, swarmerr.NotFound("source instance not found: " + sourceID)
	}
	if opts.Strategy == "" {
		opts.Strategy = types.StrategyStopAndRecreate
	}
	if opts.Timeout == 0 {
		opts.Timeout = e.cfg.DefaultTimeout
	}

	now := time.Now()
	steps := types.StepsFor(opts.Strategy)
	stepRecords := make([]types.StepRecord, len(steps))
	for i, s := range steps {
		stepRecords[i] = types.StepRecord{Step: s, Status: types.StepStatusPending}
	}

	p := &types.MigrationPlan{
		ID:               uuid.New().String(),
		SourceInstanceID: sourceID,
		SourceKind:       source.ProviderKind,
		TargetKind:       targetKind,
		Strategy:         opts.Strategy,
		KeepSource:       opts.KeepSource,
		StartTarget:      opts.StartTarget,
		Timeout:          opts.Timeout,
		CreatedAt:        now,
		ExpiresAt:        now.Add(opts.Timeout),
		Steps:            stepRecords,
		CurrentStepIndex: 0,
		Status:           types.PlanPending,
	}

	if err := e.store.write(p); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.plans[p.ID] = p
	e.mu.Unlock()

	metrics.MigrationPlansTotal.WithLabelValues(string(types.PlanPending)).Inc()
	return p, nil
}

// StartPlan transitions a Pending plan to InProgress and launches its
// single-flight executor.
func (e *Engine) StartPlan(planID string) error {
	e.mu.Lock()
	p, ok := e.plans[planID]
	if !ok {
		e.mu.Unlock()
		return swarmerr.NotFound("migration plan not found: " + planID)
	}
	if p.Status != types.PlanPending {
		e.mu.Unlock()
		return swarmerr.Conflict("plan is not Pending")
	}
	p.Status = types.PlanInProgress
	now := time.Now()
	p.ExpiresAt = now.Add(p.Timeout)
	e.running[planID] = true
	e.mu.Unlock()

	if err := e.store.write(p); err != nil {
		return err
	}

	log.WithPlanID(planID).Debug().Str("target_kind", p.TargetKind).Msg("starting migration plan")
	go e.run(p)
	return nil
}

// Cancel marks a Pending or InProgress plan Cancelled. The currently
// executing step (if any) is allowed to finish; no further step starts.
func (e *Engine) Cancel(planID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.plans[planID]
	if !ok {
		return swarmerr.NotFound("migration plan not found: " + planID)
	}
	if p.Status.Terminal() {
		return swarmerr.Conflict("plan already in a terminal state")
	}

	if p.Status == types.PlanPending {
		p.Status = types.PlanCancelled
		go e.persistAsync(p)
		metrics.MigrationPlansTotal.WithLabelValues(string(types.PlanCancelled)).Inc()
		return nil
	}
	e.cancelRequested[planID] = true
	return nil
}

// Get returns the current state of a plan.
func (e *Engine) Get(planID string) *types.MigrationPlan {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.plans[planID]
}

// List returns every known plan.
func (e *Engine) List() []*types.MigrationPlan {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*types.MigrationPlan, 0, len(e.plans))
	for _, p := range e.plans {
		out = append(out, p)
	}
	return out
}

// run executes a plan's remaining steps sequentially, enforcing the
// plan's wall-clock deadline and honoring a pending cancellation between
// (never during) steps.
func (e *Engine) run(p *types.MigrationPlan) {
	e.mu.Lock()
	e.running[p.ID] = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.running, p.ID)
		delete(e.cancelRequested, p.ID)
		e.mu.Unlock()
	}()

	deadline := p.ExpiresAt
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.MigrationPlanDuration)

	for p.CurrentStepIndex < len(p.Steps) {
		if ctx.Err() != nil {
			e.markTimedOut(p)
			return
		}
		if e.isCancelRequested(p.ID) {
			e.mu.Lock()
			p.Status = types.PlanCancelled
			e.mu.Unlock()
			_ = e.store.write(p)
			metrics.MigrationPlansTotal.WithLabelValues(string(types.PlanCancelled)).Inc()
			return
		}

		step := p.Steps[p.CurrentStepIndex]
		if step.Status == types.StepStatusDone {
			p.CurrentStepIndex++
			continue
		}

		fn, ok := stepFuncs[step.Step]
		if !ok {
			e.fail(p, swarmerr.Internal("no step function for "+string(step.Step)))
			return
		}

		started := time.Now()
		p.Steps[p.CurrentStepIndex].Status = types.StepStatusRunning
		p.Steps[p.CurrentStepIndex].StartedAt = &started
		_ = e.store.write(p)

		stepTimer := metrics.NewTimer()
		err := fn(ctx, e, p)
		stepTimer.ObserveDurationVec(metrics.MigrationStepDuration, string(step.Step))

		if ctx.Err() != nil {
			// Deadline hit while this step was in flight: the step's final
			// status is left Running/InProgress, never re-mutated, per the
			// timeout contract — only the plan transitions to TimedOut.
			e.markTimedOut(p)
			return
		}

		completed := time.Now()
		if err != nil {
			p.Steps[p.CurrentStepIndex].Status = types.StepStatusErrored
			p.Steps[p.CurrentStepIndex].CompletedAt = &completed
			p.Steps[p.CurrentStepIndex].Error = err.Error()
			e.fail(p, err)
			return
		}

		p.Steps[p.CurrentStepIndex].Status = types.StepStatusDone
		p.Steps[p.CurrentStepIndex].CompletedAt = &completed
		_ = e.store.write(p)

		// A cancellation requested while this step was in flight takes
		// effect now, before advancing: current_step_index is left
		// pointing at the step that just finished, matching the
		// cancellation contract ("no further steps attempted").
		if e.isCancelRequested(p.ID) {
			e.mu.Lock()
			p.Status = types.PlanCancelled
			e.mu.Unlock()
			_ = e.store.write(p)
			metrics.MigrationPlansTotal.WithLabelValues(string(types.PlanCancelled)).Inc()
			return
		}

		p.CurrentStepIndex++
	}

	now := time.Now()
	e.mu.Lock()
	p.Status = types.PlanCompleted
	p.CompletedAt = &now
	e.mu.Unlock()
	_ = e.store.write(p)
	metrics.MigrationPlansTotal.WithLabelValues(string(types.PlanCompleted)).Inc()
}

func (e *Engine) fail(p *types.MigrationPlan, err error) {
	e.mu.Lock()
	p.Status = types.PlanFailed
	p.Error = err.Error()
	e.mu.Unlock()
	_ = e.store.write(p)
	metrics.MigrationPlansTotal.WithLabelValues(string(types.PlanFailed)).Inc()
}

func (e *Engine) markTimedOut(p *types.MigrationPlan) {
	e.mu.Lock()
	p.Status = types.PlanTimedOut
	e.mu.Unlock()
	_ = e.store.write(p)
	metrics.MigrationPlansTotal.WithLabelValues(string(types.PlanTimedOut)).Inc()
}

func (e *Engine) isCancelRequested(planID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelRequested[planID]
}

func (e *Engine) persistAsync(p *types.MigrationPlan) {
	if err := e.store.write(p); err != nil {
		e.log.Warn().Err(err).Str("plan_id", p.ID).Msg("failed to persist cancelled plan")
	}
}
