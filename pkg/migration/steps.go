package migration

import (
	"context"

	"github.com/cuemby/swarmd/pkg/provider"
	"github.com/cuemby/swarmd/pkg/swarmerr"
	"github.com/cuemby/swarmd/pkg/types"
)

// stepFunc is one migration step's executable behavior. Steps are data
// (types.StepsFor picks the order), so dispatch is a map rather than a
// switch over a closed set of operations.
type stepFunc func(ctx context.Context, e *Engine, p *types.MigrationPlan) error

var stepFuncs = map[types.MigrationStep]stepFunc{
	types.StepPrepare:                stepPrepare,
	types.StepValidateSource:         stepValidateSource,
	types.StepValidateTargetProvider: stepValidateTargetProvider,
	types.StepStopSource:             stepStopSource,
	types.StepExportSourceConfig:     stepExportSourceConfig,
	types.StepCreateTarget:           stepCreateTarget,
	types.StepStartTarget:            stepStartTarget,
	types.StepVerifyTarget:           stepVerifyTarget,
	types.StepCleanupSource:          stepCleanupSource,
	types.StepComplete:               stepComplete,
}

// stepPrepare is a no-op hook reserved for future logging/metrics.
func stepPrepare(ctx context.Context, e *Engine, p *types.MigrationPlan) error {
	return nil
}

func stepValidateSource(ctx context.Context, e *Engine, p *types.MigrationPlan) error {
	if e.registry.Get(p.SourceInstanceID) == nil {
		return swarmerr.NotFound("source instance not found: " + p.SourceInstanceID)
	}
	return nil
}

func stepValidateTargetProvider(ctx context.Context, e *Engine, p *types.MigrationPlan) error {
	driver, ok := e.drivers(p.TargetKind)
	if !ok {
		return swarmerr.Unavailable("target provider driver not loaded: " + p.TargetKind)
	}
	if driver.Capabilities().MaxInstancesPerCaller <= 0 {
		return swarmerr.InvalidArgument("target provider does not accept new instances")
	}
	return nil
}

func stepStopSource(ctx context.Context, e *Engine, p *types.MigrationPlan) error {
	inst := e.registry.Get(p.SourceInstanceID)
	if inst == nil {
		return swarmerr.NotFound("source instance not found: " + p.SourceInstanceID)
	}
	if inst.Status != types.InstanceStatusRunning {
		return nil
	}
	driver, ok := e.drivers(inst.ProviderKind)
	if !ok {
		return swarmerr.Unavailable("source provider driver not loaded: " + inst.ProviderKind)
	}
	fromDriver, err := driver.Stop(ctx, inst.ProviderInstanceID, false)
	if err != nil {
		return err
	}
	return e.registry.Update(provider.MergeLiveFacts(inst, fromDriver))
}

// stepExportSourceConfig is a no-op: the spec snapshot is taken at
// create_target time instead, so later steps tolerate source spec drift
// between plan creation and the step that actually needs it.
func stepExportSourceConfig(ctx context.Context, e *Engine, p *types.MigrationPlan) error {
	return nil
}

func stepCreateTarget(ctx context.Context, e *Engine, p *types.MigrationPlan) error {
	source := e.registry.Get(p.SourceInstanceID)
	if source == nil {
		return swarmerr.NotFound("source instance not found: " + p.SourceInstanceID)
	}
	driver, ok := e.drivers(p.TargetKind)
	if !ok {
		return swarmerr.Unavailable("target provider driver not loaded: " + p.TargetKind)
	}

	spec := source.Spec
	p.ExportedSpec = &spec

	name := source.Name + "-migrated"
	target, err := driver.Create(ctx, name, spec)
	if err != nil {
		return err
	}
	target.ProviderKind = p.TargetKind

	if err := e.registry.Register(target); err != nil {
		return err
	}
	p.TargetInstanceID = target.ID
	return e.store.write(p)
}

func stepStartTarget(ctx context.Context, e *Engine, p *types.MigrationPlan) error {
	if !p.StartTarget {
		return nil
	}
	target := e.registry.Get(p.TargetInstanceID)
	if target == nil {
		return swarmerr.NotFound("target instance not found: " + p.TargetInstanceID)
	}
	if target.Status == types.InstanceStatusRunning {
		return nil
	}
	driver, ok := e.drivers(p.TargetKind)
	if !ok {
		return swarmerr.Unavailable("target provider driver not loaded: " + p.TargetKind)
	}
	fromDriver, err := driver.Start(ctx, target.ProviderInstanceID)
	if err != nil {
		return err
	}
	return e.registry.Update(provider.MergeLiveFacts(target, fromDriver))
}

func stepVerifyTarget(ctx context.Context, e *Engine, p *types.MigrationPlan) error {
	target := e.registry.Get(p.TargetInstanceID)
	if target == nil {
		return swarmerr.NotFound("target instance not found: " + p.TargetInstanceID)
	}
	if p.StartTarget && target.Status != types.InstanceStatusRunning {
		return swarmerr.Conflict("target instance not Running after start_target")
	}
	return nil
}

func stepCleanupSource(ctx context.Context, e *Engine, p *types.MigrationPlan) error {
	if p.KeepSource {
		return nil
	}
	source := e.registry.Get(p.SourceInstanceID)
	if source == nil {
		return nil
	}
	driver, ok := e.drivers(source.ProviderKind)
	if ok {
		if _, err := driver.Delete(ctx, source.ProviderInstanceID); err != nil {
			return err
		}
	}
	e.registry.Remove(p.SourceInstanceID)
	return nil
}

// stepComplete is a no-op terminal marker.
func stepComplete(ctx context.Context, e *Engine, p *types.MigrationPlan) error {
	return nil
}
