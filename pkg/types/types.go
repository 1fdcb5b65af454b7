package types

import "time"

// InstanceStatus is the lifecycle state of an Instance.
type InstanceStatus string

const (
	InstanceStatusCreating InstanceStatus = "creating"
	InstanceStatusRunning  InstanceStatus = "running"
	InstanceStatusStopped  InstanceStatus = "stopped"
	InstanceStatusFailed   InstanceStatus = "failed"
	InstanceStatusDeleted  InstanceStatus = "deleted"
)

// CurrentSchemaVersion is stamped onto every Instance this module creates.
const CurrentSchemaVersion = 1

// Instance is the central record of one remote development-environment
// instance, regardless of which provider backs it.
type Instance struct {
	// Identity
	ID                 string `yaml:"id"`
	ProviderInstanceID string `yaml:"provider_instance_id"`
	ProviderKind       string `yaml:"provider_kind"`
	Name               string `yaml:"name"`

	// State
	Status InstanceStatus `yaml:"status"`

	// Spec is the creation request; an update call merges onto it via
	// provider.MergeSpec rather than replacing it wholesale.
	Spec Spec `yaml:"spec"`

	// Live facts, refreshed from the driver on Get.
	Usage     *ResourceUsage `yaml:"usage,omitempty"`
	Network   *NetworkFacts  `yaml:"network,omitempty"`
	StartedAt *time.Time     `yaml:"started_at,omitempty"`

	// Metadata holds free-form key->string data. Keys prefixed
	// "provider_private." are opaque to everything except the owning
	// driver and must be round-tripped verbatim by the registry.
	Metadata map[string]string `yaml:"metadata,omitempty"`

	SchemaVersion int       `yaml:"schema_version"`
	CreatedAt     time.Time `yaml:"created_at"`
	UpdatedAt     time.Time `yaml:"updated_at"`

	// Extra preserves fields this version of the struct doesn't know
	// about, so that parse(serialize(i)) round-trips even across a
	// future field addition.
	Extra map[string]any `yaml:",inline"`
}

// Spec is the instance-creation request. Immutable once the instance
// exists; an Update request carries only the fields the caller wants to
// change (the zero value of any other field), gets merged onto the
// existing Spec by provider.MergeSpec, and the merged result is what
// actually gets recreated on the backend.
type Spec struct {
	Image         string            `yaml:"image"`
	WorkspacePath string            `yaml:"workspace_path"`
	Env           map[string]string `yaml:"env,omitempty"`
	Resources     ResourceRequest   `yaml:"resources"`
	Network       NetworkRequest    `yaml:"network"`
	Auth          *AuthConfig       `yaml:"auth,omitempty"`

	Extra map[string]any `yaml:",inline"`
}

// ResourceRequest is what the caller asked for at creation time.
type ResourceRequest struct {
	CPUCores   float64 `yaml:"cpu_cores"`
	MemoryMiB  int64   `yaml:"memory_mib"`
	StorageGiB int64   `yaml:"storage_gib,omitempty"`
	Persistent bool    `yaml:"persistent,omitempty"`
	Region     string  `yaml:"region,omitempty"`
}

// NetworkRequest is the network shape requested at creation time.
type NetworkRequest struct {
	Port         int               `yaml:"port"`
	InternalOnly bool              `yaml:"internal_only,omitempty"`
	Extras       map[string]string `yaml:"extras,omitempty"`
}

// AuthConfig references, but never embeds, instance auth material: the
// driver resolves PasswordEnv from its own process environment.
type AuthConfig struct {
	Username    string `yaml:"username,omitempty"`
	PasswordEnv string `yaml:"password_env,omitempty"`
}

// ResourceUsage is a point-in-time snapshot of observed resource
// consumption, refreshed by the driver on Get.
type ResourceUsage struct {
	CPUPercent    float64   `yaml:"cpu_percent"`
	MemoryUsedMiB int64     `yaml:"memory_used_mib"`
	DiskUsedGiB   float64   `yaml:"disk_used_gib"`
	SampledAt     time.Time `yaml:"sampled_at"`
}

// PortMapping is one internal/external port pair published for an instance.
type PortMapping struct {
	Internal int    `yaml:"internal"`
	External int    `yaml:"external"`
	Protocol string `yaml:"protocol"`
}

// NetworkFacts are the observed network facts for a running instance.
type NetworkFacts struct {
	InternalIP string        `yaml:"internal_ip,omitempty"`
	ExternalIP string        `yaml:"external_ip,omitempty"`
	Ports      []PortMapping `yaml:"ports,omitempty"`
	URLs       []string      `yaml:"urls,omitempty"`
}

// HealthStatus is the current assessment of an instance's liveness.
type HealthStatus string

const (
	HealthHealthy    HealthStatus = "healthy"
	HealthUnhealthy  HealthStatus = "unhealthy"
	HealthDegraded   HealthStatus = "degraded"
	HealthRecovering HealthStatus = "recovering"
	HealthUnknown    HealthStatus = "unknown"
)

// HealthDetails carries the human-readable outcome of one health check.
type HealthDetails struct {
	Message            string `yaml:"message"`
	Error              string `yaml:"error,omitempty"`
	ResponseTimeMillis int64  `yaml:"response_time_ms,omitempty"`
}

// HealthEntry is one snapshot in an instance's bounded history.
type HealthEntry struct {
	Status    HealthStatus  `yaml:"status"`
	CheckedAt time.Time     `yaml:"checked_at"`
	Details   HealthDetails `yaml:"details"`
}

// InstanceHealth is the durable, bounded health record for one instance.
type InstanceHealth struct {
	InstanceID  string        `yaml:"instance_id"`
	Status      HealthStatus  `yaml:"status"`
	LastChecked time.Time     `yaml:"last_checked"`
	Details     HealthDetails `yaml:"details"`

	// History is most-recent-first, capped at HistorySize entries.
	History     []HealthEntry `yaml:"history,omitempty"`
	HistorySize int           `yaml:"history_size"`

	// RecoveryAttempts counts consecutive recovery attempts since the
	// last successful (Healthy) check; reset to 0 on a Healthy result.
	RecoveryAttempts int `yaml:"recovery_attempts"`

	Extra map[string]any `yaml:",inline"`
}

// MigrationStrategy fixes the order in which a migration's steps run.
type MigrationStrategy string

const (
	StrategyStopAndRecreate MigrationStrategy = "stop_and_recreate"
	StrategyCreateThenStop  MigrationStrategy = "create_then_stop"
)

// MigrationStep names one step in a migration plan.
type MigrationStep string

const (
	StepPrepare                MigrationStep = "prepare"
	StepValidateSource         MigrationStep = "validate_source"
	StepValidateTargetProvider MigrationStep = "validate_target_provider"
	StepStopSource             MigrationStep = "stop_source"
	StepExportSourceConfig     MigrationStep = "export_source_config"
	StepCreateTarget           MigrationStep = "create_target"
	StepStartTarget            MigrationStep = "start_target"
	StepVerifyTarget           MigrationStep = "verify_target"
	StepCleanupSource          MigrationStep = "cleanup_source"
	StepComplete               MigrationStep = "complete"
)

// StepsFor returns the ordered step list for a strategy.
func StepsFor(strategy MigrationStrategy) []MigrationStep {
	switch strategy {
	case StrategyCreateThenStop:
		return []MigrationStep{
			StepPrepare, StepValidateSource, StepValidateTargetProvider,
			StepExportSourceConfig, StepCreateTarget, StepStartTarget,
			StepVerifyTarget, StepStopSource, StepCleanupSource, StepComplete,
		}
	default: // StrategyStopAndRecreate
		return []MigrationStep{
			StepPrepare, StepValidateSource, StepValidateTargetProvider,
			StepStopSource, StepExportSourceConfig, StepCreateTarget,
			StepStartTarget, StepVerifyTarget, StepCleanupSource, StepComplete,
		}
	}
}

// MigrationPlanStatus is the terminal/non-terminal state of a plan.
type MigrationPlanStatus string

const (
	PlanPending    MigrationPlanStatus = "pending"
	PlanInProgress MigrationPlanStatus = "in_progress"
	PlanCompleted  MigrationPlanStatus = "completed"
	PlanFailed     MigrationPlanStatus = "failed"
	PlanCancelled  MigrationPlanStatus = "cancelled"
	PlanTimedOut   MigrationPlanStatus = "timed_out"
)

// Terminal reports whether a plan status accepts no further transitions.
func (s MigrationPlanStatus) Terminal() bool {
	switch s {
	case PlanCompleted, PlanFailed, PlanCancelled, PlanTimedOut:
		return true
	default:
		return false
	}
}

// StepStatus is the per-step progress within a plan.
type StepStatus string

const (
	StepStatusPending StepStatus = "pending"
	StepStatusRunning StepStatus = "running"
	StepStatusDone    StepStatus = "done"
	StepStatusErrored StepStatus = "errored"
	StepStatusSkipped StepStatus = "skipped"
)

// StepRecord is the mutable per-step progress tracked on a plan.
type StepRecord struct {
	Step        MigrationStep `yaml:"step"`
	Status      StepStatus    `yaml:"status"`
	StartedAt   *time.Time    `yaml:"started_at,omitempty"`
	CompletedAt *time.Time    `yaml:"completed_at,omitempty"`
	Error       string        `yaml:"error,omitempty"`
}

// MigrationPlan is the durable record of one migration attempt.
type MigrationPlan struct {
	ID string `yaml:"id"`

	// Fixed at creation.
	SourceInstanceID string            `yaml:"source_instance_id"`
	SourceKind       string            `yaml:"source_kind"`
	TargetKind       string            `yaml:"target_kind"`
	Strategy         MigrationStrategy `yaml:"strategy"`
	KeepSource       bool              `yaml:"keep_source"`
	StartTarget      bool              `yaml:"start_target"`
	Timeout          time.Duration     `yaml:"timeout"`
	CreatedAt        time.Time         `yaml:"created_at"`
	ExpiresAt        time.Time         `yaml:"expires_at"`
	Steps            []StepRecord      `yaml:"steps"`

	// Mutable.
	CurrentStepIndex int                 `yaml:"current_step_index"`
	Status           MigrationPlanStatus `yaml:"status"`
	TargetInstanceID string              `yaml:"target_instance_id,omitempty"`
	Error            string              `yaml:"error,omitempty"`
	CompletedAt      *time.Time          `yaml:"completed_at,omitempty"`

	// ExportedSpec carries the source spec snapshot taken at
	// create_target time, so later steps tolerate source spec drift.
	ExportedSpec *Spec `yaml:"exported_spec,omitempty"`

	Extra map[string]any `yaml:",inline"`
}

// CurrentStep returns the step the plan is (or was last) executing, and
// whether the index is still in range.
func (p *MigrationPlan) CurrentStep() (MigrationStep, bool) {
	if p.CurrentStepIndex < 0 || p.CurrentStepIndex >= len(p.Steps) {
		return "", false
	}
	return p.Steps[p.CurrentStepIndex].Step, true
}

// ProviderCapabilities describes static, per-driver facts.
type ProviderCapabilities struct {
	SupportsLiveResize      bool            `yaml:"supports_live_resize"`
	SupportsSnapshotting    bool            `yaml:"supports_snapshotting"`
	SupportsMultiRegion     bool            `yaml:"supports_multi_region"`
	Regions                 []string        `yaml:"regions,omitempty"`
	MaxInstancesPerCaller   int             `yaml:"max_instances_per_caller"`
	MaxResourcesPerInstance ResourceRequest `yaml:"max_resources_per_instance"`
}

// Filter describes a list() query over the instance registry.
type Filter struct {
	Status        []InstanceStatus
	NamePattern   string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Tags          map[string]string
	Offset        int
	Limit         int // 0 means no cap
}

// LogEntry is one line of driver-reported log output.
type LogEntry struct {
	Timestamp time.Time `yaml:"timestamp"`
	Level     string    `yaml:"level"`
	Message   string    `yaml:"message"`
	Source    string    `yaml:"source"`
}

// LogOptions bounds a logs() call.
type LogOptions struct {
	Lines  int
	Since  *time.Time
	Until  *time.Time
	Grep   string
}

// LogBatch is the result of a logs() call.
type LogBatch struct {
	Entries []LogEntry
}

// ExecResult is the result of an exec() call.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}
