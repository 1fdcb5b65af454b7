package provider

import (
	"time"

	"github.com/cuemby/swarmd/pkg/swarmerr"
	"github.com/cuemby/swarmd/pkg/types"
	"github.com/google/uuid"
)

// NewInstanceID mints a swarm-assigned, unique, URL-safe instance id.
// uuid.New already produces a URL-safe string; we keep this wrapper so the
// id format is one decision, not one per call site.
func NewInstanceID() string {
	return uuid.New().String()
}

// BaseInstance constructs the common Instance skeleton a driver fills in
// before returning from Create. Callers still owe it ProviderInstanceID,
// ProviderKind, Status, and Network.
func BaseInstance(name string, spec types.Spec) *types.Instance {
	now := time.Now()
	return &types.Instance{
		ID:            NewInstanceID(),
		Name:          name,
		Spec:          spec,
		Metadata:      make(map[string]string),
		SchemaVersion: types.CurrentSchemaVersion,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// ValidateSpec checks the minimal invariants every driver requires before
// attempting Create, returning an InvalidArgument swarmerr otherwise.
func ValidateSpec(spec types.Spec) error {
	if spec.Image == "" {
		return swarmerr.InvalidArgument("spec.image is required")
	}
	if spec.WorkspacePath == "" {
		return swarmerr.InvalidArgument("spec.workspace_path is required")
	}
	if spec.Resources.CPUCores <= 0 {
		return swarmerr.InvalidArgument("spec.resources.cpu_cores must be positive")
	}
	if spec.Resources.MemoryMiB <= 0 {
		return swarmerr.InvalidArgument("spec.resources.memory_mib must be positive")
	}
	if spec.Network.Port <= 0 {
		return swarmerr.InvalidArgument("spec.network.port must be positive")
	}
	return nil
}

// MergeSpec applies update onto existing, overriding only update's non-zero
// fields. Zero-value fields in update (the unset ones in a partial update
// request) leave existing's value untouched, so a caller that only sets
// Image gets back existing.WorkspacePath/Resources/Network unchanged rather
// than a spec that fails ValidateSpec.
func MergeSpec(existing, update types.Spec) types.Spec {
	merged := existing
	if update.Image != "" {
		merged.Image = update.Image
	}
	if update.WorkspacePath != "" {
		merged.WorkspacePath = update.WorkspacePath
	}
	if update.Env != nil {
		merged.Env = update.Env
	}
	if update.Resources.CPUCores > 0 {
		merged.Resources.CPUCores = update.Resources.CPUCores
	}
	if update.Resources.MemoryMiB > 0 {
		merged.Resources.MemoryMiB = update.Resources.MemoryMiB
	}
	if update.Resources.StorageGiB > 0 {
		merged.Resources.StorageGiB = update.Resources.StorageGiB
	}
	if update.Resources.Region != "" {
		merged.Resources.Region = update.Resources.Region
	}
	if update.Network.Port > 0 {
		merged.Network.Port = update.Network.Port
	}
	if update.Network.Extras != nil {
		merged.Network.Extras = update.Network.Extras
	}
	if update.Auth != nil {
		merged.Auth = update.Auth
	}
	if update.Extra != nil {
		merged.Extra = update.Extra
	}
	return merged
}

// Touch stamps UpdatedAt; every driver operation that mutates the backend
// must call this on the instance it returns.
func Touch(i *types.Instance) {
	i.UpdatedAt = time.Now()
}

// MergeLiveFacts copies the fields a driver refreshes (status, usage,
// network, provider instance id) from fromDriver onto existing, leaving
// existing's registry identity (id, name, spec, metadata, created_at)
// untouched. Callers use this after any driver call that returns a fresh
// *types.Instance built without knowledge of the registry's own id.
func MergeLiveFacts(existing *types.Instance, fromDriver *types.Instance) *types.Instance {
	existing.ProviderInstanceID = fromDriver.ProviderInstanceID
	existing.Status = fromDriver.Status
	existing.Usage = fromDriver.Usage
	existing.Network = fromDriver.Network
	existing.StartedAt = fromDriver.StartedAt
	Touch(existing)
	return existing
}
