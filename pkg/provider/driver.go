package provider

import (
	"context"

	"github.com/cuemby/swarmd/pkg/types"
)

// Driver is the contract every provider backend implements. Every method
// is asynchronous and cancellable via ctx; callers are expected to set a
// deadline where one matters (creation, migration steps, health probes).
//
// A Driver never writes to the instance registry directly and persists
// nothing of its own: durable state belongs to the registry or to the
// backend it drives.
type Driver interface {
	// Initialize verifies backend reachability and creates any shared
	// artifacts (e.g. a shared private network). Returns a swarmerr of
	// kind Unavailable if the backend cannot be reached.
	Initialize(ctx context.Context) error

	// Capabilities is pure and returns this driver's static capabilities.
	Capabilities() types.ProviderCapabilities

	// Create is transactional from the caller's viewpoint: on success the
	// backend holds every dependent artifact; on failure the driver has
	// made a best-effort attempt to delete anything it already created.
	Create(ctx context.Context, name string, spec types.Spec) (*types.Instance, error)

	// Get returns the latest observed state, refreshing live facts from
	// the backend. A nil instance with a nil error means "not found."
	Get(ctx context.Context, providerInstanceID string) (*types.Instance, error)

	// List enumerates instances known to this driver; filter semantics
	// match pkg/types.Filter (see pkg/registry for the canonical
	// implementation used by the swarm controller).
	List(ctx context.Context, filter *types.Filter) ([]*types.Instance, error)

	Start(ctx context.Context, providerInstanceID string) (*types.Instance, error)
	Stop(ctx context.Context, providerInstanceID string, force bool) (*types.Instance, error)
	Delete(ctx context.Context, providerInstanceID string) (bool, error)

	// Update is implemented as recreate: stop if running, destroy the
	// backend object, re-create with spec, then start iff the instance was
	// Running before. spec is already the full merged spec — the caller
	// (pkg/swarm.Controller) merges the partial update request onto the
	// existing spec via provider.MergeSpec before calling Update — so a
	// driver never needs to reconstruct missing fields itself. The
	// returned Instance comes from a fresh Create, so its ID and
	// ProviderInstanceID are new; pkg/swarm.Controller keeps the registry
	// id and copies only the live facts (see MergeLiveFacts).
	Update(ctx context.Context, providerInstanceID string, spec types.Spec) (*types.Instance, error)

	Logs(ctx context.Context, providerInstanceID string, opts types.LogOptions) (*types.LogBatch, error)
	Exec(ctx context.Context, providerInstanceID string, cmd []string) (*types.ExecResult, error)
}
