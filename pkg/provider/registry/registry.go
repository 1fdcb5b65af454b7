package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/swarmd/pkg/provider"
	"github.com/cuemby/swarmd/pkg/swarmerr"
)

// Constructor builds a driver for one provider kind from its raw,
// kind-specific configuration (a containerdriver.Config, a
// clouddriver.Config, ...). Registered once per kind.
type Constructor func(rawConfig any) (provider.Driver, error)

// Registry holds the process-wide set of registered provider-kind
// constructors. The zero value is not usable; use New.
type Registry struct {
	mu           sync.Mutex
	constructors map[string]Constructor
	sealed       bool
}

func New() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register adds a constructor for kind. Panics if called after Seal:
// registration is a single explicit startup phase, never an implicit
// side effect of importing a driver package.
func (r *Registry) Register(kind string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		panic(fmt.Sprintf("provider registry: Register(%q) called after Seal", kind))
	}
	r.constructors[kind] = ctor
}

// Seal closes registration. The swarm controller calls this once, at the
// start of initialize().
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

func (r *Registry) Sealed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sealed
}

// Create builds a driver for kind from rawConfig without initializing it.
func (r *Registry) Create(kind string, rawConfig any) (provider.Driver, error) {
	r.mu.Lock()
	ctor, ok := r.constructors[kind]
	r.mu.Unlock()
	if !ok {
		return nil, swarmerr.NotFound(fmt.Sprintf("no provider driver registered for kind %q", kind))
	}
	return ctor(rawConfig)
}

// CreateAndInitialize builds a driver for kind and calls Initialize on it.
// Used by the swarm controller at startup; a driver that fails to
// initialize is returned as an error so the caller can log and drop it
// rather than fail the whole controller.
func (r *Registry) CreateAndInitialize(ctx context.Context, kind string, rawConfig any) (provider.Driver, error) {
	d, err := r.Create(kind, rawConfig)
	if err != nil {
		return nil, err
	}
	if err := d.Initialize(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// Kinds returns every registered provider kind, in no particular order.
func (r *Registry) Kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]string, 0, len(r.constructors))
	for k := range r.constructors {
		kinds = append(kinds, k)
	}
	return kinds
}
