package health

import (
	"os"
	"path/filepath"

	"github.com/cuemby/swarmd/pkg/swarmerr"
	"github.com/cuemby/swarmd/pkg/types"
	"gopkg.in/yaml.v3"
)

// healthStore persists one InstanceHealth record per instance under
// <state_dir>/health/<id>.yaml, mirroring the instance registry's record
// layout and round-trip guarantees.
type healthStore struct {
	dir string
}

func newHealthStore(stateDir string) *healthStore {
	return &healthStore{dir: filepath.Join(stateDir, "health")}
}

func (s *healthStore) ensureDir() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return swarmerr.Wrap(swarmerr.InternalKind, "failed to create health state directory", err)
	}
	return nil
}

func (s *healthStore) path(instanceID string) string {
	return filepath.Join(s.dir, instanceID+".yaml")
}

func (s *healthStore) load(instanceID string) (*types.InstanceHealth, bool) {
	data, err := os.ReadFile(s.path(instanceID))
	if err != nil {
		return nil, false
	}
	var h types.InstanceHealth
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, false
	}
	return &h, true
}

func (s *healthStore) write(h *types.InstanceHealth) error {
	data, err := yaml.Marshal(h)
	if err != nil {
		return swarmerr.Wrap(swarmerr.InternalKind, "failed to encode health record", err)
	}
	if err := os.WriteFile(s.path(h.InstanceID), data, 0o644); err != nil {
		return swarmerr.Wrap(swarmerr.InternalKind, "failed to write health record", err)
	}
	return nil
}

func (s *healthStore) remove(instanceID string) {
	_ = os.Remove(s.path(instanceID))
}
