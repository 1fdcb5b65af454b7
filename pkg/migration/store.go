package migration

import (
	"os"
	"path/filepath"

	"github.com/cuemby/swarmd/pkg/swarmerr"
	"github.com/cuemby/swarmd/pkg/types"
	"gopkg.in/yaml.v3"
)

// planStore persists one MigrationPlan record per plan under
// <state_dir>/migrations/<id>.yaml, mirroring pkg/registry's and
// pkg/health's per-entity record layout.
type planStore struct {
	dir string
}

func newPlanStore(stateDir string) *planStore {
	return &planStore{dir: filepath.Join(stateDir, "migrations")}
}

func (s *planStore) ensureDir() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return swarmerr.Wrap(swarmerr.InternalKind, "failed to create migration state directory", err)
	}
	return nil
}

func (s *planStore) path(id string) string {
	return filepath.Join(s.dir, id+".yaml")
}

func (s *planStore) write(p *types.MigrationPlan) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return swarmerr.Wrap(swarmerr.InternalKind, "failed to encode migration plan", err)
	}
	if err := os.WriteFile(s.path(p.ID), data, 0o644); err != nil {
		return swarmerr.Wrap(swarmerr.InternalKind, "failed to write migration plan", err)
	}
	return nil
}

// loadAll reads every persisted plan, skipping and logging any record
// that fails to parse rather than aborting startup.
func (s *planStore) loadAll() ([]*types.MigrationPlan, []error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, nil
	}

	var plans []*types.MigrationPlan
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		var p types.MigrationPlan
		if err := yaml.Unmarshal(data, &p); err != nil {
			errs = append(errs, err)
			continue
		}
		plans = append(plans, &p)
	}
	return plans, errs
}
