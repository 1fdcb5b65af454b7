package registry

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/swarmd/pkg/log"
	"github.com/cuemby/swarmd/pkg/metrics"
	"github.com/cuemby/swarmd/pkg/swarmerr"
	"github.com/cuemby/swarmd/pkg/types"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const recordSuffix = ".yaml"

// Config configures a Registry.
type Config struct {
	StateDir           string
	LoadStateOnStartup bool
	FlushInterval      time.Duration // 0 disables the background flush timer
}

// Registry is the durable, concurrency-safe index of all known instances.
type Registry struct {
	mu sync.RWMutex

	byID   map[string]*types.Instance
	byKind map[string]map[string]struct{} // provider_kind -> set of ids
	byName map[string]string              // name -> id

	dir       string
	cfg       Config
	stopFlush chan struct{}
	log       zerolog.Logger
}

func New(cfg Config) *Registry {
	return &Registry{
		byID:      make(map[string]*types.Instance),
		byKind:    make(map[string]map[string]struct{}),
		byName:    make(map[string]string),
		dir:       filepath.Join(cfg.StateDir, "instances"),
		cfg:       cfg,
		stopFlush: make(chan struct{}),
		log:       log.WithComponent("registry"),
	}
}

// Start loads durable state (if configured) and begins the background
// flush timer (if configured). Must be called once before the registry
// is used.
func (r *Registry) Start() error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return swarmerr.Wrap(swarmerr.InternalKind, "failed to create instance state directory", err)
	}

	if r.cfg.LoadStateOnStartup {
		r.loadState()
	}

	if r.cfg.FlushInterval > 0 {
		go r.flushLoop(r.cfg.FlushInterval)
	}
	return nil
}

// Stop halts the background flush timer. Safe to call even if the timer
// was never started.
func (r *Registry) Stop() {
	select {
	case <-r.stopFlush:
	default:
		close(r.stopFlush)
	}
}

func (r *Registry) loadState() {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(r.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			r.log.Warn().Err(err).Str("path", path).Msg("failed to read instance record, skipping")
			metrics.RegistryLoadErrorsTotal.Inc()
			continue
		}

		var inst types.Instance
		if err := yaml.Unmarshal(data, &inst); err != nil {
			r.log.Warn().Err(err).Str("path", path).Msg("failed to parse instance record, skipping")
			metrics.RegistryLoadErrorsTotal.Inc()
			continue
		}

		r.indexLocked(&inst)
	}
}

func (r *Registry) flushLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.flushAll()
		case <-r.stopFlush:
			return
		}
	}
}

func (r *Registry) flushAll() {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.RegistryFlushDuration)

	r.mu.RLock()
	snapshot := make([]*types.Instance, 0, len(r.byID))
	for _, inst := range r.byID {
		snapshot = append(snapshot, inst)
	}
	r.mu.RUnlock()

	for _, inst := range snapshot {
		if err := r.writeRecord(inst); err != nil {
			r.log.Warn().Err(err).Str("instance_id", inst.ID).Msg("background flush failed for instance")
		}
	}
}

// indexLocked adds inst to all three indexes. Caller must hold r.mu for
// writing (or be in single-threaded startup load, which needs no lock).
func (r *Registry) indexLocked(inst *types.Instance) {
	r.byID[inst.ID] = inst

	if r.byKind[inst.ProviderKind] == nil {
		r.byKind[inst.ProviderKind] = make(map[string]struct{})
	}
	r.byKind[inst.ProviderKind][inst.ID] = struct{}{}

	if inst.Name != "" {
		r.byName[inst.Name] = inst.ID
	}
}

func (r *Registry) unindexLocked(inst *types.Instance) {
	delete(r.byID, inst.ID)
	if set, ok := r.byKind[inst.ProviderKind]; ok {
		delete(set, inst.ID)
		if len(set) == 0 {
			delete(r.byKind, inst.ProviderKind)
		}
	}
	if r.byName[inst.Name] == inst.ID {
		delete(r.byName, inst.Name)
	}
}

// Register adds a new instance to the registry, writing through to disk.
func (r *Registry) Register(inst *types.Instance) error {
	r.mu.Lock()
	r.indexLocked(inst)
	r.mu.Unlock()

	return r.writeRecord(inst)
}

// Update replaces the registry's record for inst.ID with inst, writing
// through to disk. The by-kind index is re-synced inside the same
// critical section in case provider_kind changed (it shouldn't, in
// practice, but the index must never be allowed to drift from byID).
func (r *Registry) Update(inst *types.Instance) error {
	r.mu.Lock()
	if old, ok := r.byID[inst.ID]; ok {
		r.unindexLocked(old)
	}
	r.indexLocked(inst)
	r.mu.Unlock()

	return r.writeRecord(inst)
}

// Remove deletes the in-memory entry and best-effort deletes the on-disk
// record; a file-deletion failure is logged, not returned.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	inst, ok := r.byID[id]
	if ok {
		r.unindexLocked(inst)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	if err := os.Remove(r.recordPath(id)); err != nil && !os.IsNotExist(err) {
		r.log.Warn().Err(err).Str("instance_id", id).Msg("failed to delete instance record")
	}
}

// Get returns the instance by id, or nil if unknown.
func (r *Registry) Get(id string) *types.Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// GetByName returns the instance with the given name, or nil.
func (r *Registry) GetByName(name string) *types.Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	if !ok {
		return nil
	}
	return r.byID[id]
}

// List returns instances matching filter, or all instances if filter is
// nil. Predicates are ANDed; results are sorted by id for deterministic
// pagination before offset/limit are applied.
func (r *Registry) List(filter *types.Filter) ([]*types.Instance, error) {
	r.mu.RLock()
	all := make([]*types.Instance, 0, len(r.byID))
	for _, inst := range r.byID {
		all = append(all, inst)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	if filter == nil {
		return all, nil
	}

	var namePattern *regexp.Regexp
	if filter.NamePattern != "" {
		p, err := regexp.Compile("(?i)" + filter.NamePattern)
		if err != nil {
			return nil, swarmerr.Wrap(swarmerr.InvalidArgKind, "invalid name_pattern", err)
		}
		namePattern = p
	}

	statusSet := make(map[types.InstanceStatus]struct{}, len(filter.Status))
	for _, s := range filter.Status {
		statusSet[s] = struct{}{}
	}

	matched := make([]*types.Instance, 0, len(all))
	for _, inst := range all {
		if len(statusSet) > 0 {
			if _, ok := statusSet[inst.Status]; !ok {
				continue
			}
		}
		if namePattern != nil && !namePattern.MatchString(inst.Name) {
			continue
		}
		if filter.CreatedAfter != nil && !inst.CreatedAt.After(*filter.CreatedAfter) {
			continue
		}
		if filter.CreatedBefore != nil && !inst.CreatedAt.Before(*filter.CreatedBefore) {
			continue
		}
		if !tagsMatch(inst.Metadata, filter.Tags) {
			continue
		}
		matched = append(matched, inst)
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func tagsMatch(metadata map[string]string, tags map[string]string) bool {
	for k, v := range tags {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

// ListByKind returns every instance currently indexed under providerKind.
func (r *Registry) ListByKind(providerKind string) []*types.Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byKind[providerKind]
	result := make([]*types.Instance, 0, len(ids))
	for id := range ids {
		if inst, ok := r.byID[id]; ok {
			result = append(result, inst)
		}
	}
	return result
}

// Count returns the total number of known instances, and per-kind counts.
func (r *Registry) Count() (total int, byKind map[string]int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byKind = make(map[string]int, len(r.byKind))
	for kind, ids := range r.byKind {
		byKind[kind] = len(ids)
	}
	return len(r.byID), byKind
}

func (r *Registry) recordPath(id string) string {
	return filepath.Join(r.dir, id+recordSuffix)
}

func (r *Registry) writeRecord(inst *types.Instance) error {
	data, err := yaml.Marshal(inst)
	if err != nil {
		return swarmerr.Wrap(swarmerr.InternalKind, "failed to encode instance record", err)
	}
	if err := os.WriteFile(r.recordPath(inst.ID), data, 0o644); err != nil {
		return swarmerr.Wrap(swarmerr.InternalKind, "failed to write instance record", err)
	}
	return nil
}
