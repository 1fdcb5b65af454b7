/*
Package registry is the single source of truth for which instances exist
and what the system believes about them.

Every instance is kept in memory under one map, and durably on disk as one
self-describing YAML record per instance. Three indexes are kept behind a
single sync.RWMutex:

	┌───────────────────── INSTANCE REGISTRY ─────────────────────┐
	│                                                                │
	│   byID      map[string]*types.Instance   (primary)            │
	│   byKind    map[string]map[string]struct{}  (provider_kind)   │
	│   byName    map[string]string            (name -> id)         │
	│                                                                │
	│   register/update/remove mutate all three under one lock,     │
	│   then write (or delete) the corresponding on-disk record.     │
	└────────────────────────────────────────────────────────────────┘

On startup, loadState walks <state_dir>/instances/*.yaml; an unparseable
record is logged and skipped rather than aborting startup. An optional
background flush timer re-serializes every record periodically as a
durability belt on top of the write-through path.
*/
package registry
