// Package migration drives one instance's move from a source provider
// driver to a target provider driver as a durable, resumable step-by-step
// state machine.
//
//	┌───────────────────────────────────────────────────────────┐
//	│                         Engine                              │
//	│  plans: map[id]*types.MigrationPlan (persisted as YAML)     │
//	│  running: map[id]bool  (single-flight per plan, under mu)   │
//	│                                                              │
//	│  create_plan -> Pending -> start -> InProgress -> Completed  │
//	│                                          \-> Failed          │
//	│                                          \-> Cancelled       │
//	│                                          \-> TimedOut        │
//	└───────────────────────────────────────────────────────────┘
//
// Each strategy fixes an ordered list of steps (types.StepsFor); the
// engine looks up a step function from a map built once per strategy,
// mirroring the FSM's command-dispatch table shape but keyed on data
// (plan steps) rather than a closed set of Raft log commands.
//
// Soft reservation of the source/target instance id during execution is
// not implemented: two concurrent migration plans sharing a source
// instance id can race each other's steps. Called out here rather than
// silently patched over.
package migration
