/*
Package containerdriver implements pkg/provider.Driver against a local
container engine by invoking its CLI — the same docker-compatible binary a
developer would run by hand — rather than linking a client SDK.

	┌────────────────── CONTAINER DRIVER ───────────────────┐
	│                                                          │
	│   create/start/stop/delete/update                       │
	│        │                                                 │
	│        ▼                                                 │
	│   argv builder  ──exec.CommandContext──▶  CLI binary    │
	│        │                                      │          │
	│        ▼                                      ▼          │
	│   JSON inspect parser               stdout/stderr/exit   │
	│        │                                                 │
	│        ▼                                                 │
	│   types.Instance (status, network, usage)               │
	└──────────────────────────────────────────────────────────┘

`initialize()` probes the CLI with a version query and lazily creates a
shared bridge network if one doesn't already exist. Status mapping follows
the documented inspect schema: running -> Running, exited/created/paused ->
Stopped, restarting -> Creating, removing -> Deleted, dead/unknown ->
Failed.
*/
package containerdriver
