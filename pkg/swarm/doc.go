// Package swarm owns the lifecycle of every other component: the loaded
// provider drivers (A/B), the instance registry (C), the health monitor
// (D), and the migration engine (E). It is the one type external
// collaborators (an RPC server, a CLI) call into.
//
//	┌──────────────────────────────────────────────────────────┐
//	│                       Controller                          │
//	│  drivers: map[provider_kind]provider.Driver                │
//	│  dispatch: per-instance-id striped mutexes                 │
//	│                                                             │
//	│  initialize(): drivers -> registry -> health -> migration   │
//	│  dispose():    health -> migration -> registry              │
//	└──────────────────────────────────────────────────────────┘
//
// Every operation the controller dispatches to a driver itself on an
// existing instance id (Get, Start, Stop, Delete, Update, Exec, Logs)
// takes that id's stripe lock before touching the registry or the driver,
// so the registry lookup and the driver call are never separated by a
// yield a concurrent writer could exploit; operations on distinct ids
// proceed independently. CheckHealth, Recover and the migration calls are
// passed to the health monitor and migration engine without taking it.
package swarm
