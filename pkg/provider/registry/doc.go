// Package registry is the provider factory: a process-wide map from
// provider-kind tag to the constructor that builds a driver for it.
//
//	┌─────────────────────────────────────────────┐
//	│                 Registry                     │
//	│  "container" -> Constructor(containerdriver)  │
//	│  "cloud"     -> Constructor(clouddriver)      │
//	└─────────────────────────────────────────────┘
//
// Registration happens once, at process startup, before the swarm
// controller's initialize() runs. Once Seal is called, any further
// Register panics: this is a single explicit registration phase, not an
// import-time side effect, so the set of available provider kinds is
// fixed and visible at the call site that builds the Registry rather
// than scattered across package init() functions.
package registry
