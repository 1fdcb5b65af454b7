/*
Package metrics provides Prometheus metrics collection and exposition for
swarmd.

The package defines and registers every swarmd metric using the Prometheus
client library at package init, and exposes them over HTTP for scraping.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  Prometheus Registry (DefaultRegisterer, MustRegister at  │
	│  package init)                                             │
	│                                                            │
	│  Categories:                                               │
	│    Instances: swarmd_instances_total{provider_kind,status} │
	│    Health:    swarmd_instance_health_status,               │
	│               swarmd_health_check_duration_seconds,        │
	│               swarmd_health_checks_total,                  │
	│               swarmd_recovery_attempts_total                │
	│    Migration: swarmd_migration_plans_total,                 │
	│               swarmd_migration_step_duration_seconds,       │
	│               swarmd_migration_plan_duration_seconds        │
	│    Drivers:   swarmd_driver_operation_duration_seconds,     │
	│               swarmd_driver_errors_total                    │
	│    Registry:  swarmd_registry_flush_duration_seconds,       │
	│               swarmd_registry_load_errors_total              │
	│    Swarm:     swarmd_swarm_initialized                      │
	└────────────────────────────────────────────────────────────┘

# Collector

Collector periodically samples pkg/registry and pkg/health through two
small local interfaces (InstanceCounter, HealthSource) rather than
depending on those packages' concrete types directly, since both of them
already import this package to record their own metrics — a direct
dependency back would be a cycle.

# Timer

Timer is a small stopwatch helper: NewTimer starts it, ObserveDuration (or
ObserveDurationVec, for metrics with labels) records the elapsed time to a
histogram in one call, used throughout pkg/health and pkg/migration to
time checks, steps, and plans.

# Process health endpoints

HealthHandler, ReadyHandler, and LivenessHandler serve the process-level
/healthz, /readyz, and /livez endpoints cmd/swarmd exposes alongside
/metrics — these report whether swarmd itself is up and its core
components (registry, drivers) are registered and healthy, distinct from
pkg/health's per-instance health monitor.
*/
package metrics
