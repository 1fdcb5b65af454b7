/*
Package types defines the core data model of the swarm control plane.

This package contains the structures shared by every other package in this
module: the provider-neutral Instance record, its health snapshot, the
durable migration plan, and the static capability description each driver
publishes. Nothing in this package talks to a backend or to disk — it is
pure data plus the small amount of validation/helper logic that has no
better home.

# Core Types

Instance lifecycle:
  - Instance: one remote development environment, across any provider
  - InstanceStatus: Creating, Running, Stopped, Failed, Deleted
  - Spec: the immutable creation request (image, resources, network, env)
  - ResourceUsage / NetworkFacts: live facts refreshed from the backend

Health:
  - InstanceHealth: bounded history of recent health snapshots
  - HealthStatus: Healthy, Unhealthy, Degraded, Recovering, Unknown

Migration:
  - MigrationPlan: durable record of one migration attempt
  - MigrationStep / MigrationStrategy: step ordering for StopAndRecreate and
    CreateThenStop

Capabilities:
  - ProviderCapabilities: static, per-driver facts about what it can do

# Design Patterns

Enums are typed strings, matching the driver and registry packages'
convention of comparing against named constants rather than raw strings.

Optional fields use pointers (*ResourceUsage, *NetworkFacts) so the zero
value unambiguously means "not yet observed," distinct from an observed
all-zero value.

# Thread Safety

Values in this package carry no synchronization of their own. Once an
*Instance (or *MigrationPlan, *InstanceHealth) crosses into the registry it
is owned by the registry's locking; callers must not mutate a pointer they
got back from a registry read.
*/
package types
