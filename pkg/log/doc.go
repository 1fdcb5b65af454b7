/*
Package log provides structured logging using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific child loggers, configurable log levels, and helper
functions for common logging patterns. All logs include timestamps and
support filtering by severity level.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("migration")                │          │
	│  │  - WithInstanceID("inst-abc123")             │          │
	│  │  - WithPlanID("plan-xyz")                    │          │
	│  │  - WithProviderKind("container")             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │  JSON: {"level":"info","component":"health", │          │
	│  │         "instance_id":"inst-1","message":    │          │
	│  │         "check succeeded"}                   │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})
	log.Info("controller initialized")

	healthLog := log.WithComponent("health").With().Str("instance_id", id).Logger()
	healthLog.Info().Msg("check succeeded")

	migLog := log.WithPlanID(plan.ID)
	migLog.Error().Err(err).Msg("step failed")

# Design Patterns

Global Logger: a single package-level zerolog.Logger, initialized once at
startup, accessible from every package without being passed around.

Context Logger: WithComponent/WithInstanceID/WithPlanID/WithProviderKind
return a child logger carrying one extra field; callers chain .With() for
more than one.

# Security

Never log secrets: AuthConfig carries only a password *environment
variable name*, never the resolved value, so normal Instance/Spec logging
never has a secret to redact.
*/
package log
