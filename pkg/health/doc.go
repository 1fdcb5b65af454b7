/*
Package health runs periodic liveness checks over every Running instance
known to the registry and drives a bounded-retry restart policy for the
ones that fail.

# Architecture

	┌────────────────────────── Monitor ───────────────────────────┐
	│  monitorLoop: every CheckInterval, syncHealthChecks()         │
	│  reconciles one healthCheckLoop goroutine per Running         │
	│  instance against the registry (stops loops for instances     │
	│  that left Running, starts loops for new ones)                │
	│                                                                 │
	│  healthCheckLoop: ticks its own instance at CheckInterval,     │
	│  runHealthCheck -> probe -> record -> (optionally) recover     │
	└─────────────────────────────────────────────────────────────┘

Each instance's check loop runs on its own goroutine so a slow or
blocked check against one instance never delays another's.

# Probes

probe() refreshes the instance from its owning provider.Driver first; a
driver-reported non-Running status fails the check without running a
probe at all. Past that, Config.ProbeType selects the check:

  - exec (default): ExecChecker runs Config.ProbeCommand through the
    driver's Exec method (execAdapter), never a local subprocess. This
    is the only probe type that can reach an instance with no published
    network facts.
  - http: HTTPChecker issues a GET against the instance's observed
    NetworkFacts (internal IP + first published port, or the
    requested Spec.Network.Port if nothing is published yet) and
    Config.ProbePath.
  - tcp: TCPChecker dials the same host:port.

HTTP and TCP probes fail closed with a descriptive Result when an
instance has no usable network facts yet, rather than falling back to
exec silently.

# History and persistence

Each instanceMonitor keeps a fixed-size ring buffer (ringBuffer) of the
most recent check results and the instance's current HealthStatus,
serialized to StateDir by a healthStore after every check so Health()
survives a restart before its owning instance's next check tick.

# Recovery

When AutoRecover is set and a check fails, recover() stops then starts
the instance through its driver, consuming one of MaxRecoveryAttempts.
The counter resets to zero on the next healthy check. Recover() exposes
the same logic for an immediate, out-of-band recovery request.
*/
package health
