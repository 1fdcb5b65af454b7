/*
Package clouddriver implements pkg/provider.Driver against a token-
authenticated micro-VM platform modeled on an "application holds machines"
shape: every instance lives inside a platform "application" object, created
idempotently (a 409 on the create call means another caller already made
it, which this driver treats as success), and is itself a "machine" inside
that application.

	┌─────────────────── CLOUD DRIVER ────────────────────┐
	│                                                       │
	│  create(name, spec)                                  │
	│       │                                              │
	│       ▼                                               │
	│  ensureApplication(name)  ──idempotent, 409-tolerant  │
	│       │                                              │
	│       ▼                                               │
	│  createMachine(appID, machineSpec)                    │
	│       │                                              │
	│       ▼                                               │
	│  types.Instance (status, network, usage)              │
	└───────────────────────────────────────────────────────┘

HTTP status codes are translated to neutral swarmerr kinds: 401 ->
Authentication (non-retryable), 404 -> NotFound (non-retryable), 429 ->
RateLimited (retryable), 5xx or transport failure -> Internal (retryable),
anything else -> ApiRequest (non-retryable). Retryable calls are retried
with github.com/cenkalti/backoff/v5, bounded by a configured max delay.
*/
package clouddriver
