/*
Package provider defines the driver contract every backend plugs into, plus
the shared helpers both shipped drivers (pkg/provider/containerdriver,
pkg/provider/clouddriver) compose instead of duplicating.

The contract is deliberately small and asynchronous: every method takes a
context.Context and returns a neutral error from pkg/swarmerr. A driver
holds no durable state of its own — everything that must survive a restart
belongs to the instance registry (pkg/registry) or to the backend itself.

# Shared helpers

NewInstanceID, BaseInstance, and ValidateSpec exist so that "how do we mint
an id" and "what does a freshly-created Instance look like before the
backend fills in live facts" are answered once, not once per driver.
*/
package provider
