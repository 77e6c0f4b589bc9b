// Package sessionkit provides an in-memory session lifecycle engine: it mints
// unpredictable bearer tokens, tracks per-session activity, enforces an
// inactivity time-to-live, and bounds total memory through capacity-driven
// eviction, all under arbitrary caller concurrency.
//
// The package is designed for concurrent server workloads: Manager methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// sessionkit is the public surface. It exposes [Manager], [Builder], [Config],
// the audit and metrics types, and the [SessionRecord] value. The guarded map
// and its locking discipline live in the store package; token minting and
// shape validation live in the token package. Nothing else may reach the map:
// all mutation funnels through the documented Manager operation set.
//
// # What this package must NOT do
//
//   - Verify credentials or transport tokens over a network. It manages the
//     lifecycle of an opaque, already-issued token and nothing more.
//   - Persist live sessions. The snapshot package is an external collaborator
//     that serializes record snapshots; the live store never reads from it.
//   - Spawn background work implicitly. Periodic reclamation is an explicit
//     collaborator ([Janitor]) the caller starts and stops.
//
// # Failure contract
//
// No store condition terminates the process. Absent and expired tokens are
// ordinary branchable outcomes ([ErrSessionNotFound], [ErrSessionExpired]).
// A panic inside a store critical section marks the store poisoned; every
// subsequent operation returns [ErrStorePoisoned] until an operator calls
// [Manager.ResetStore].
package sessionkit
