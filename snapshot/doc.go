// Package snapshot serializes session records for export to external systems.
//
// The session engine is purely in-memory. When an application wants warm
// restarts, cross-process introspection, or an audit trail of session state,
// it captures [Snapshot] values from records the engine hands out and ships
// them to a [RedisStore]. Snapshots are one-way: they carry the wall-clock
// view only and are never loaded back into the live engine.
//
// # What this package must NOT do
//
//   - Back the live session store. Expiry and eviction stay in-process.
//   - Carry monotonic clock instants across process boundaries.
package snapshot
