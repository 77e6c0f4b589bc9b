// Package store holds the concurrently-guarded session map and its locking
// discipline.
//
// A single sync.RWMutex protects one map. Read-only lookups take shared access;
// every mutation, including a pure activity refresh, takes exclusive access.
// Compound operations that must be atomic (insert with capacity eviction,
// get-and-refresh, the cleanup scan) run inside one critical section so their
// atomicity is structural rather than convention.
//
// Go locks do not poison, so the failure mode is re-architected as an explicit
// result: a panic observed inside a critical section marks the store poisoned,
// and every subsequent operation returns [ErrPoisoned] until an operator calls
// [Store.Reset]. The store never attempts to self-heal, since the consistency
// of the map cannot be verified after a poisoning event.
//
// No operation performs I/O or blocks while holding the lock; hold times are
// bounded by the O(n) cleanup and eviction scans, with n capped at the
// configured session limit.
package store
