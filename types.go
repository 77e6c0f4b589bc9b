package sessionkit

import (
	"time"

	"github.com/morganforge/sessionkit/store"
)

// SessionRecord is the data held per session. It is defined in the store
// package so the locking discipline and the record live together; the alias
// keeps the public surface in one place.
//
//	Docs: store/record.go
type SessionRecord = store.Record

// SessionState is the introspection view of a record's lifecycle position.
// Warning is a sub-state of Active, not a new edge: no state ever returns to
// Active once Expired.
type SessionState int

const (
	// StateActive indicates the session is live and usable.
	StateActive SessionState = iota
	// StateWarning indicates the session is live but inside the configured
	// warning window before expiry.
	StateWarning
	// StateExpired indicates the session is past its validity window and
	// requires re-authentication.
	StateExpired
)

// String returns the canonical upper-case name of the state.
func (s SessionState) String() string {
	switch s {
	case StateActive:
		return "ACTIVE"
	case StateWarning:
		return "WARNING"
	case StateExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// IsActive reports whether the state still allows activity.
func (s SessionState) IsActive() bool {
	return s == StateActive || s == StateWarning
}

// HealthStatus is an on-demand store health result for readiness endpoints.
type HealthStatus struct {
	StorePoisoned bool
	StoreSize     int
	ActiveCount   int
}

// StateView pairs a session's state with its remaining validity, as reported
// by [Manager.State].
type StateView struct {
	State     SessionState
	Remaining time.Duration
}
