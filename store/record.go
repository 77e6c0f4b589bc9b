package store

import (
	"time"

	"github.com/morganforge/sessionkit/token"
)

// Record is the data held per session.
//
// CreatedAt and LastActivity are clock instants: under the real clock they
// carry a monotonic reading and are the only fields that participate in expiry
// arithmetic. CreatedAtUTC and LastActivityUTC are wall-clock mirrors carried
// for audit and display; wall time can jump (clock sync, DST) and must never
// decide expiry.
type Record struct {
	ID    token.Token
	Owner string

	CreatedAt    time.Time
	LastActivity time.Time

	CreatedAtUTC    time.Time
	LastActivityUTC time.Time

	// Metadata belongs to whichever component owns the session. Mutation
	// still goes through a store operation to stay inside the locking
	// discipline.
	Metadata map[string]string

	// Authenticated is set by a collaborator after verifying credentials;
	// credential verification itself is outside this module.
	Authenticated bool
}

// Clone returns a deep copy. The store hands out only clones so callers can
// never mutate shared state outside the lock.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.Metadata != nil {
		out.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// expired reports whether the record is past its validity window at now.
// A zero absolute lifetime disables the creation-age cap.
func (r *Record) expired(now time.Time, timeout, absolute time.Duration) bool {
	if now.Sub(r.LastActivity) > timeout {
		return true
	}
	if absolute > 0 && now.Sub(r.CreatedAt) > absolute {
		return true
	}
	return false
}

// remaining returns the time left before the record expires at now, never
// negative.
func (r *Record) remaining(now time.Time, timeout, absolute time.Duration) time.Duration {
	left := timeout - now.Sub(r.LastActivity)
	if absolute > 0 {
		if capLeft := absolute - now.Sub(r.CreatedAt); capLeft < left {
			left = capLeft
		}
	}
	if left < 0 {
		return 0
	}
	return left
}
