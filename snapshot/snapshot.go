package snapshot

import (
	"time"

	sessionkit "github.com/morganforge/sessionkit"
)

// Snapshot is the serializable view of a session record. Only the wall-clock
// mirrors are carried; monotonic instants are process-local and meaningless
// outside the engine that produced them, so a loaded snapshot can never be
// fed back into expiry arithmetic.
type Snapshot struct {
	ID            string            `json:"id"`
	Owner         string            `json:"owner,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	LastActivity  time.Time         `json:"last_activity"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Authenticated bool              `json:"authenticated"`

	// Remaining is the validity window left at capture time. It is advisory:
	// the live engine remains the only authority on expiry.
	Remaining time.Duration `json:"remaining_ns"`
}

// Capture converts a session record handed out by the engine into its
// serializable snapshot.
func Capture(rec *sessionkit.SessionRecord, remaining time.Duration) Snapshot {
	if rec == nil {
		return Snapshot{}
	}
	snap := Snapshot{
		ID:            rec.ID.String(),
		Owner:         rec.Owner,
		CreatedAt:     rec.CreatedAtUTC,
		LastActivity:  rec.LastActivityUTC,
		Authenticated: rec.Authenticated,
		Remaining:     remaining,
	}
	if rec.Metadata != nil {
		snap.Metadata = make(map[string]string, len(rec.Metadata))
		for k, v := range rec.Metadata {
			snap.Metadata[k] = v
		}
	}
	return snap
}
