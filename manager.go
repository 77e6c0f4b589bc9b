package sessionkit

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"github.com/morganforge/sessionkit/store"
	"github.com/morganforge/sessionkit/token"
)

// Manager is the public façade over the session store. It owns the store
// exclusively: all mutation funnels through the operation set below, and every
// operation is safe for an arbitrary number of concurrent callers. The Manager
// never spawns background work of its own; periodic reclamation is the job of
// an external caller such as [Janitor].
type Manager struct {
	config  Config
	clock   clockwork.Clock
	gen     *token.Generator
	store   *store.Store
	audit   *auditDispatcher
	metrics *Metrics

	poisonSeen atomic.Bool
}

// Create generates a token, builds a record with created_at = last_activity =
// now and authenticated false, stores it under the capacity policy, and
// returns a copy. owner may be empty.
//
//	Performance: one exclusive lock acquisition; O(n) only when evicting.
func (m *Manager) Create(ctx context.Context, owner string) (*SessionRecord, error) {
	if m == nil || m.store == nil {
		return nil, ErrManagerNotReady
	}

	now := m.clock.Now()
	rec := &store.Record{
		ID:              m.gen.Generate(),
		Owner:           owner,
		CreatedAt:       now,
		LastActivity:    now,
		CreatedAtUTC:    now.UTC(),
		LastActivityUTC: now.UTC(),
		Metadata:        map[string]string{},
	}

	evicted, err := m.store.Put(rec)
	if err != nil {
		return nil, m.fail(ctx, err)
	}

	if evicted != nil {
		m.metrics.Inc(MetricSessionEvicted)
		m.audit.Emit(ctx, AuditEvent{
			EventType: AuditSessionEvicted,
			SessionID: evicted.ID.String(),
			Owner:     evicted.Owner,
		})
	}

	m.metrics.Inc(MetricSessionCreated)
	m.audit.Emit(ctx, AuditEvent{
		EventType: AuditSessionCreated,
		SessionID: rec.ID.String(),
		Owner:     owner,
	})

	return rec.Clone(), nil
}

// Store inserts or overwrites a caller-constructed record. The capacity
// policy applies only when the key is new. Zero timestamps are filled with
// now; an activity instant before the creation instant is rejected with
// [ErrRecordInvalid].
func (m *Manager) Store(ctx context.Context, rec *SessionRecord) error {
	if m == nil || m.store == nil {
		return ErrManagerNotReady
	}
	if rec == nil || rec.ID == "" {
		return ErrRecordInvalid
	}

	filled := rec.Clone()
	now := m.clock.Now()
	if filled.CreatedAt.IsZero() {
		filled.CreatedAt = now
		filled.CreatedAtUTC = now.UTC()
	}
	if filled.LastActivity.IsZero() {
		filled.LastActivity = filled.CreatedAt
		filled.LastActivityUTC = filled.CreatedAtUTC
	}
	if filled.LastActivity.Before(filled.CreatedAt) {
		return ErrRecordInvalid
	}
	if filled.Metadata == nil {
		filled.Metadata = map[string]string{}
	}

	evicted, err := m.store.Put(filled)
	if err != nil {
		return m.fail(ctx, err)
	}

	if evicted != nil {
		m.metrics.Inc(MetricSessionEvicted)
		m.audit.Emit(ctx, AuditEvent{
			EventType: AuditSessionEvicted,
			SessionID: evicted.ID.String(),
			Owner:     evicted.Owner,
		})
	}

	m.metrics.Inc(MetricSessionStored)
	m.audit.Emit(ctx, AuditEvent{
		EventType: AuditSessionStored,
		SessionID: filled.ID.String(),
		Owner:     filled.Owner,
	})

	return nil
}

// Get is a shared-lock lookup for read-only introspection. It reports
// [ErrSessionExpired] for records past their window without removing them;
// request handlers should prefer [Manager.GetAndRefresh].
func (m *Manager) Get(ctx context.Context, id token.Token) (*SessionRecord, error) {
	if m == nil || m.store == nil {
		return nil, ErrManagerNotReady
	}

	rec, expired, err := m.store.Peek(id)
	if err != nil {
		return nil, m.fail(ctx, err)
	}
	if expired {
		m.metrics.Inc(MetricSessionExpiredObserved)
		return nil, ErrSessionExpired
	}
	return rec, nil
}

// Refresh sets last_activity to now under the exclusive lock. It never
// resurrects an expired session.
func (m *Manager) Refresh(ctx context.Context, id token.Token) error {
	_, err := m.GetAndRefresh(ctx, id)
	return err
}

// GetAndRefresh combines lookup, expiry check, and refresh in one exclusive
// critical section. A session validated here cannot be expired or reclaimed
// between the check and the refresh; this is the operation request handlers
// should call on every authenticated request.
func (m *Manager) GetAndRefresh(ctx context.Context, id token.Token) (*SessionRecord, error) {
	if m == nil || m.store == nil {
		return nil, ErrManagerNotReady
	}

	start := m.clock.Now()
	rec, err := m.store.GetAndRefresh(id)
	m.metrics.Observe(MetricRefreshLatency, m.clock.Now().Sub(start))

	if err != nil {
		switch {
		case errors.Is(err, ErrSessionNotFound):
			m.metrics.Inc(MetricSessionNotFound)
		case errors.Is(err, ErrSessionExpired):
			m.metrics.Inc(MetricSessionExpiredObserved)
			m.audit.Emit(ctx, AuditEvent{
				EventType: AuditSessionExpired,
				SessionID: id.String(),
			})
		}
		return nil, m.fail(ctx, err)
	}

	m.metrics.Inc(MetricSessionRefreshed)
	m.audit.Emit(ctx, AuditEvent{
		EventType: AuditSessionRefreshed,
		SessionID: rec.ID.String(),
		Owner:     rec.Owner,
	})

	return rec, nil
}

// Remove deletes a record unconditionally and returns the removed copy.
// Removing an unknown token is not an error; ok reports whether a record was
// actually present.
func (m *Manager) Remove(ctx context.Context, id token.Token) (*SessionRecord, bool, error) {
	if m == nil || m.store == nil {
		return nil, false, ErrManagerNotReady
	}

	removed, err := m.store.Delete(id)
	if err != nil {
		return nil, false, m.fail(ctx, err)
	}
	if removed == nil {
		return nil, false, nil
	}

	m.metrics.Inc(MetricSessionRemoved)
	m.audit.Emit(ctx, AuditEvent{
		EventType: AuditSessionRemoved,
		SessionID: removed.ID.String(),
		Owner:     removed.Owner,
	})

	return removed, true, nil
}

// CleanupExpired reclaims every logically expired record in one exclusive
// scan and returns how many were removed. External callers are expected to
// invoke it on a fixed interval, or rely on lazy detection in Get/Refresh.
func (m *Manager) CleanupExpired(ctx context.Context) (int, error) {
	if m == nil || m.store == nil {
		return 0, ErrManagerNotReady
	}

	removed, err := m.store.CleanupExpired()
	if err != nil {
		return 0, m.fail(ctx, err)
	}

	m.metrics.Inc(MetricCleanupRuns)
	m.metrics.Add(MetricCleanupRemoved, uint64(len(removed)))

	if len(removed) > 0 {
		m.audit.Emit(ctx, AuditEvent{
			EventType: AuditSessionCleanup,
			Count:     len(removed),
		})
	}

	return len(removed), nil
}

// ActiveCount returns the number of non-expired records under shared access.
// Expired-but-unreclaimed records do not count; see [Manager.Len] for the
// physical size.
func (m *Manager) ActiveCount(ctx context.Context) (int, error) {
	if m == nil || m.store == nil {
		return 0, ErrManagerNotReady
	}

	count, err := m.store.ActiveCount()
	if err != nil {
		return 0, m.fail(ctx, err)
	}
	return count, nil
}

// Len returns the raw store size, expired records included.
func (m *Manager) Len(ctx context.Context) (int, error) {
	if m == nil || m.store == nil {
		return 0, ErrManagerNotReady
	}

	n, err := m.store.Len()
	if err != nil {
		return 0, m.fail(ctx, err)
	}
	return n, nil
}

// SessionsForOwner returns copies of the owner's non-expired sessions.
func (m *Manager) SessionsForOwner(ctx context.Context, owner string) ([]*SessionRecord, error) {
	if m == nil || m.store == nil {
		return nil, ErrManagerNotReady
	}
	if owner == "" {
		return nil, nil
	}

	recs, err := m.store.ActiveForOwner(owner)
	if err != nil {
		return nil, m.fail(ctx, err)
	}
	return recs, nil
}

// RemoveAllForOwner removes every session belonging to owner, expired or not,
// and returns how many were removed.
func (m *Manager) RemoveAllForOwner(ctx context.Context, owner string) (int, error) {
	if m == nil || m.store == nil {
		return 0, ErrManagerNotReady
	}
	if owner == "" {
		return 0, nil
	}

	removed, err := m.store.DeleteAllForOwner(owner)
	if err != nil {
		return 0, m.fail(ctx, err)
	}

	for _, rec := range removed {
		m.metrics.Inc(MetricSessionRemoved)
		m.audit.Emit(ctx, AuditEvent{
			EventType: AuditSessionRemoved,
			SessionID: rec.ID.String(),
			Owner:     rec.Owner,
		})
	}

	return len(removed), nil
}

// SetMetadata sets one metadata key on a live session. Metadata belongs to
// the session's owner, but mutation goes through the store so it stays inside
// the locking discipline.
func (m *Manager) SetMetadata(ctx context.Context, id token.Token, key, value string) error {
	if m == nil || m.store == nil {
		return ErrManagerNotReady
	}

	err := m.store.Mutate(id, func(rec *store.Record) error {
		if rec.Metadata == nil {
			rec.Metadata = map[string]string{}
		}
		rec.Metadata[key] = value
		return nil
	})
	return m.fail(ctx, err)
}

// DeleteMetadata removes one metadata key from a live session.
func (m *Manager) DeleteMetadata(ctx context.Context, id token.Token, key string) error {
	if m == nil || m.store == nil {
		return ErrManagerNotReady
	}

	err := m.store.Mutate(id, func(rec *store.Record) error {
		delete(rec.Metadata, key)
		return nil
	})
	return m.fail(ctx, err)
}

// MarkAuthenticated flags a live session as credential-verified. The
// verification itself happens elsewhere; this only records its outcome.
func (m *Manager) MarkAuthenticated(ctx context.Context, id token.Token) error {
	if m == nil || m.store == nil {
		return ErrManagerNotReady
	}

	err := m.store.Mutate(id, func(rec *store.Record) error {
		rec.Authenticated = true
		return nil
	})
	return m.fail(ctx, err)
}

// State reports the session's lifecycle position and remaining validity. A
// present-but-expired session yields StateExpired with no error; an unknown
// token yields [ErrSessionNotFound].
func (m *Manager) State(ctx context.Context, id token.Token) (StateView, error) {
	if m == nil || m.store == nil {
		return StateView{}, ErrManagerNotReady
	}

	remaining, err := m.store.Remaining(id)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return StateView{State: StateExpired}, nil
		}
		return StateView{}, m.fail(ctx, err)
	}

	state := StateActive
	if warn := m.config.Session.WarningBefore; warn > 0 && remaining <= warn {
		state = StateWarning
	}
	return StateView{State: state, Remaining: remaining}, nil
}

// ResetStore is the operator-level recovery action for a poisoned store. It
// drops every record, clears the poisoned state, and resumes service. It is
// deliberately not automatic: the consistency of the map cannot be verified
// after a poisoning event, so recovery must be an explicit decision.
func (m *Manager) ResetStore(ctx context.Context) error {
	if m == nil || m.store == nil {
		return ErrManagerNotReady
	}

	m.store.Reset()
	m.poisonSeen.Store(false)
	m.metrics.Inc(MetricStoreReset)
	m.audit.Emit(ctx, AuditEvent{EventType: AuditStoreReset})
	return nil
}

// Health returns a point-in-time store health view for readiness endpoints.
// Counts are best-effort zero while poisoned.
func (m *Manager) Health(ctx context.Context) HealthStatus {
	if m == nil || m.store == nil {
		return HealthStatus{}
	}

	status := HealthStatus{StorePoisoned: m.store.Poisoned()}
	if status.StorePoisoned {
		return status
	}
	status.StoreSize, _ = m.Len(ctx)
	status.ActiveCount, _ = m.ActiveCount(ctx)
	return status
}

// TokenPrefix returns the prefix of tokens minted by this Manager.
func (m *Manager) TokenPrefix() string {
	if m == nil || m.gen == nil {
		return ""
	}
	return m.gen.Prefix()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}, Histograms: map[MetricID][]uint64{}}
	}
	return m.metrics.Snapshot()
}

// AuditDropped returns how many audit events the dispatcher discarded under
// backpressure.
func (m *Manager) AuditDropped() uint64 {
	if m == nil {
		return 0
	}
	return m.audit.Dropped()
}

// Close drains and stops the audit dispatcher. The store itself holds no
// background resources.
func (m *Manager) Close() {
	if m == nil {
		return
	}
	m.audit.Close()
}

// fail funnels store errors through one place so poisoning is counted and
// audited exactly once per poisoning event, no matter which operation
// observed it first.
func (m *Manager) fail(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorePoisoned) {
		m.metrics.Inc(MetricStorePoisoned)
		if m.poisonSeen.CompareAndSwap(false, true) {
			m.audit.Emit(ctx, AuditEvent{EventType: AuditStorePoisoned})
		}
	}
	return err
}
