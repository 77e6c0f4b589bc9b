package store

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/morganforge/sessionkit/token"
)

var (
	// ErrNotFound is returned when a token is unknown to the store.
	ErrNotFound = errors.New("session not found")
	// ErrExpired is returned when a token is known but past its timeout.
	ErrExpired = errors.New("session expired")
	// ErrPoisoned is returned by every operation after a panic was observed
	// inside a critical section, until the store is Reset.
	ErrPoisoned = errors.New("session store poisoned")
)

// EvictionPolicy selects the record sacrificed when an insert finds the store
// at capacity.
type EvictionPolicy uint8

const (
	// EvictOldestCreated evicts the record with the earliest creation
	// instant. This is deliberately not LRU: a long-lived, continuously
	// refreshed session can be evicted ahead of a newer idle one.
	EvictOldestCreated EvictionPolicy = iota
	// EvictLeastActive evicts the record with the earliest activity instant.
	EvictLeastActive
)

// Config carries the store's data parameters. Timeout is an expiry bound on
// record activity age, not an operation deadline; no store operation is
// cancellable mid-flight.
type Config struct {
	Timeout          time.Duration
	AbsoluteLifetime time.Duration
	MaxSessions      int
	Policy           EvictionPolicy
}

// Store is the single owned resource behind the session manager. All mutation
// funnels through its operation set; nothing else may reach the map.
type Store struct {
	mu       sync.RWMutex
	records  map[token.Token]*Record
	byOwner  map[string]map[token.Token]struct{}
	poisoned atomic.Bool

	clock clockwork.Clock
	cfg   Config
}

// New creates an empty store. cfg is assumed validated by the caller.
func New(cfg Config, clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		records: make(map[token.Token]*Record),
		byOwner: make(map[string]map[token.Token]struct{}),
		clock:   clock,
		cfg:     cfg,
	}
}

// Poisoned reports whether the store is in the poisoned state.
func (s *Store) Poisoned() bool {
	return s.poisoned.Load()
}

// read runs fn under shared access. A panic inside fn marks the store
// poisoned and is converted into ErrPoisoned, keeping the failure mode
// uniform with exclusive sections.
func (s *Store) read(fn func() error) (err error) {
	if s.poisoned.Load() {
		return ErrPoisoned
	}
	s.mu.RLock()
	defer func() {
		if r := recover(); r != nil {
			s.poisoned.Store(true)
			err = ErrPoisoned
		}
		s.mu.RUnlock()
	}()
	if s.poisoned.Load() {
		return ErrPoisoned
	}
	return fn()
}

// write runs fn under exclusive access with the same panic conversion. The
// poisoned flag is re-checked under the lock: a writer that panicked sets it
// before releasing, so waiters observe it.
func (s *Store) write(fn func() error) (err error) {
	if s.poisoned.Load() {
		return ErrPoisoned
	}
	s.mu.Lock()
	defer func() {
		if r := recover(); r != nil {
			s.poisoned.Store(true)
			err = ErrPoisoned
		}
		s.mu.Unlock()
	}()
	if s.poisoned.Load() {
		return ErrPoisoned
	}
	return fn()
}

// Peek returns a copy of the record and whether it is logically expired,
// without refreshing or removing anything. Expired records remain physically
// present until reclaimed.
func (s *Store) Peek(id token.Token) (*Record, bool, error) {
	var (
		out     *Record
		expired bool
	)
	err := s.read(func() error {
		rec, ok := s.records[id]
		if !ok {
			return ErrNotFound
		}
		expired = rec.expired(s.clock.Now(), s.cfg.Timeout, s.cfg.AbsoluteLifetime)
		out = rec.Clone()
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, expired, nil
}

// Put inserts or overwrites a record. When the key is new and the store is at
// capacity, exactly one existing record is evicted first, chosen by the
// configured policy; its copy is returned so the caller can audit the
// eviction. The input is cloned before insertion.
func (s *Store) Put(rec *Record) (*Record, error) {
	var evicted *Record
	err := s.write(func() error {
		if _, exists := s.records[rec.ID]; !exists && s.cfg.MaxSessions > 0 && len(s.records) >= s.cfg.MaxSessions {
			if victim := s.victim(); victim != nil {
				evicted = victim.Clone()
				s.deleteLocked(victim.ID)
			}
		}
		s.deleteLocked(rec.ID) // drop any previous owner-index entry on overwrite
		stored := rec.Clone()
		s.records[stored.ID] = stored
		s.indexLocked(stored)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return evicted, nil
}

// GetAndRefresh combines lookup, expiry check, and activity refresh in one
// exclusive critical section, closing the check-then-refresh race against
// concurrent cleanup or removal. Expired records are reported, never
// resurrected, and left in place for reclamation.
func (s *Store) GetAndRefresh(id token.Token) (*Record, error) {
	var out *Record
	err := s.write(func() error {
		rec, ok := s.records[id]
		if !ok {
			return ErrNotFound
		}
		now := s.clock.Now()
		if rec.expired(now, s.cfg.Timeout, s.cfg.AbsoluteLifetime) {
			return ErrExpired
		}
		rec.LastActivity = now
		rec.LastActivityUTC = now.UTC()
		out = rec.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Mutate applies fn to the live record under exclusive access. Absent and
// expired records are rejected before fn runs. A panic inside fn poisons the
// store like any other critical-section panic.
func (s *Store) Mutate(id token.Token, fn func(*Record) error) error {
	return s.write(func() error {
		rec, ok := s.records[id]
		if !ok {
			return ErrNotFound
		}
		if rec.expired(s.clock.Now(), s.cfg.Timeout, s.cfg.AbsoluteLifetime) {
			return ErrExpired
		}
		return fn(rec)
	})
}

// Delete removes a record unconditionally and returns its copy, or nil when
// the token was unknown. Removal of an absent key is not an error.
func (s *Store) Delete(id token.Token) (*Record, error) {
	var removed *Record
	err := s.write(func() error {
		if rec, ok := s.records[id]; ok {
			removed = rec.Clone()
			s.deleteLocked(id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// CleanupExpired removes every logically expired record in one exclusive scan
// and returns copies of the removed records. Cost is linear in current store
// size, bounded by MaxSessions.
func (s *Store) CleanupExpired() ([]*Record, error) {
	var removed []*Record
	err := s.write(func() error {
		now := s.clock.Now()
		for id, rec := range s.records {
			if rec.expired(now, s.cfg.Timeout, s.cfg.AbsoluteLifetime) {
				removed = append(removed, rec.Clone())
				s.deleteLocked(id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// ActiveCount returns the number of records that are not logically expired.
// It is distinct from Len: expired-but-unreclaimed records do not count.
func (s *Store) ActiveCount() (int, error) {
	var count int
	err := s.read(func() error {
		now := s.clock.Now()
		for _, rec := range s.records {
			if !rec.expired(now, s.cfg.Timeout, s.cfg.AbsoluteLifetime) {
				count++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Len returns the raw physical size of the map, expired records included.
func (s *Store) Len() (int, error) {
	var n int
	err := s.read(func() error {
		n = len(s.records)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// ActiveForOwner returns copies of the owner's non-expired records.
func (s *Store) ActiveForOwner(owner string) ([]*Record, error) {
	var out []*Record
	err := s.read(func() error {
		now := s.clock.Now()
		for id := range s.byOwner[owner] {
			rec := s.records[id]
			if rec != nil && !rec.expired(now, s.cfg.Timeout, s.cfg.AbsoluteLifetime) {
				out = append(out, rec.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteAllForOwner removes every record belonging to owner, expired or not,
// and returns copies of the removed records.
func (s *Store) DeleteAllForOwner(owner string) ([]*Record, error) {
	var removed []*Record
	err := s.write(func() error {
		for id := range s.byOwner[owner] {
			if rec, ok := s.records[id]; ok {
				removed = append(removed, rec.Clone())
			}
			delete(s.records, id)
		}
		delete(s.byOwner, owner)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// Remaining returns the time left before the record expires. Zero for expired
// records (with ErrExpired), ErrNotFound for unknown tokens.
func (s *Store) Remaining(id token.Token) (time.Duration, error) {
	var left time.Duration
	err := s.read(func() error {
		rec, ok := s.records[id]
		if !ok {
			return ErrNotFound
		}
		now := s.clock.Now()
		if rec.expired(now, s.cfg.Timeout, s.cfg.AbsoluteLifetime) {
			return ErrExpired
		}
		left = rec.remaining(now, s.cfg.Timeout, s.cfg.AbsoluteLifetime)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return left, nil
}

// Reset drops every record and clears the poisoned flag. This is the
// operator-level recovery action for a poisoned store; it is the only
// operation permitted while poisoned.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[token.Token]*Record)
	s.byOwner = make(map[string]map[token.Token]struct{})
	s.poisoned.Store(false)
}

// victim picks the record to evict under the configured policy. Caller holds
// the exclusive lock.
func (s *Store) victim() *Record {
	var chosen *Record
	for _, rec := range s.records {
		if chosen == nil {
			chosen = rec
			continue
		}
		switch s.cfg.Policy {
		case EvictLeastActive:
			if rec.LastActivity.Before(chosen.LastActivity) {
				chosen = rec
			}
		default:
			if rec.CreatedAt.Before(chosen.CreatedAt) {
				chosen = rec
			}
		}
	}
	return chosen
}

func (s *Store) indexLocked(rec *Record) {
	if rec.Owner == "" {
		return
	}
	set, ok := s.byOwner[rec.Owner]
	if !ok {
		set = make(map[token.Token]struct{})
		s.byOwner[rec.Owner] = set
	}
	set[rec.ID] = struct{}{}
}

func (s *Store) deleteLocked(id token.Token) {
	rec, ok := s.records[id]
	if !ok {
		return
	}
	delete(s.records, id)
	if rec.Owner == "" {
		return
	}
	if set, ok := s.byOwner[rec.Owner]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(s.byOwner, rec.Owner)
		}
	}
}
