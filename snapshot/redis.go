package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ErrSnapshotNotFound is returned by [RedisStore.Load] when no snapshot
// exists for the requested session token.
var ErrSnapshotNotFound = errors.New("snapshot: not found")

const defaultKeyPrefix = "sessionkit:snapshot"

// RedisStore persists session snapshots in Redis. It is a collaborator beside
// the engine, never underneath it: the engine stays authoritative and nothing
// loaded from Redis re-enters expiry arithmetic.
type RedisStore struct {
	rdb    *goredis.Client
	prefix string
	log    *slog.Logger
}

// NewRedisStore creates a snapshot store over the given client. An empty
// prefix selects the default key namespace; a nil logger disables logging.
func NewRedisStore(rdb *goredis.Client, prefix string, log *slog.Logger) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &RedisStore{rdb: rdb, prefix: prefix, log: log}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + ":" + id
}

// Save writes the snapshot under its session token. The Redis TTL mirrors the
// snapshot's remaining validity so stale snapshots age out on their own; a
// non-positive remaining stores the key without expiry.
func (s *RedisStore) Save(ctx context.Context, snap Snapshot) error {
	if snap.ID == "" {
		return fmt.Errorf("snapshot: empty session id")
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	var ttl time.Duration
	if snap.Remaining > 0 {
		ttl = snap.Remaining
	}

	if err := s.rdb.Set(ctx, s.key(snap.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}

	s.log.Debug("snapshot saved", "session_id", snap.ID, "ttl", ttl)
	return nil
}

// Load fetches the snapshot for a session token.
func (s *RedisStore) Load(ctx context.Context, id string) (Snapshot, error) {
	raw, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return Snapshot{}, ErrSnapshotNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, nil
}

// Delete removes the snapshot for a session token. Deleting a missing
// snapshot is not an error.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// List scans the snapshot namespace and returns all stored snapshots. Order
// is unspecified.
func (s *RedisStore) List(ctx context.Context) ([]Snapshot, error) {
	var out []Snapshot

	iter := s.rdb.Scan(ctx, 0, s.prefix+":*", 0).Iterator()
	for iter.Next(ctx) {
		raw, err := s.rdb.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, goredis.Nil) {
			// Key expired between SCAN and GET.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load snapshot %s: %w", iter.Val(), err)
		}

		var snap Snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			s.log.Warn("skipping undecodable snapshot", "key", iter.Val(), "error", err)
			continue
		}
		out = append(out, snap)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan snapshots: %w", err)
	}
	return out, nil
}
