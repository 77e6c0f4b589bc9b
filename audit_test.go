package sessionkit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func newAuditedManager(t *testing.T, sink AuditSink) (*Manager, *clockwork.FakeClock) {
	t.Helper()

	cfg := testConfig()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	mgr, err := New().
		WithConfig(cfg).
		WithClock(clock).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return mgr, clock
}

func drainEvents(sink *ChannelSink) []AuditEvent {
	var out []AuditEvent
	for {
		select {
		case ev := <-sink.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func eventTypes(events []AuditEvent) map[string]int {
	counts := map[string]int{}
	for _, ev := range events {
		counts[ev.EventType]++
	}
	return counts
}

func TestManagerEmitsLifecycleAuditEvents(t *testing.T) {
	sink := NewChannelSink(64)
	mgr, clock := newAuditedManager(t, sink)
	ctx := context.Background()

	rec, err := mgr.Create(ctx, "alice")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := mgr.GetAndRefresh(ctx, rec.ID); err != nil {
		t.Fatalf("GetAndRefresh: %v", err)
	}
	if _, _, err := mgr.Remove(ctx, rec.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	if _, err := mgr.Create(ctx, "bob"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	clock.Advance(11 * time.Minute)
	if _, err := mgr.CleanupExpired(ctx); err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}

	mgr.Close() // flush the dispatcher

	counts := eventTypes(drainEvents(sink))
	for _, want := range []string{AuditSessionCreated, AuditSessionRefreshed, AuditSessionRemoved, AuditSessionCleanup} {
		if counts[want] == 0 {
			t.Fatalf("missing %s event, got %v", want, counts)
		}
	}
	if counts[AuditSessionCreated] != 2 {
		t.Fatalf("expected 2 created events, got %d", counts[AuditSessionCreated])
	}
}

func TestAuditEventsAreStamped(t *testing.T) {
	sink := NewChannelSink(16)
	mgr, clock := newAuditedManager(t, sink)

	ctx := WithActor(context.Background(), "admin@example.com")
	ctx = WithClientIP(ctx, "203.0.113.9")

	if _, err := mgr.Create(ctx, "alice"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	mgr.Close()

	events := drainEvents(sink)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.EventID == "" {
		t.Fatal("event missing generated ID")
	}
	if !ev.Timestamp.Equal(clock.Now().UTC()) {
		t.Fatalf("timestamp not stamped from clock: %v", ev.Timestamp)
	}
	if ev.Actor != "admin@example.com" {
		t.Fatalf("actor not taken from context: %q", ev.Actor)
	}
	if ev.IP != "203.0.113.9" {
		t.Fatalf("client IP not taken from context: %q", ev.IP)
	}
}

func TestCleanupAuditCarriesRemovalCount(t *testing.T) {
	sink := NewChannelSink(64)
	mgr, clock := newAuditedManager(t, sink)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := mgr.Create(ctx, "alice"); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	clock.Advance(11 * time.Minute)
	if _, err := mgr.CleanupExpired(ctx); err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	mgr.Close()

	var cleanup *AuditEvent
	for _, ev := range drainEvents(sink) {
		if ev.EventType == AuditSessionCleanup {
			cleanup = &ev
		}
	}
	if cleanup == nil {
		t.Fatal("no cleanup event emitted")
	}
	if cleanup.Count != 3 {
		t.Fatalf("expected cleanup count 3, got %d", cleanup.Count)
	}
}

func TestPoisoningIsAuditedOnce(t *testing.T) {
	sink := NewChannelSink(64)
	mgr, _ := newAuditedManager(t, sink)
	ctx := context.Background()

	rec, err := mgr.Create(ctx, "alice")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_ = mgr.store.Mutate(rec.ID, func(*SessionRecord) error {
		panic("corrupted invariant")
	})

	// Several operations observe the poisoned store; the audit trail records
	// the poisoning event once, not once per rejected call.
	for i := 0; i < 5; i++ {
		_, _ = mgr.Get(ctx, rec.ID)
	}
	if err := mgr.ResetStore(ctx); err != nil {
		t.Fatalf("ResetStore: %v", err)
	}
	mgr.Close()

	counts := eventTypes(drainEvents(sink))
	if counts[AuditStorePoisoned] != 1 {
		t.Fatalf("expected exactly 1 poisoned event, got %d", counts[AuditStorePoisoned])
	}
	if counts[AuditStoreReset] != 1 {
		t.Fatalf("expected exactly 1 reset event, got %d", counts[AuditStoreReset])
	}
}

func TestJSONWriterSinkWritesOneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	mgr, _ := newAuditedManager(t, sink)
	ctx := context.Background()

	rec, err := mgr.Create(ctx, "alice")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, _, err := mgr.Remove(ctx, rec.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	mgr.Close()

	scanner := bufio.NewScanner(&buf)
	var lines int
	for scanner.Scan() {
		lines++
		var ev AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", lines, err)
		}
		if ev.EventType == "" {
			t.Fatalf("line %d missing event type", lines)
		}
	}
	if lines != 2 {
		t.Fatalf("expected 2 lines, got %d", lines)
	}
}

type blockingSink struct {
	release chan struct{}
	once    sync.Once
}

func (s *blockingSink) Emit(ctx context.Context, _ AuditEvent) {
	<-s.release
}

func (s *blockingSink) Release() {
	s.once.Do(func() { close(s.release) })
}

func TestDispatcherDropsUnderBackpressure(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}

	cfg := testConfig()
	cfg.Audit.BufferSize = 1
	cfg.Audit.DropIfFull = true

	mgr, err := New().
		WithConfig(cfg).
		WithClock(clockwork.NewFakeClock()).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// With a blocked sink and a one-slot buffer, sustained emission must
	// drop rather than stall session operations.
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		if _, err := mgr.Create(ctx, "alice"); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
	}

	if mgr.AuditDropped() == 0 {
		t.Fatal("expected dropped events under backpressure")
	}

	sink.Release()
	mgr.Close()
}

func TestDispatcherDisabledByConfig(t *testing.T) {
	sink := NewChannelSink(16)

	cfg := testConfig()
	cfg.Audit.Enabled = false

	mgr, err := New().
		WithConfig(cfg).
		WithClock(clockwork.NewFakeClock()).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if _, err := mgr.Create(context.Background(), "alice"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	mgr.Close()

	if events := drainEvents(sink); len(events) != 0 {
		t.Fatalf("expected no events with audit disabled, got %d", len(events))
	}
}
