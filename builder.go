package sessionkit

import (
	"errors"

	"github.com/jonboulle/clockwork"
	"github.com/morganforge/sessionkit/store"
	"github.com/morganforge/sessionkit/token"
)

// Builder defines a public type used by sessionkit APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config    Config
	clock     clockwork.Clock
	auditSink AuditSink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithClock injects the clock used for every time read. Tests pass a
// clockwork fake clock; production builds default to the real clock.
func (b *Builder) WithClock(clock clockwork.Clock) *Builder {
	b.clock = clock
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clock := b.clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	prefix := cfg.Session.TokenPrefix
	if prefix == "" {
		prefix = token.DefaultPrefix
	}

	// An unreadable entropy source fails here, at startup, never per call.
	gen, err := token.NewGenerator(prefix, clock)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		config: cfg,
		clock:  clock,
		gen:    gen,
		store: store.New(store.Config{
			Timeout:          cfg.Session.Timeout,
			AbsoluteLifetime: cfg.Session.AbsoluteLifetime,
			MaxSessions:      cfg.Session.MaxSessions,
			Policy:           cfg.Eviction.Policy,
		}, clock),
		audit:   newAuditDispatcher(cfg.Audit, b.auditSink, clock),
		metrics: NewMetrics(cfg.Metrics),
	}

	b.built = true

	return manager, nil
}
