package sessionkit

import (
	"errors"
	"time"

	"github.com/morganforge/sessionkit/store"
	"github.com/morganforge/sessionkit/token"
)

// Config defines a public type used by sessionkit APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Session  SessionConfig
	Eviction EvictionConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
	Janitor  JanitorConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by sessionkit APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	// Timeout is the inactivity window: a record is logically expired once
	// now - last_activity exceeds it. It is a data parameter governing
	// expiry, not an operation deadline.
	Timeout time.Duration

	// MaxSessions bounds how many records the store holds simultaneously.
	// Inserting a new key at the bound evicts exactly one existing record.
	MaxSessions int

	// WarningBefore enables the warning period: a record within this much of
	// expiry reports StateWarning instead of StateActive. Zero disables.
	WarningBefore time.Duration

	// AbsoluteLifetime expires a record by creation age regardless of
	// refresh activity. Zero disables the cap.
	AbsoluteLifetime time.Duration

	// TokenPrefix is the fixed prefix of generated tokens. Defaults to
	// [token.DefaultPrefix]; must not contain an underscore.
	TokenPrefix string
}

// EvictionConfig defines a public type used by sessionkit APIs.
//
// EvictionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type EvictionConfig struct {
	// Policy selects the capacity-eviction victim. The default,
	// [store.EvictOldestCreated], is by creation time, not last use.
	Policy store.EvictionPolicy
}

// AuditConfig defines a public type used by sessionkit APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by sessionkit APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// JanitorConfig defines a public type used by sessionkit APIs.
//
// JanitorConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type JanitorConfig struct {
	// Interval between cleanup sweeps when a [Janitor] is started. The core
	// itself never spawns the janitor.
	Interval time.Duration
}

// DefaultConfig returns the baseline configuration: a 15 minute inactivity
// timeout, 4096 session capacity, creation-order eviction, audit and metrics
// enabled. Callers adjust fields before passing it to [Builder.WithConfig].
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			Timeout:     15 * time.Minute,
			MaxSessions: 4096,
			TokenPrefix: token.DefaultPrefix,
		},
		Eviction: EvictionConfig{
			Policy: store.EvictOldestCreated,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Janitor: JanitorConfig{
			Interval: time.Minute,
		},
	}
}

func cloneConfig(cfg Config) Config {
	// All fields are value types today; the clone exists so callers can keep
	// mutating their Config after Build without reaching into the engine.
	return cfg
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c Config) Validate() error {
	if c.Session.Timeout <= 0 {
		return errors.New("Session.Timeout must be positive")
	}
	if c.Session.MaxSessions <= 0 {
		return errors.New("Session.MaxSessions must be positive")
	}
	if c.Session.WarningBefore < 0 {
		return errors.New("Session.WarningBefore must not be negative")
	}
	if c.Session.WarningBefore >= c.Session.Timeout && c.Session.WarningBefore != 0 {
		return errors.New("Session.WarningBefore must be shorter than Session.Timeout")
	}
	if c.Session.AbsoluteLifetime < 0 {
		return errors.New("Session.AbsoluteLifetime must not be negative")
	}
	if c.Session.AbsoluteLifetime > 0 && c.Session.AbsoluteLifetime < c.Session.Timeout {
		return errors.New("Session.AbsoluteLifetime must not be shorter than Session.Timeout")
	}
	if c.Eviction.Policy != store.EvictOldestCreated && c.Eviction.Policy != store.EvictLeastActive {
		return errors.New("Eviction.Policy is not a known policy")
	}
	if c.Audit.Enabled && c.Audit.BufferSize < 0 {
		return errors.New("Audit.BufferSize must not be negative")
	}
	if c.Janitor.Interval < 0 {
		return errors.New("Janitor.Interval must not be negative")
	}
	return nil
}
