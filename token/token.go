package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jonboulle/clockwork"
)

// ErrInvalidFormat is returned by [Parse] when a supplied token does not match
// the expected shape. Callers are expected to run Parse before a store lookup;
// the store itself never validates token shape.
var ErrInvalidFormat = errors.New("invalid session token format")

// ErrEntropyUnavailable is returned by [NewGenerator] when the OS entropy
// source cannot be read. This is a fatal startup condition, never a per-call
// error.
var ErrEntropyUnavailable = errors.New("os entropy source unavailable")

const (
	// DefaultPrefix is the token prefix used when none is configured.
	DefaultPrefix = "sess"

	randomSize = 16 // 128-bit random suffix
	hexSize    = randomSize * 2
)

// Token is an opaque session identifier. It is a distinct type rather than a
// bare string so that unrelated strings cannot be substituted for a session
// token elsewhere in a program.
type Token string

// String returns the token's wire representation.
func (t Token) String() string { return string(t) }

// Millis returns the wall-clock millisecond component embedded in the token.
// It exists for creation-order sorting and diagnostics only; it carries no
// security guarantee. Returns [ErrInvalidFormat] for malformed tokens.
func (t Token) Millis() (int64, error) {
	parts := strings.Split(string(t), "_")
	if len(parts) != 3 {
		return 0, ErrInvalidFormat
	}
	millis, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || millis < 0 {
		return 0, ErrInvalidFormat
	}
	return millis, nil
}

// Generator mints session tokens from the OS CSPRNG.
//
// Generator instances are intended to be configured during initialization and
// then treated as immutable.
type Generator struct {
	prefix string
	clock  clockwork.Clock
}

// NewGenerator creates a token [Generator] using the given prefix and clock.
// The prefix must be non-empty and must not contain an underscore (it would
// break the token framing). The OS entropy source is probed once here; an
// unreadable source fails construction with [ErrEntropyUnavailable] so the
// failure surfaces at startup rather than per call.
func NewGenerator(prefix string, clock clockwork.Clock) (*Generator, error) {
	if prefix == "" {
		return nil, errors.New("token prefix must not be empty")
	}
	if strings.Contains(prefix, "_") {
		return nil, errors.New("token prefix must not contain an underscore")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	var probe [randomSize]byte
	if _, err := rand.Read(probe[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
	}

	return &Generator{prefix: prefix, clock: clock}, nil
}

// Prefix returns the configured token prefix.
func (g *Generator) Prefix() string {
	return g.prefix
}

// Generate mints a new token. Generation does not fail under normal operation:
// NewGenerator already proved the entropy source readable, so a read failure
// here is treated as unrecoverable.
func (g *Generator) Generate() Token {
	var buf [randomSize]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(fmt.Sprintf("token: entropy source failed after successful probe: %v", err))
	}

	millis := strconv.FormatInt(g.clock.Now().UnixMilli(), 10)
	return Token(g.prefix + "_" + millis + "_" + hex.EncodeToString(buf[:]))
}

// Parse validates the wire shape of a supplied token: a non-empty prefix
// without underscores, a decimal millisecond timestamp, and exactly 32
// lowercase hex characters decoding to 16 bytes. It returns the typed [Token]
// on success and [ErrInvalidFormat] otherwise.
func Parse(s string) (Token, error) {
	parts := strings.Split(s, "_")
	if len(parts) != 3 {
		return "", ErrInvalidFormat
	}

	prefix, millis, suffix := parts[0], parts[1], parts[2]
	if prefix == "" {
		return "", ErrInvalidFormat
	}

	if millis == "" {
		return "", ErrInvalidFormat
	}
	for _, c := range millis {
		if c < '0' || c > '9' {
			return "", ErrInvalidFormat
		}
	}

	if len(suffix) != hexSize {
		return "", ErrInvalidFormat
	}
	if strings.ToLower(suffix) != suffix {
		return "", ErrInvalidFormat
	}
	raw, err := hex.DecodeString(suffix)
	if err != nil || len(raw) != randomSize {
		return "", ErrInvalidFormat
	}

	return Token(s), nil
}
