package token

import (
	"encoding/hex"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

var tokenShape = regexp.MustCompile(`^sess_[0-9]+_[0-9a-f]{32}$`)

func TestGenerateProducesWellFormedTokens(t *testing.T) {
	gen, err := NewGenerator(DefaultPrefix, clockwork.NewRealClock())
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	tok := gen.Generate()
	if !tokenShape.MatchString(tok.String()) {
		t.Fatalf("token %q does not match expected shape", tok)
	}

	parts := strings.Split(tok.String(), "_")
	raw, err := hex.DecodeString(parts[2])
	if err != nil {
		t.Fatalf("hex suffix does not decode: %v", err)
	}
	if len(raw) != 16 {
		t.Fatalf("expected 16 random bytes, got %d", len(raw))
	}
}

func TestGenerateEmbedsClockMillis(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(at)

	gen, err := NewGenerator(DefaultPrefix, clock)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	tok := gen.Generate()
	millis, err := tok.Millis()
	if err != nil {
		t.Fatalf("Millis: %v", err)
	}
	if millis != at.UnixMilli() {
		t.Fatalf("expected millis %d, got %d", at.UnixMilli(), millis)
	}

	clock.Advance(time.Second)
	millis2, err := gen.Generate().Millis()
	if err != nil {
		t.Fatalf("Millis after advance: %v", err)
	}
	if millis2 != millis+1000 {
		t.Fatalf("expected millis to advance by 1000, got %d then %d", millis, millis2)
	}
}

func TestGenerateUniqueness(t *testing.T) {
	gen, err := NewGenerator(DefaultPrefix, clockwork.NewRealClock())
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	const n = 100000
	seen := make(map[Token]struct{}, n)
	for i := 0; i < n; i++ {
		tok := gen.Generate()
		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token after %d generations: %s", i, tok)
		}
		seen[tok] = struct{}{}
	}
}

func TestGenerateCustomPrefix(t *testing.T) {
	gen, err := NewGenerator("api", clockwork.NewRealClock())
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	if gen.Prefix() != "api" {
		t.Fatalf("Prefix: got %q", gen.Prefix())
	}
	if tok := gen.Generate(); !strings.HasPrefix(tok.String(), "api_") {
		t.Fatalf("token %q missing custom prefix", tok)
	}
}

func TestNewGeneratorRejectsBadPrefix(t *testing.T) {
	if _, err := NewGenerator("", clockwork.NewRealClock()); err == nil {
		t.Fatal("expected error for empty prefix")
	}
	if _, err := NewGenerator("bad_prefix", clockwork.NewRealClock()); err == nil {
		t.Fatal("expected error for prefix containing underscore")
	}
}

func TestParseAcceptsGeneratedTokens(t *testing.T) {
	gen, err := NewGenerator(DefaultPrefix, clockwork.NewRealClock())
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	tok := gen.Generate()
	parsed, err := Parse(tok.String())
	if err != nil {
		t.Fatalf("Parse rejected generated token %q: %v", tok, err)
	}
	if parsed != tok {
		t.Fatalf("Parse returned %q, want %q", parsed, tok)
	}
}

func TestParseRejectsMalformedTokens(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"no separators", "sess"},
		{"one separator", "sess_1234"},
		{"too many separators", "sess_1234_aabb_ccdd"},
		{"empty prefix", "_1234_00112233445566778899aabbccddeeff"},
		{"empty millis", "sess__00112233445566778899aabbccddeeff"},
		{"non-numeric millis", "sess_12a4_00112233445566778899aabbccddeeff"},
		{"negative millis", "sess_-1234_00112233445566778899aabbccddeeff"},
		{"short suffix", "sess_1234_00112233445566778899aabbccddee"},
		{"long suffix", "sess_1234_00112233445566778899aabbccddeeff00"},
		{"uppercase suffix", "sess_1234_00112233445566778899AABBCCDDEEFF"},
		{"non-hex suffix", "sess_1234_00112233445566778899aabbccddeezz"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(tc.input); !errors.Is(err, ErrInvalidFormat) {
				t.Fatalf("Parse(%q): got %v, want ErrInvalidFormat", tc.input, err)
			}
		})
	}
}

func TestMillisRejectsMalformedToken(t *testing.T) {
	if _, err := Token("garbage").Millis(); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}
