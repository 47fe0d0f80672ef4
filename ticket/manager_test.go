package ticket

import (
	"errors"
	"strings"
	"testing"
	"time"
)

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time { return c.now }

func newTestManager(t *testing.T, cfg Config) (*Manager, *stepClock) {
	t.Helper()
	clk := &stepClock{now: time.Unix(1_700_000_000, 0)}
	m, err := NewManager(cfg, clk.Now)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, clk
}

func TestIssueParseRoundTrip(t *testing.T) {
	m, clk := newTestManager(t, Config{})

	tok, err := m.Issue("sid-1", "com.bank", 7, clk.now.Add(30*time.Second))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := m.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.SessionID() != "sid-1" || claims.App != "com.bank" || claims.Seq != 7 {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.Issuer != DefaultIssuer {
		t.Fatalf("expected default issuer, got %q", claims.Issuer)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	m, clk := newTestManager(t, Config{})

	tok, err := m.Issue("sid-1", "com.bank", 1, clk.now.Add(30*time.Second))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	clk.now = clk.now.Add(31 * time.Second)
	if _, err := m.Parse(tok); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for expired ticket, got %v", err)
	}
}

func TestParseRejectsForeignKey(t *testing.T) {
	key := []byte(strings.Repeat("k", 32))
	issuer, clk := newTestManager(t, Config{Key: key})
	other, _ := newTestManager(t, Config{Key: []byte(strings.Repeat("x", 32))})

	tok, err := issuer.Issue("sid-1", "com.bank", 1, clk.now.Add(time.Minute))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := other.Parse(tok); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for foreign key, got %v", err)
	}

	again, _ := newTestManager(t, Config{Key: key})
	if _, err := again.Parse(tok); err != nil {
		t.Fatalf("same key should verify: %v", err)
	}
}

func TestParseRejectsTampered(t *testing.T) {
	m, clk := newTestManager(t, Config{})
	tok, err := m.Issue("sid-1", "com.bank", 1, clk.now.Add(time.Minute))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	parts := strings.Split(tok, ".")
	parts[1] = parts[1][:len(parts[1])-2] + "AA"
	if _, err := m.Parse(strings.Join(parts, ".")); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for tampered ticket, got %v", err)
	}
	if _, err := m.Parse("not-a-jwt"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for garbage, got %v", err)
	}
}

func TestNewManagerValidatesConfig(t *testing.T) {
	if _, err := NewManager(Config{Key: []byte("short")}, nil); err == nil {
		t.Fatal("expected short key rejection")
	}
	if _, err := NewManager(Config{Leeway: time.Hour}, nil); err == nil {
		t.Fatal("expected leeway rejection")
	}
	if _, err := NewManager(Config{Leeway: -time.Second}, nil); err == nil {
		t.Fatal("expected negative leeway rejection")
	}
}

// FuzzParse feeds arbitrary strings to the verifier.
func FuzzParse(f *testing.F) {
	m, err := NewManager(Config{}, nil)
	if err != nil {
		f.Fatalf("NewManager: %v", err)
	}
	if tok, err := m.Issue("sid", "app", 1, time.Now().Add(time.Minute)); err == nil {
		f.Add(tok)
	}
	f.Add("")
	f.Add("a.b.c")
	f.Add("eyJhbGciOiJub25lIn0.e30.")

	f.Fuzz(func(t *testing.T, tok string) {
		_, _ = m.Parse(tok)
	})
}
