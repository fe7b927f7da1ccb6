package jwt

import (
	"errors"
	"testing"
	"time"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()

	m, err := NewManager(Config{
		Secret:    testSecret,
		AccessTTL: ttl,
		Issuer:    "twogate-test",
		Leeway:    time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestIssueParseRoundTrip(t *testing.T) {
	m := newTestManager(t, time.Hour)

	token, err := m.Issue("bob", "sess-1", time.Now())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "bob" || claims.SessionID != "sess-1" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	m := newTestManager(t, time.Minute)

	token, err := m.Issue("bob", "sess-1", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.Parse(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestParseRejectsForeignSignature(t *testing.T) {
	m := newTestManager(t, time.Hour)

	other, err := NewManager(Config{
		Secret:    []byte("ffffffffffffffffffffffffffffffff"),
		AccessTTL: time.Hour,
		Issuer:    "twogate-test",
	})
	if err != nil {
		t.Fatal(err)
	}

	token, err := other.Issue("bob", "sess-1", time.Now())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.Parse(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	m := newTestManager(t, time.Hour)

	other, err := NewManager(Config{
		Secret:    testSecret,
		AccessTTL: time.Hour,
		Issuer:    "someone-else",
	})
	if err != nil {
		t.Fatal(err)
	}

	token, err := other.Issue("bob", "sess-1", time.Now())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.Parse(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	m := newTestManager(t, time.Hour)

	for _, token := range []string{"", "x", "a.b.c"} {
		if _, err := m.Parse(token); !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("Parse(%q): err = %v, want ErrTokenInvalid", token, err)
		}
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(Config{Secret: testSecret, AccessTTL: 0}); err == nil {
		t.Error("zero TTL accepted")
	}
	if _, err := NewManager(Config{Secret: []byte("short"), AccessTTL: time.Hour}); err == nil {
		t.Error("short secret accepted")
	}
	if _, err := NewManager(Config{Secret: testSecret, AccessTTL: time.Hour, Leeway: time.Hour}); err == nil {
		t.Error("oversized leeway accepted")
	}
}
