package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestTokenService(t *testing.T) (*TokenService, *time.Time) {
	t.Helper()
	ts, err := NewTokenService("test-secret", "HS256", 0)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	clock := time.Now()
	ts.now = func() time.Time { return clock }
	return ts, &clock
}

func TestIssueAndVerify(t *testing.T) {
	ts, _ := newTestTokenService(t)

	token, err := ts.Issue("alice", time.Minute)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	subject, err := ts.Verify(token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if subject != "alice" {
		t.Fatalf("unexpected subject: %q", subject)
	}
}

func TestVerifyExpired(t *testing.T) {
	ts, clock := newTestTokenService(t)

	token, err := ts.Issue("alice", time.Minute)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	*clock = clock.Add(2 * time.Minute)
	if _, err := ts.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestIssueDefaultTTL(t *testing.T) {
	ts, clock := newTestTokenService(t)

	token, err := ts.Issue("alice", 0)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	*clock = clock.Add(14 * time.Minute)
	if _, err := ts.Verify(token); err != nil {
		t.Fatalf("token should still be valid at 14m: %v", err)
	}

	*clock = clock.Add(2 * time.Minute)
	if _, err := ts.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired at 16m, got %v", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	ts, _ := newTestTokenService(t)
	other, err := NewTokenService("different-secret", "HS256", 0)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	token, err := other.Issue("alice", time.Minute)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if _, err := ts.Verify(token); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
}

func TestVerifyGarbage(t *testing.T) {
	ts, _ := newTestTokenService(t)
	if _, err := ts.Verify("garbage"); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed, got %v", err)
	}
}

func TestNewTokenServiceRejectsBadConfig(t *testing.T) {
	if _, err := NewTokenService("", "HS256", 0); err == nil {
		t.Fatalf("expected error for empty secret")
	}
	if _, err := NewTokenService("secret", "RS256", 0); err == nil {
		t.Fatalf("expected error for asymmetric algorithm")
	}
	if _, err := NewTokenService("secret", "bogus", 0); err == nil {
		t.Fatalf("expected error for unknown algorithm")
	}
}
