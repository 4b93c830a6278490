package auth

import (
	"testing"
	"time"
)

func TestIssueThenVerifyRoundTrip(t *testing.T) {
	v := New("test-secret", time.Hour)

	token, err := v.Issue("owner-123")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	owner, err := v.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if owner != "owner-123" {
		t.Fatalf("expected owner-123, got %s", owner)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	v1 := New("secret-a", time.Hour)
	v2 := New("secret-b", time.Hour)

	token, err := v1.Issue("owner-123")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := v2.Verify(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	// Built directly: New replaces a ttl <= 0 with 24h, so only a literal
	// Verifier can carry the negative TTL that makes Issue mint an
	// already-expired token.
	v := &Verifier{secret: []byte("secret"), ttl: -time.Hour}

	token, err := v.Issue("owner-123")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := v.Verify(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsEmptyToken(t *testing.T) {
	v := New("secret", time.Hour)
	if _, err := v.Verify(""); err != ErrMissingToken {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestWithOwnerIDRoundTrip(t *testing.T) {
	ctx := WithOwnerID(t.Context(), "owner-abc")
	owner, ok := OwnerID(ctx)
	if !ok || owner != "owner-abc" {
		t.Fatalf("expected owner-abc, got %s (ok=%v)", owner, ok)
	}
}
