package auth

import (
	"context"
	"testing"
	"time"
)

const testSecret = "unit-test-secret-0123456789"

func TestIssueAndVerifyToken(t *testing.T) {
	mgr, err := NewTokenManager(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}
	now := time.Now().UTC()

	token, expiresAt, err := mgr.Issue("doctor@example.com", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if token == "" {
		t.Fatal("expected a token")
	}
	if got, want := expiresAt, now.Add(time.Hour); !got.Equal(want.Truncate(time.Nanosecond)) && got.Sub(want) > time.Second {
		t.Fatalf("expected expiry near %v, got %v", want, got)
	}

	session, err := mgr.Verify(token, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if session.Identity != "doctor@example.com" {
		t.Fatalf("expected identity doctor@example.com, got %q", session.Identity)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	mgr, err := NewTokenManager(testSecret, time.Minute)
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}
	now := time.Now().UTC()

	token, _, err := mgr.Issue("doctor@example.com", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := mgr.Verify(token, now.Add(2*time.Minute)); err == nil {
		t.Fatal("expected expired token to fail verification")
	}
}

func TestVerifyTamperedToken(t *testing.T) {
	mgr, _ := NewTokenManager(testSecret, time.Hour)
	other, _ := NewTokenManager("another-secret-9876543210", time.Hour)
	now := time.Now().UTC()

	token, _, err := other.Issue("doctor@example.com", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := mgr.Verify(token, now); err == nil {
		t.Fatal("expected token signed with a different secret to fail")
	}
	if _, err := mgr.Verify("not-a-jwt", now); err == nil {
		t.Fatal("expected garbage token to fail")
	}
}

func TestNewTokenManagerRejectsWeakSecret(t *testing.T) {
	if _, err := NewTokenManager("short", time.Hour); err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestFixedCredentialAuthenticator(t *testing.T) {
	hash, err := HashPassword("MyStrongPass123")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	authn, err := NewFixedCredential("Doctor@Example.com", hash)
	if err != nil {
		t.Fatalf("new fixed credential: %v", err)
	}
	ctx := context.Background()

	identity, err := authn.Authenticate(ctx, "doctor@example.com", "MyStrongPass123")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if identity != "doctor@example.com" {
		t.Fatalf("expected normalized identity, got %q", identity)
	}

	if _, err := authn.Authenticate(ctx, "doctor@example.com", "wrong"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := authn.Authenticate(ctx, "other@example.com", "MyStrongPass123"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials for unknown identity, got %v", err)
	}
	if _, err := authn.Authenticate(ctx, "bogus", "MyStrongPass123"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials for malformed email, got %v", err)
	}
}
