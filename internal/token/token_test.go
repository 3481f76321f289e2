package token

import (
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func TestMintAndVerify(t *testing.T) {
	manager, err := NewManager("test-secret", 15*time.Minute)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	signed, err := manager.Mint("u1", "g1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	claims, err := manager.Verify(signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "u1" || claims.GuildID != "g1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	manager, err := NewManager("test-secret", 15*time.Minute)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	manager.WithClock(clock)

	signed, err := manager.Mint("u1", "g1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	clock.now = clock.now.Add(16 * time.Minute)
	if _, err := manager.Verify(signed); err == nil {
		t.Fatalf("expected expired token to fail")
	}

	clock.now = clock.now.Add(-2 * time.Minute)
	if _, err := manager.Verify(signed); err != nil {
		t.Fatalf("token should verify inside ttl: %v", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	minter, err := NewManager("secret-a", 15*time.Minute)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	verifier, err := NewManager("secret-b", 15*time.Minute)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	signed, err := minter.Mint("u1", "g1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := verifier.Verify(signed); err == nil {
		t.Fatalf("expected signature mismatch")
	}
}

func TestVerifyGarbage(t *testing.T) {
	manager, err := NewManager("test-secret", 15*time.Minute)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := manager.Verify("not-a-token"); err == nil {
		t.Fatalf("expected parse failure")
	}
}

func TestNewManagerRequiresSecret(t *testing.T) {
	if _, err := NewManager("", time.Minute); err != ErrNoSecret {
		t.Fatalf("expected ErrNoSecret, got %v", err)
	}
}

func TestMintRequiresIDs(t *testing.T) {
	manager, err := NewManager("test-secret", 15*time.Minute)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := manager.Mint("", "g1"); err == nil {
		t.Fatalf("expected error for missing user id")
	}
	if _, err := manager.Mint("u1", ""); err == nil {
		t.Fatalf("expected error for missing guild id")
	}
}
