package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	t.Setenv("HARVEST_AUTH_SECRET", "test-secret")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	token, err := GenerateToken("user-1", RoleBidder, time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "user-1" || claims.Role != RoleBidder {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestGenerateTokenRejectsUnknownRole(t *testing.T) {
	t.Setenv("HARVEST_AUTH_SECRET", "test-secret")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	if _, err := GenerateToken("user-1", "admin", time.Minute); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	t.Setenv("HARVEST_AUTH_SECRET", "test-secret")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	token, err := GenerateToken("user-1", RoleFarmer, time.Millisecond)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := ParseAndValidate(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseRejectsForeignSignature(t *testing.T) {
	t.Setenv("HARVEST_AUTH_SECRET", "secret-a")
	ResetSecretForTests()
	token, err := GenerateToken("user-1", RoleFarmer, time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	t.Setenv("HARVEST_AUTH_SECRET", "secret-b")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)
	if _, err := ParseAndValidate(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestPasswordHashAndVerify(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := VerifyPassword(hash, "hunter2"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := VerifyPassword(hash, "wrong"); err == nil {
		t.Fatal("expected mismatch error")
	}
}
