package utils

import (
	"strings"
	"testing"
)

func TestHashPassword(t *testing.T) {
	hashed, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hashed == "correct horse battery staple" {
		t.Fatalf("password not hashed")
	}
	if !CheckPassword(hashed, "correct horse battery staple") {
		t.Fatalf("CheckPassword rejected the right password")
	}
	if CheckPassword(hashed, "wrong password") {
		t.Fatalf("CheckPassword accepted the wrong password")
	}

	if _, err := HashPassword(""); err == nil {
		t.Fatalf("empty password must be rejected")
	}
}

func TestGenerateAPIKey(t *testing.T) {
	key, digest, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	if !strings.HasPrefix(key, "ct_") {
		t.Fatalf("key prefix=%q, want ct_", key[:3])
	}
	// "ct_" plus 32 random bytes hex encoded.
	if len(key) != 3+64 {
		t.Fatalf("key length=%d, want %d", len(key), 3+64)
	}
	if digest != HashAPIKey(key) {
		t.Fatalf("digest does not match HashAPIKey(key)")
	}
	if len(digest) != 64 {
		t.Fatalf("digest length=%d, want 64", len(digest))
	}

	other, _, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	if other == key {
		t.Fatalf("two generated keys collided")
	}
}

func TestHashAPIKeyIsDeterministic(t *testing.T) {
	a := HashAPIKey("ct_example")
	b := HashAPIKey("ct_example")
	if a != b {
		t.Fatalf("digest not deterministic")
	}
	if a == HashAPIKey("ct_other") {
		t.Fatalf("different keys produced the same digest")
	}
}
