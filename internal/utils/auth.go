package utils

import (
  "crypto/rand"
  "crypto/sha256"
  "encoding/hex"
  "fmt"
  "golang.org/x/crypto/bcrypt"
)

func HashPassword(password string) (string, error) {
  if password == "" {
    return "", fmt.Errorf("A password is required")
  }
  hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
  if err != nil {
    return "", fmt.Errorf("Failed to hash password: %w", err)
  }
  return string(hashed), nil
}

func CheckPassword(hashed, password string) bool {
  return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) == nil
}

// GenerateAPIKey returns the plaintext key (shown once to the user) and its
// sha256 hex digest (what gets persisted).
func GenerateAPIKey() (string, string, error) {
  raw := make([]byte, 32)
  if _, err := rand.Read(raw); err != nil {
    return "", "", fmt.Errorf("Failed to generate api key: %w", err)
  }
  key := "ct_" + hex.EncodeToString(raw)
  return key, HashAPIKey(key), nil
}

func HashAPIKey(key string) string {
  sum := sha256.Sum256([]byte(key))
  return hex.EncodeToString(sum[:])
}
