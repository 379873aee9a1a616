package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// GenerateSecureToken creates a cryptographically secure random token.
// Returns a base64 URL-encoded string suitable for use as an authorization
// code, correlation token, or client secret.
func GenerateSecureToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// HashSecret hashes a client secret or resource-owner password with bcrypt.
// This should be used before storing the secret.
func HashSecret(secret string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
}

// CompareSecret checks a plaintext secret against its bcrypt hash.
func CompareSecret(hashed []byte, plaintext string) error {
	return bcrypt.CompareHashAndPassword(hashed, []byte(plaintext))
}
