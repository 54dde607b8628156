package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// GenerateToken returns n random bytes as unpadded URL-safe base64,
// suitable for OAuth state values and other opaque nonces.
func GenerateToken(n int) (string, error) {
	if n <= 0 {
		n = 32
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
