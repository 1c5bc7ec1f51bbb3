package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// SessionTokenBytes is the amount of randomness in a session token (128 bits).
const SessionTokenBytes = 16

// NewSessionToken returns a fresh opaque bearer token: 16 random bytes,
// hex-encoded to 32 characters.
//
// The token is the ONLY credential a client presents, so it must come from
// crypto/rand. Clients must not rely on any structure in it.
func NewSessionToken() (string, error) {
	b := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: generating session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
