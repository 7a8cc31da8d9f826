package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// sessionTokenBytes is the entropy of a session token. 96 bytes makes
// guessing a live token infeasible; collisions on insert are treated as
// a hard error rather than retried.
const sessionTokenBytes = 96

// GenerateSessionToken returns an unguessable, URL-safe session token.
func GenerateSessionToken() (string, error) {
	bytes := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("security.GenerateSessionToken: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
