package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters. N=2^14 with r=16 keeps verification around the
// interactive-login latency budget while staying memory-hard.
const (
	scryptLogN = 14
	scryptR    = 16
	scryptP    = 1

	saltLen = 16
	keyLen  = 32
)

// HashPassword derives a self-describing scrypt hash of the form
//
//	$scrypt$ln=14,r=16,p=1$<base64 salt>$<base64 key>
//
// The embedded parameters allow verification to outlive parameter changes.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("security.HashPassword: reading salt: %w", err)
	}

	key, err := scrypt.Key([]byte(password), salt, 1<<scryptLogN, scryptR, scryptP, keyLen)
	if err != nil {
		return "", fmt.Errorf("security.HashPassword: deriving key: %w", err)
	}

	enc := base64.RawStdEncoding
	return fmt.Sprintf("$scrypt$ln=%d,r=%d,p=%d$%s$%s",
		scryptLogN, scryptR, scryptP, enc.EncodeToString(salt), enc.EncodeToString(key)), nil
}

// CheckPassword verifies password against a hash produced by HashPassword.
// It never fails: malformed hashes and internal errors are logged and
// reported as a mismatch.
func CheckPassword(password, hash string) bool {
	logN, r, p, salt, key, err := parseHash(hash)
	if err != nil {
		log.Printf("ERROR: checking password: %v", err)
		return false
	}

	derived, err := scrypt.Key([]byte(password), salt, 1<<logN, r, p, len(key))
	if err != nil {
		log.Printf("ERROR: checking password: %v", err)
		return false
	}
	return subtle.ConstantTimeCompare(derived, key) == 1
}

func parseHash(hash string) (logN, r, p int, salt, key []byte, err error) {
	parts := strings.Split(hash, "$")
	if len(parts) != 5 || parts[0] != "" || parts[1] != "scrypt" {
		return 0, 0, 0, nil, nil, fmt.Errorf("malformed password hash")
	}

	if _, err = fmt.Sscanf(parts[2], "ln=%d,r=%d,p=%d", &logN, &r, &p); err != nil {
		return 0, 0, 0, nil, nil, fmt.Errorf("malformed scrypt parameters: %w", err)
	}
	if logN < 1 || logN > 31 || r < 1 || p < 1 {
		return 0, 0, 0, nil, nil, fmt.Errorf("scrypt parameters out of range")
	}

	enc := base64.RawStdEncoding
	if salt, err = enc.DecodeString(parts[3]); err != nil {
		return 0, 0, 0, nil, nil, fmt.Errorf("malformed salt: %w", err)
	}
	if key, err = enc.DecodeString(parts[4]); err != nil {
		return 0, 0, 0, nil, nil, fmt.Errorf("malformed key: %w", err)
	}
	if len(key) == 0 {
		return 0, 0, 0, nil, nil, fmt.Errorf("empty derived key")
	}
	return logN, r, p, salt, key, nil
}
