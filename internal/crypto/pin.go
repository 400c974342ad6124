// Package crypto hashes the unlock PIN that guards a locked terminal.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for PIN hashing. PINs are short, so the memory
// cost carries most of the work factor.
const (
	Argon2Time    = 1
	Argon2Memory  = 64 * 1024
	Argon2Threads = 4
	Argon2KeyLen  = 32
	SaltSize      = 16
)

// HashPIN derives an Argon2id hash of the PIN with a random salt.
// The result is "base64(salt):base64(hash)" and is stored inside the
// tenant settings.
func HashPIN(pin string) (string, error) {
	if pin == "" {
		return "", fmt.Errorf("pin cannot be empty")
	}

	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(pin), salt, Argon2Time, Argon2Memory, Argon2Threads, Argon2KeyLen)

	return base64.StdEncoding.EncodeToString(salt) + ":" + base64.StdEncoding.EncodeToString(hash), nil
}

// VerifyPIN checks a PIN against a stored hash in constant time.
func VerifyPIN(pin, encoded string) error {
	if pin == "" {
		return fmt.Errorf("pin cannot be empty")
	}

	parts := strings.SplitN(encoded, ":", 2)
	if len(parts) != 2 {
		return fmt.Errorf("malformed pin hash")
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return fmt.Errorf("malformed pin hash salt: %w", err)
	}
	want, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return fmt.Errorf("malformed pin hash: %w", err)
	}

	got := argon2.IDKey([]byte(pin), salt, Argon2Time, Argon2Memory, Argon2Threads, Argon2KeyLen)
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return fmt.Errorf("pin does not match")
	}

	return nil
}
