// Package crypto provides password hashing for account credentials.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	SaltSize    = 16
	passwordLen = 32
)

var ErrPasswordMismatch = errors.New("crypto: password mismatch")

// GenerateSalt returns SaltSize random bytes for HashPassword.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("crypto: generate salt: %w", err)
	}
	return salt, nil
}

// HashPassword hashes a password using Argon2id.
func HashPassword(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, passwordLen)
}

// VerifyPassword compares password against a stored Argon2id hash in constant time.
func VerifyPassword(password string, salt, hash []byte) error {
	if len(hash) != passwordLen {
		return ErrPasswordMismatch
	}
	if subtle.ConstantTimeCompare(HashPassword(password, salt), hash) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}
