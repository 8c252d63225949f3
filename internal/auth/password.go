package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt work factor for new hashes.
const PasswordCost = 10

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword(passwordBytes(password), PasswordCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// CheckPassword reports whether password matches hash. A malformed hash is
// an error; a mismatch is not.
func CheckPassword(hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), passwordBytes(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("compare password: %w", err)
	}
}

// passwordBytes returns the bcrypt input for password. Passwords longer than
// bcrypt's limit are condensed to a base64 SHA-256 digest so every byte counts.
func passwordBytes(password string) []byte {
	b := []byte(password)
	if len(b) <= maxPasswordBytes {
		return b
	}
	sum := sha256.Sum256(b)
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])
	return out
}
