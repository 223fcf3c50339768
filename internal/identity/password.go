package identity

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt silently truncates input beyond 72 bytes, so longer plaintexts are
// rejected outright instead of being hashed on a prefix.
const maxPasswordBytes = 72

var (
	// ErrPasswordTooLong is returned for plaintexts beyond the bcrypt limit.
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
	// ErrPasswordTooShort is returned for plaintexts under the minimum length.
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
)

// HashPassword hashes plaintext with bcrypt at the default cost.
func HashPassword(plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	if len(plaintext) < 8 {
		return "", ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares plaintext against a stored bcrypt hash.
// bcrypt's comparison is constant-time over the hash.
func CheckPassword(hash, plaintext string) bool {
	if len(plaintext) > maxPasswordBytes {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
