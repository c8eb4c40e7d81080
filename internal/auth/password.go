package auth

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// MinBcryptCost is the lowest work factor accepted for stored credentials.
const MinBcryptCost = 10

// ErrHashing is returned when a credential cannot be derived.
var ErrHashing = errors.New("password hashing failed")

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// HashPassword hashes a plaintext password with configured cost. A value that
// is already a bcrypt hash is returned unchanged.
func HashPassword(password string, cost int) (string, error) {
	if password != "" && IsHashed(password) {
		return password, nil
	}
	return HashPlaintext(password, cost)
}

// HashPlaintext always derives a fresh credential from password.
func HashPlaintext(password string, cost int) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: empty password", ErrHashing)
	}
	if cost < MinBcryptCost {
		cost = MinBcryptCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashing, err)
	}
	return string(hashed), nil
}

// VerifyPassword reports whether plain matches hashed. Missing inputs and
// mismatches both yield false.
func VerifyPassword(plain, hashed string) bool {
	if plain == "" || hashed == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}

// IsHashed reports whether value is already a bcrypt credential.
func IsHashed(value string) bool {
	_, err := bcrypt.Cost([]byte(value))
	return err == nil
}

// EqualizeTiming burns one bcrypt comparison so that logins for unknown
// accounts take as long as logins with a wrong password.
func EqualizeTiming(plain string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("timing-equalizer"), MinBcryptCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(plain))
}
