package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	apperrors "vyaparcli/internal/errors"
)

// MinPasswordLength is the floor enforced on create, change and reset
const MinPasswordLength = 6

// HashPassword hashes a password with bcrypt at the given cost. The hash is
// salted and non-reversible.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword checks a password against its stored hash
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePasswordPolicy enforces the minimum length
func ValidatePasswordPolicy(password string, minLength int) error {
	if minLength < MinPasswordLength {
		minLength = MinPasswordLength
	}
	if len(password) < minLength {
		return apperrors.ErrPasswordPolicy
	}
	return nil
}
