package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid password")
	ErrNoPassword         = errors.New("no password configured")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

// PasswordChecker verifies the single shared password. It holds either a
// bcrypt hash or, for simple deployments, the plain password.
type PasswordChecker struct {
	hash  []byte
	plain []byte
}

// NewPasswordChecker prefers hash when both are set.
func NewPasswordChecker(plain, hash string) (*PasswordChecker, error) {
	switch {
	case hash != "":
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("invalid password hash: %w", err)
		}
		return &PasswordChecker{hash: []byte(hash)}, nil
	case plain != "":
		return &PasswordChecker{plain: []byte(plain)}, nil
	default:
		return nil, ErrNoPassword
	}
}

// Check compares credential with the configured password.
func (c *PasswordChecker) Check(credential string) error {
	if c.hash != nil {
		if err := bcrypt.CompareHashAndPassword(c.hash, []byte(credential)); err != nil {
			return ErrInvalidCredentials
		}
		return nil
	}
	if subtle.ConstantTimeCompare(c.plain, []byte(credential)) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

// HashPassword produces a bcrypt hash suitable for AUTH_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", ErrWeakPassword
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}
