package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
)

// OTPVerifier checks a one-time code submitted for strong customer
// authentication.
type OTPVerifier interface {
	Verify(code string) error
}

// HashedOTPVerifier compares codes against a bcrypt hash.
type HashedOTPVerifier struct {
	hash []byte
}

func NewHashedOTPVerifier(hash string) (*HashedOTPVerifier, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("NewHashedOTPVerifier: %w", err)
	}
	return &HashedOTPVerifier{hash: []byte(hash)}, nil
}

// HashOTP hashes a plain code, for seeding a verifier from configuration.
func HashOTP(code string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("HashOTP: %w", err)
	}
	return string(hash), nil
}

func (v *HashedOTPVerifier) Verify(code string) error {
	if code == "" {
		return domain.ErrInvalidOTP
	}
	err := bcrypt.CompareHashAndPassword(v.hash, []byte(code))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return domain.ErrInvalidOTP
	}
	if err != nil {
		return fmt.Errorf("Verify: %w", err)
	}
	return nil
}
