// Package password hashes and verifies account passwords with bcrypt and
// enforces the password strength policy.
package password

import (
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// MaxLength is the bcrypt input bound; longer inputs would be silently truncated.
const MaxLength = 72

var (
	ErrEmpty    = errors.New("password is empty")
	ErrTooLong  = fmt.Errorf("password exceeds %d bytes", MaxLength)
	ErrTooShort = errors.New("password is too short")
	ErrWeak     = errors.New("password must contain an upper-case letter, a lower-case letter and a digit")
)

// Hasher hashes passwords with a fixed bcrypt cost.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher. Costs outside bcrypt's range fall back to the default.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns a salted bcrypt hash of plain.
func (h *Hasher) Hash(plain string) (string, error) {
	if plain == "" {
		return "", ErrEmpty
	}
	if len(plain) > MaxLength {
		return "", ErrTooLong
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether plain matches hash. A malformed hash yields false.
// bcrypt compares digests with crypto/subtle, so a mismatch does not return early.
// Inputs Hash would refuse never match: bcrypt ignores bytes past MaxLength.
func (h *Hasher) Verify(plain, hash string) bool {
	if plain == "" || len(plain) > MaxLength {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// Policy describes the strength rules applied to new passwords.
type Policy struct {
	MinLength int
}

// Check validates plain against the policy.
func (p Policy) Check(plain string) error {
	if plain == "" {
		return ErrEmpty
	}
	if len(plain) > MaxLength {
		return ErrTooLong
	}
	min := p.MinLength
	if min <= 0 {
		min = 8
	}
	if len(plain) < min {
		return ErrTooShort
	}
	var upper, lower, digit bool
	for _, r := range plain {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return ErrWeak
	}
	return nil
}
