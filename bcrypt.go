package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// BcryptStrategy verifies and produces native bcrypt digests ($2a$, $2b$,
// $2y$). It is kept mostly so digests from older deployments keep working.
type BcryptStrategy struct {
	cost int
}

// NewBcryptStrategy creates a bcrypt strategy, clamping cost to the range
// bcrypt accepts.
func NewBcryptStrategy(cost int) *BcryptStrategy {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &BcryptStrategy{cost: cost}
}

func (s *BcryptStrategy) Tags() []string {
	return []string{"2a", "2b", "2y"}
}

func (s *BcryptStrategy) Hash(plaintext string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plaintext), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", badInput("password exceeds 72 bytes", nil)
		}
		return "", err
	}
	return string(h), nil
}

func (s *BcryptStrategy) Verify(plaintext, digest string) bool {
	if !strings.HasPrefix(digest, "$2") {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

func (s *BcryptStrategy) NeedsRehash(digest string) bool {
	cost, err := bcrypt.Cost([]byte(digest))
	if err != nil {
		return true
	}
	return cost < s.cost
}
