//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

func defaultBcryptCost() int {
	// Reduce cost for race-enabled builds so test suites can run with strict timeouts.
	return bcrypt.MinCost
}

// DefaultArgon2Params are deliberately cheap under the race detector
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Time:    1,
		Memory:  8 * 1024,
		Threads: 1,
		KeyLen:  32,
		SaltLen: 16,
	}
}
