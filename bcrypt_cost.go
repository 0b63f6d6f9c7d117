//go:build !race

package auth

func defaultBcryptCost() int {
	return 12
}

// DefaultArgon2Params returns the argon2id params used for new digests
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Time:    1,
		Memory:  64 * 1024,
		Threads: 4,
		KeyLen:  32,
		SaltLen: 16,
	}
}
