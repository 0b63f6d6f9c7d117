package auth

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// HashStrategy is one concrete hashing algorithm. Digests it produces must
// start with one of the tags it reports, as in "$argon2id$..." or "$2b$...".
type HashStrategy interface {
	Tags() []string
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
	NeedsRehash(digest string) bool
}

// Hasher hashes with a preferred strategy and verifies with any registered
// one, dispatching on the digest tag. Swapping the preferred strategy keeps
// old digests verifiable.
type Hasher struct {
	preferred  HashStrategy
	strategies map[string]HashStrategy

	dummyOnce sync.Once
	dummy     string
}

// NewHasher creates a Hasher that hashes with preferred and also verifies
// digests produced by legacy strategies.
func NewHasher(preferred HashStrategy, legacy ...HashStrategy) *Hasher {
	h := &Hasher{
		preferred:  preferred,
		strategies: make(map[string]HashStrategy),
	}

	for _, s := range legacy {
		h.register(s)
	}
	// preferred wins on tag clashes
	h.register(preferred)

	return h
}

// NewDefaultHasher returns argon2id for new digests with bcrypt kept for
// verification of older ones.
func NewDefaultHasher() *Hasher {
	return NewHasher(
		NewArgon2idStrategy(DefaultArgon2Params()),
		NewBcryptStrategy(defaultBcryptCost()),
	)
}

// NewHasherFromConfig builds the default strategy pair with tunables from cfg
func NewHasherFromConfig(cfg Config) *Hasher {
	params := DefaultArgon2Params()
	if v := cfg.GetArgon2Time(); v > 0 {
		params.Time = v
	}
	if v := cfg.GetArgon2Memory(); v > 0 {
		params.Memory = v
	}
	if v := cfg.GetArgon2Threads(); v > 0 {
		params.Threads = v
	}

	cost := defaultBcryptCost()
	if v := cfg.GetBcryptCost(); v > 0 {
		cost = v
	}

	return NewHasher(NewArgon2idStrategy(params), NewBcryptStrategy(cost))
}

func (h *Hasher) register(s HashStrategy) {
	if s == nil {
		return
	}
	for _, tag := range s.Tags() {
		h.strategies[tag] = s
	}
}

// Hash will generate a password digest with the preferred strategy
func (h *Hasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}
	return h.preferred.Hash(plaintext)
}

// Verify reports whether plaintext matches digest. Unknown or malformed
// digests never match.
func (h *Hasher) Verify(plaintext, digest string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	strategy, found := h.strategyFor(digest)
	if !found {
		return false
	}
	return strategy.Verify(plaintext, digest)
}

// NeedsRehash reports whether digest should be replaced with a fresh one
// from the preferred strategy.
func (h *Hasher) NeedsRehash(digest string) bool {
	strategy, found := h.strategyFor(digest)
	if !found || strategy != h.preferred {
		return true
	}
	return strategy.NeedsRehash(digest)
}

// DummyDigest returns a digest of a random secret. Verifying against it
// costs the same as a real verification.
func (h *Hasher) DummyDigest() string {
	h.dummyOnce.Do(func() {
		d, err := h.preferred.Hash(uuid.NewString())
		if err == nil {
			h.dummy = d
		}
	})
	return h.dummy
}

func (h *Hasher) strategyFor(digest string) (HashStrategy, bool) {
	tag, ok := digestTag(digest)
	if !ok {
		return nil, false
	}
	s, ok := h.strategies[tag]
	return s, ok
}

// digestTag extracts "argon2id" from "$argon2id$v=19$..."
func digestTag(digest string) (string, bool) {
	if !strings.HasPrefix(digest, "$") {
		return "", false
	}
	parts := strings.SplitN(digest[1:], "$", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", false
	}
	return parts[0], true
}

var defaultHasher = sync.OnceValue(NewDefaultHasher)

// HashPassword will generate a password hash with the default hasher
func HashPassword(password string) (string, error) {
	return defaultHasher().Hash(password)
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if !defaultHasher().Verify(password, hash) {
		return ErrInvalidCredentials
	}
	return nil
}

// RandomPasswordHash is a digest nobody knows the secret for
func RandomPasswordHash() string {
	h, err := HashPassword(uuid.NewString())
	if err != nil {
		return defaultHasher().DummyDigest()
	}
	return h
}
