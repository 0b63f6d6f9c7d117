package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const argon2idTag = "argon2id"

// upper bounds on params read back from a digest so a hostile digest
// cannot make us allocate unbounded memory
const (
	maxArgon2Memory  = 1 << 20 // KiB, 1 GiB
	maxArgon2Time    = 64
	maxArgon2KeyLen  = 1024
	maxArgon2SaltLen = 1024
)

// Argon2Params are the argon2id tunables
type Argon2Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

// Argon2idStrategy hashes with argon2id and encodes digests as
// $argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
type Argon2idStrategy struct {
	params Argon2Params
}

// NewArgon2idStrategy creates a strategy with the given params, filling in
// defaults for zero values and clamping values above the digest parser's
// limits.
func NewArgon2idStrategy(params Argon2Params) *Argon2idStrategy {
	def := DefaultArgon2Params()
	if params.Time == 0 {
		params.Time = def.Time
	}
	if params.Memory == 0 {
		params.Memory = def.Memory
	}
	if params.Threads == 0 {
		params.Threads = def.Threads
	}
	if params.KeyLen == 0 {
		params.KeyLen = def.KeyLen
	}
	if params.SaltLen == 0 {
		params.SaltLen = def.SaltLen
	}
	// keep within what parseArgon2Digest accepts
	params.Time = min(params.Time, maxArgon2Time)
	params.Memory = min(params.Memory, maxArgon2Memory)
	params.KeyLen = min(max(params.KeyLen, 4), maxArgon2KeyLen)
	params.SaltLen = min(params.SaltLen, maxArgon2SaltLen)
	return &Argon2idStrategy{params: params}
}

// Params returns the params new digests are created with
func (s *Argon2idStrategy) Params() Argon2Params {
	return s.params
}

func (s *Argon2idStrategy) Tags() []string {
	return []string{argon2idTag}
}

func (s *Argon2idStrategy) Hash(plaintext string) (string, error) {
	salt := make([]byte, s.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(plaintext), salt, s.params.Time, s.params.Memory, s.params.Threads, s.params.KeyLen)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2idTag,
		argon2.Version,
		s.params.Memory,
		s.params.Time,
		s.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (s *Argon2idStrategy) Verify(plaintext, digest string) bool {
	d, err := parseArgon2Digest(digest)
	if err != nil {
		return false
	}

	key := argon2.IDKey([]byte(plaintext), d.salt, d.params.Time, d.params.Memory, d.params.Threads, uint32(len(d.key)))
	return subtle.ConstantTimeCompare(key, d.key) == 1
}

func (s *Argon2idStrategy) NeedsRehash(digest string) bool {
	d, err := parseArgon2Digest(digest)
	if err != nil {
		return true
	}
	return d.params.Time < s.params.Time ||
		d.params.Memory < s.params.Memory ||
		d.params.Threads < s.params.Threads ||
		uint32(len(d.key)) < s.params.KeyLen
}

type argon2Digest struct {
	params Argon2Params
	salt   []byte
	key    []byte
}

func parseArgon2Digest(digest string) (*argon2Digest, error) {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != argon2idTag {
		return nil, fmt.Errorf("not an argon2id digest")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, fmt.Errorf("invalid argon2 version: %w", err)
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("unsupported argon2 version %d", version)
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return nil, fmt.Errorf("invalid argon2 params: %w", err)
	}
	if memory == 0 || memory > maxArgon2Memory || time == 0 || time > maxArgon2Time || threads == 0 {
		return nil, fmt.Errorf("argon2 params out of range")
	}

	salt, err := base64.RawStdEncoding.Strict().DecodeString(parts[4])
	if err != nil || len(salt) == 0 || len(salt) > maxArgon2SaltLen {
		return nil, fmt.Errorf("invalid argon2 salt")
	}

	key, err := base64.RawStdEncoding.Strict().DecodeString(parts[5])
	if err != nil || len(key) < 4 || len(key) > maxArgon2KeyLen {
		return nil, fmt.Errorf("invalid argon2 hash")
	}

	return &argon2Digest{
		params: Argon2Params{
			Time:    time,
			Memory:  memory,
			Threads: threads,
			KeyLen:  uint32(len(key)),
			SaltLen: uint32(len(salt)),
		},
		salt: salt,
		key:  key,
	}, nil
}
