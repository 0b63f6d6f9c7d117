package auth

import (
	"errors"
	"io/fs"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Directory backends Settings.Directory can select
const (
	DirectoryMemory   = "memory"
	DirectorySQLite   = "sqlite"
	DirectoryPostgres = "postgres"
	DirectoryRedis    = "redis"
	DirectoryBolt     = "bolt"
)

// MinSigningKeyLen is the shortest HS256 key we accept
const MinSigningKeyLen = 32

// Settings is the environment backed Config
type Settings struct {
	SigningKey string `env:"PWAUTH_SIGNING_KEY"`
	// semicolon separated
	RetiredSigningKeys []string      `env:"PWAUTH_RETIRED_SIGNING_KEYS"`
	TokenTTL           time.Duration `env:"PWAUTH_TOKEN_TTL,default=30m"`
	MaxTokenTTL        time.Duration `env:"PWAUTH_MAX_TOKEN_TTL,default=24h"`
	Leeway             time.Duration `env:"PWAUTH_LEEWAY,default=0s"`
	Issuer             string        `env:"PWAUTH_ISSUER"`
	Audience           string        `env:"PWAUTH_AUDIENCE"`
	DirectoryTimeout   time.Duration `env:"PWAUTH_DIRECTORY_TIMEOUT,default=2s"`

	Argon2Time    uint `env:"PWAUTH_ARGON2_TIME,default=1"`
	Argon2Memory  uint `env:"PWAUTH_ARGON2_MEMORY,default=65536"`
	Argon2Threads uint `env:"PWAUTH_ARGON2_THREADS,default=4"`
	BcryptCost    int  `env:"PWAUTH_BCRYPT_COST,default=12"`

	Directory string `env:"PWAUTH_DIRECTORY,default=memory"`
	DSN       string `env:"PWAUTH_DSN"`
	RedisAddr string `env:"PWAUTH_REDIS_ADDR,default=localhost:6379"`
	BoltPath  string `env:"PWAUTH_BOLT_PATH,default=pwauth.db"`

	// BootstrapUser is created at startup when set, e.g. to seed a memory directory
	BootstrapUser     string `env:"PWAUTH_BOOTSTRAP_USER"`
	BootstrapPassword string `env:"PWAUTH_BOOTSTRAP_PASSWORD"`

	HTTPAddr    string `env:"PWAUTH_HTTP_ADDR,default=:8080"`
	SentryDSN   string `env:"SENTRY_DSN"`
	Environment string `env:"PWAUTH_ENV,default=development"`
}

var _ Config = (*Settings)(nil)

// LoadSettings reads optional dotenv files, then the environment, then
// validates. With no files given ".env" is tried.
func LoadSettings(envFiles ...string) (*Settings, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	s := &Settings{}
	if err := envdecode.Decode(s); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, err
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return s, nil
}

// Validate checks the settings are usable
func (s Settings) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.SigningKey, validation.Required, validation.Length(MinSigningKeyLen, 0)),
		validation.Field(&s.TokenTTL, validation.By(positiveDuration), validation.By(func(any) error {
			if s.MaxTokenTTL > 0 && s.TokenTTL > s.MaxTokenTTL {
				return errors.New("must not exceed max token ttl")
			}
			return nil
		})),
		validation.Field(&s.MaxTokenTTL, validation.By(positiveDuration)),
		validation.Field(&s.Leeway, validation.By(nonNegativeDuration)),
		validation.Field(&s.DirectoryTimeout, validation.By(nonNegativeDuration)),
		// digests above the parser limits would never verify
		validation.Field(&s.Argon2Time, validation.Max(uint(maxArgon2Time))),
		validation.Field(&s.Argon2Memory, validation.Max(uint(maxArgon2Memory))),
		validation.Field(&s.Argon2Threads, validation.Max(uint(255))),
		validation.Field(&s.Directory, validation.Required, validation.In(
			DirectoryMemory, DirectorySQLite, DirectoryPostgres, DirectoryRedis, DirectoryBolt,
		)),
		validation.Field(&s.DSN, validation.By(requiredIf(
			s.Directory == DirectorySQLite || s.Directory == DirectoryPostgres,
		))),
		validation.Field(&s.BcryptCost, validation.Min(4), validation.Max(31)),
		validation.Field(&s.BootstrapPassword, validation.By(requiredIf(s.BootstrapUser != ""))),
	)
}

func requiredIf(cond bool) validation.RuleFunc {
	return func(value any) error {
		if !cond {
			return nil
		}
		return validation.Validate(value, validation.Required)
	}
}

func positiveDuration(value any) error {
	d, _ := value.(time.Duration)
	if d <= 0 {
		return errors.New("must be a positive duration")
	}
	return nil
}

func nonNegativeDuration(value any) error {
	d, _ := value.(time.Duration)
	if d < 0 {
		return errors.New("must not be negative")
	}
	return nil
}

func (s Settings) GetSigningKey() string              { return s.SigningKey }
func (s Settings) GetTokenTTL() time.Duration         { return s.TokenTTL }
func (s Settings) GetMaxTokenTTL() time.Duration      { return s.MaxTokenTTL }
func (s Settings) GetLeeway() time.Duration           { return s.Leeway }
func (s Settings) GetIssuer() string                  { return s.Issuer }
func (s Settings) GetAudience() string                { return s.Audience }
func (s Settings) GetDirectoryTimeout() time.Duration { return s.DirectoryTimeout }
func (s Settings) GetArgon2Time() uint32              { return uint32(s.Argon2Time) }
func (s Settings) GetArgon2Memory() uint32            { return uint32(s.Argon2Memory) }
func (s Settings) GetArgon2Threads() uint8            { return uint8(s.Argon2Threads) }
func (s Settings) GetBcryptCost() int                 { return s.BcryptCost }

// RetiredKeys returns the retired signing keys as byte slices
func (s Settings) RetiredKeys() [][]byte {
	keys := make([][]byte, 0, len(s.RetiredSigningKeys))
	for _, k := range s.RetiredSigningKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}
	return keys
}
