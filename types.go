package auth

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// UserDirectory is the read-only store we resolve users from.
// FindByIdentifier matches the identifier exactly, never an alias such as
// an email address. Implementations return ErrUserNotFound for unknown
// identifiers and any other error when the store could not answer.
type UserDirectory interface {
	FindByIdentifier(ctx context.Context, identifier string) (*UserRecord, error)
}

// EmailDirectory is implemented by directories that index users by email.
// Only credential checks use it; token subjects are always looked up by
// exact identifier.
type EmailDirectory interface {
	FindByEmail(ctx context.Context, email string) (*UserRecord, error)
}

// UserDirectoryFunc adapts a function into a UserDirectory.
type UserDirectoryFunc func(ctx context.Context, identifier string) (*UserRecord, error)

// FindByIdentifier satisfies the UserDirectory interface.
func (f UserDirectoryFunc) FindByIdentifier(ctx context.Context, identifier string) (*UserRecord, error) {
	if f == nil {
		return nil, ErrUserNotFound
	}
	return f(ctx, identifier)
}

// PasswordHasher creates and checks password digests
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

// CredentialAuthenticator turns an identifier and secret into a user record
type CredentialAuthenticator interface {
	Authenticate(ctx context.Context, identifier, secret string) (*UserRecord, error)
}

// TokenIssuer mints signed bearer tokens
type TokenIssuer interface {
	Issue(subject string, scopes []string, ttl time.Duration) (AccessToken, error)
}

// TokenVerifier validates signed bearer tokens and extracts their claims
type TokenVerifier interface {
	Verify(signed string) (*TokenClaims, error)
}

// PrincipalResolver turns a bearer token into the current principal
type PrincipalResolver interface {
	Resolve(ctx context.Context, signed string) (*Principal, error)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetTokenTTL() time.Duration
	GetMaxTokenTTL() time.Duration
	GetLeeway() time.Duration
	GetIssuer() string
	GetAudience() string
	GetDirectoryTimeout() time.Duration
	GetArgon2Time() uint32
	GetArgon2Memory() uint32
	GetArgon2Threads() uint8
	GetBcryptCost() int
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// DefaultLogger returns the printf logger used when none is configured.
func DefaultLogger() Logger {
	return defLogger{}
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
