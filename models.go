package auth

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
)

// TokenTypeBearer is the only token type we mint
const TokenTypeBearer = "bearer"

// Credentials is what a caller presents at login. It is never persisted.
type Credentials struct {
	Identifier string
	Secret     string
	Scopes     []string
}

// UserRecord is the directory's view of an account. Account management
// flows own it; this package only reads it.
type UserRecord struct {
	ID             uuid.UUID  `json:"id,omitempty"`
	Identifier     string     `json:"identifier"`
	DisplayName    string     `json:"display_name,omitempty"`
	Email          string     `json:"email,omitempty"`
	Active         bool       `json:"active"`
	PasswordDigest string     `json:"password_digest,omitempty"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// Validate checks the record can be stored by a directory
func (u UserRecord) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.Identifier, validation.Required, validation.Length(1, 255)),
		validation.Field(&u.DisplayName, validation.Length(0, 255)),
		validation.Field(&u.Email, is.Email),
		validation.Field(&u.PasswordDigest, validation.Required),
	)
}

// Principal returns the projection of the record safe to hand to request
// handlers. It never carries the password digest.
func (u UserRecord) Principal() *Principal {
	return &Principal{
		Identifier:  u.Identifier,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Active:      u.Active,
	}
}

// Principal is the authenticated identity derived from a request
type Principal struct {
	Identifier  string `json:"identifier"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
	Active      bool   `json:"active"`
}

// AccessToken is a signed bearer token plus what we know about it at
// issuance time.
type AccessToken struct {
	SignedString string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"-"`
	Scopes       []string  `json:"-"`
}

// ExpiresIn returns the remaining lifetime in whole seconds
func (t AccessToken) ExpiresIn(now time.Time) int64 {
	if t.ExpiresAt.IsZero() {
		return 0
	}
	secs := int64(t.ExpiresAt.Sub(now) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}

// Scope returns the scopes joined the way OAuth2 responses carry them
func (t AccessToken) Scope() string {
	return strings.Join(t.Scopes, " ")
}

// ParseScopes splits a space separated OAuth2 scope string. Order is kept
// and duplicates are dropped.
func ParseScopes(raw string) []string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(fields))
	scopes := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		scopes = append(scopes, f)
	}
	return scopes
}
