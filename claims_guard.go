package auth

import (
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// ErrImmutableClaimMutation a decorator touched a protected claim
var ErrImmutableClaimMutation = errors.New("immutable claim mutated", errors.CategoryInternal).
	WithTextCode("IMMUTABLE_CLAIM_MUTATION").
	WithCode(errors.CodeInternal)

type immutableClaimsSnapshot struct {
	subject   string
	issuer    string
	tokenID   string
	audience  []string
	scopes    []string
	issuedAt  time.Time
	expiresAt time.Time
}

func captureImmutableClaims(claims *TokenClaims) immutableClaimsSnapshot {
	snap := immutableClaimsSnapshot{
		subject:  claims.RegisteredClaims.Subject,
		issuer:   claims.RegisteredClaims.Issuer,
		tokenID:  claims.RegisteredClaims.ID,
		audience: slices.Clone([]string(claims.RegisteredClaims.Audience)),
		scopes:   slices.Clone(claims.Scopes),
	}

	if claims.RegisteredClaims.IssuedAt != nil {
		snap.issuedAt = claims.RegisteredClaims.IssuedAt.Time
	}

	if claims.RegisteredClaims.ExpiresAt != nil {
		snap.expiresAt = claims.RegisteredClaims.ExpiresAt.Time
	}

	return snap
}

func (snap immutableClaimsSnapshot) validate(claims *TokenClaims) error {
	if claims.RegisteredClaims.Subject != snap.subject {
		return immutableClaimViolation("sub")
	}

	if claims.RegisteredClaims.Issuer != snap.issuer {
		return immutableClaimViolation("iss")
	}

	if claims.RegisteredClaims.ID != snap.tokenID {
		return immutableClaimViolation("jti")
	}

	if !slices.Equal([]string(claims.RegisteredClaims.Audience), snap.audience) {
		return immutableClaimViolation("aud")
	}

	if !slices.Equal(claims.Scopes, snap.scopes) {
		return immutableClaimViolation("scopes")
	}

	if err := compareNumericDate(claims.RegisteredClaims.IssuedAt, snap.issuedAt, "iat"); err != nil {
		return err
	}

	// exp is mandatory, a decorator may not drop or move it
	if err := compareNumericDate(claims.RegisteredClaims.ExpiresAt, snap.expiresAt, "exp"); err != nil {
		return err
	}

	return nil
}

func compareNumericDate(date *jwt.NumericDate, expected time.Time, field string) error {
	if date == nil || !date.Time.Equal(expected) {
		return immutableClaimViolation(field)
	}
	return nil
}

func immutableClaimViolation(field string) error {
	clone := ErrImmutableClaimMutation.Clone()
	if clone == nil {
		return ErrImmutableClaimMutation
	}
	clone.Message = fmt.Sprintf("immutable claim mutated: %s", field)
	clone.Source = ErrImmutableClaimMutation
	return clone.WithMetadata(map[string]any{"claim": field})
}
