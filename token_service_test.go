package auth_test

import (
	"context"
	"encoding/base64"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-pwauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService(clock *fakeClock, opts ...auth.TokenServiceOption) *auth.TokenService {
	base := []auth.TokenServiceOption{auth.WithClock(clock.Now), auth.WithTokenLogger(&MockLogger{})}
	return auth.NewTokenService([]byte(testSigningKey), append(base, opts...)...)
}

func signRaw(t *testing.T, key []byte, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestTokenService_IssueAndVerify(t *testing.T) {
	clock := newFakeClock()
	ts := newTestTokenService(clock)

	token, err := ts.Issue("johndoe", []string{"me", "items"}, 0)
	require.NoError(t, err)

	assert.Equal(t, auth.TokenTypeBearer, token.TokenType)
	assert.True(t, clock.Now().Add(auth.DefaultTokenTTL).Equal(token.ExpiresAt), "exp %v", token.ExpiresAt)
	assert.Equal(t, int64(1800), token.ExpiresIn(clock.Now()))
	assert.Equal(t, "me items", token.Scope())
	assert.Equal(t, 2, strings.Count(token.SignedString, "."))

	claims, err := ts.Verify(token.SignedString)
	require.NoError(t, err)
	assert.Equal(t, "johndoe", claims.Subject())
	assert.Equal(t, []string{"me", "items"}, claims.Scopes)
	assert.True(t, claims.HasScope("me"))
	assert.False(t, claims.HasScope("admin"))
	assert.True(t, clock.Now().Equal(claims.IssuedAt()), "iat %v != %v", claims.IssuedAt(), clock.Now())
	assert.NotEmpty(t, claims.TokenID())
}

func TestTokenService_TokenIDsAreUnique(t *testing.T) {
	ts := newTestTokenService(newFakeClock())

	t1, err := ts.Issue("johndoe", nil, 0)
	require.NoError(t, err)
	t2, err := ts.Issue("johndoe", nil, 0)
	require.NoError(t, err)

	assert.NotEqual(t, t1.SignedString, t2.SignedString)
}

func TestTokenService_ExpiresAfterTTL(t *testing.T) {
	clock := newFakeClock()
	ts := newTestTokenService(clock)

	token, err := ts.Issue("johndoe", nil, 30*time.Minute)
	require.NoError(t, err)

	clock.Advance(30*time.Minute - time.Second)
	_, err = ts.Verify(token.SignedString)
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = ts.Verify(token.SignedString)
	require.Error(t, err)
	assert.Equal(t, auth.KindExpired, auth.KindOf(err))
	assert.True(t, auth.IsTokenExpiredError(err))
}

func TestTokenService_Leeway(t *testing.T) {
	clock := newFakeClock()
	ts := newTestTokenService(clock, auth.WithLeeway(10*time.Second))

	token, err := ts.Issue("johndoe", nil, time.Minute)
	require.NoError(t, err)

	clock.Advance(time.Minute + 5*time.Second)
	_, err = ts.Verify(token.SignedString)
	assert.NoError(t, err)

	clock.Advance(10 * time.Second)
	_, err = ts.Verify(token.SignedString)
	assert.Equal(t, auth.KindExpired, auth.KindOf(err))
}

func TestTokenService_IssueRejectsBadInput(t *testing.T) {
	ts := newTestTokenService(newFakeClock(), auth.WithMaxTokenTTL(time.Hour))

	tests := []struct {
		name    string
		subject string
		ttl     time.Duration
	}{
		{name: "empty subject", subject: "", ttl: 0},
		{name: "negative ttl", subject: "johndoe", ttl: -time.Second},
		{name: "ttl above maximum", subject: "johndoe", ttl: 2 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.Issue(tt.subject, nil, tt.ttl)
			require.Error(t, err)
			assert.Equal(t, auth.KindBadInput, auth.KindOf(err))
		})
	}

	_, err := ts.Issue("johndoe", nil, time.Hour)
	assert.NoError(t, err)
}

func TestTokenService_IssueWithoutKey(t *testing.T) {
	ts := auth.NewTokenService(nil, auth.WithTokenLogger(&MockLogger{}))
	_, err := ts.Issue("johndoe", nil, 0)
	assert.Error(t, err)
}

func TestTokenService_VerifyFailures(t *testing.T) {
	clock := newFakeClock()
	ts := newTestTokenService(clock)
	key := []byte(testSigningKey)

	valid, err := ts.Issue("johndoe", nil, 0)
	require.NoError(t, err)
	parts := strings.Split(valid.SignedString, ".")
	require.Len(t, parts, 3)

	forgedPayload := base64.RawURLEncoding.EncodeToString([]byte(
		`{"sub":"admin","exp":` + itoa(clock.Now().Add(time.Hour).Unix()) + `}`))
	tamperedPayload := parts[0] + "." + forgedPayload + "." + parts[2]

	otherKey := auth.NewTokenService([]byte("another-key-another-key-another!!"), auth.WithClock(clock.Now))
	foreign, err := otherKey.Issue("johndoe", nil, 0)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "johndoe",
		"exp": clock.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  auth.Kind
	}{
		{name: "empty", token: "", want: auth.KindMalformed},
		{name: "garbage", token: "not-a-token", want: auth.KindMalformed},
		{name: "bad json segment", token: "e30." + base64.RawURLEncoding.EncodeToString([]byte("{")) + ".sig", want: auth.KindMalformed},
		{name: "tampered payload", token: tamperedPayload, want: auth.KindBadSignature},
		{name: "signed with another key", token: foreign.SignedString, want: auth.KindBadSignature},
		{name: "alg none", token: none, want: auth.KindBadSignature},
		{name: "missing exp", token: signRaw(t, key, jwt.MapClaims{"sub": "johndoe"}), want: auth.KindMalformed},
		{name: "missing sub", token: signRaw(t, key, jwt.MapClaims{"exp": clock.Now().Add(time.Hour).Unix()}), want: auth.KindMalformed},
		{
			name:  "expired",
			token: signRaw(t, key, jwt.MapClaims{"sub": "johndoe", "exp": clock.Now().Add(-time.Second).Unix()}),
			want:  auth.KindExpired,
		},
		{
			name: "expired and wrongly signed",
			token: signRaw(t, []byte("another-key-another-key-another!!"), jwt.MapClaims{
				"sub": "johndoe", "exp": clock.Now().Add(-time.Hour).Unix(),
			}),
			want: auth.KindBadSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := ts.Verify(tt.token)
			require.Error(t, err)
			assert.Nil(t, claims)
			assert.Equal(t, tt.want, auth.KindOf(err))
		})
	}
}

func TestTokenService_TamperingAnyCharacterFails(t *testing.T) {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

	ts := newTestTokenService(newFakeClock())
	valid, err := ts.Issue("johndoe", []string{"me"}, 0)
	require.NoError(t, err)

	signed := valid.SignedString
	sigStart := strings.LastIndex(signed, ".") + 1

	for pos := 0; pos < len(signed); pos++ {
		if signed[pos] == '.' {
			continue
		}
		for _, c := range []byte(alphabet) {
			if c == signed[pos] {
				continue
			}
			tampered := []byte(signed)
			tampered[pos] = c

			claims, err := ts.Verify(string(tampered))
			if !assert.Error(t, err, "pos=%d %q->%q accepted", pos, signed[pos], c) {
				continue
			}
			assert.Nil(t, claims)

			kind := auth.KindOf(err)
			assert.Contains(t, []auth.Kind{auth.KindBadSignature, auth.KindMalformed}, kind, "pos=%d", pos)
			// a signature that still decodes canonically is simply wrong
			if pos >= sigStart && pos < len(signed)-1 {
				assert.Equal(t, auth.KindBadSignature, kind, "pos=%d %q->%q", pos, signed[pos], c)
			}
		}
	}
}

func TestTokenService_IssuerAndAudience(t *testing.T) {
	clock := newFakeClock()
	ts := newTestTokenService(clock, auth.WithIssuer("pwauth"), auth.WithAudience("api"))

	token, err := ts.Issue("johndoe", nil, 0)
	require.NoError(t, err)

	claims, err := ts.Verify(token.SignedString)
	require.NoError(t, err)
	assert.Equal(t, "pwauth", claims.Issuer)
	assert.Equal(t, jwt.ClaimStrings{"api"}, claims.Audience)

	other := newTestTokenService(clock, auth.WithIssuer("someone-else"), auth.WithAudience("api"))
	_, err = other.Verify(token.SignedString)
	assert.Equal(t, auth.KindMalformed, auth.KindOf(err))

	otherAud := newTestTokenService(clock, auth.WithIssuer("pwauth"), auth.WithAudience("web"))
	_, err = otherAud.Verify(token.SignedString)
	assert.Equal(t, auth.KindMalformed, auth.KindOf(err))
}

func TestTokenService_ClaimsDecorator(t *testing.T) {
	clock := newFakeClock()

	t.Run("adds metadata", func(t *testing.T) {
		ts := newTestTokenService(clock, auth.WithTokenClaimsDecorator(auth.ClaimsDecoratorFunc(
			func(ctx context.Context, claims *auth.TokenClaims) error {
				claims.Metadata = map[string]any{"tenant": "acme"}
				return nil
			})))

		token, err := ts.Issue("johndoe", nil, 0)
		require.NoError(t, err)

		claims, err := ts.Verify(token.SignedString)
		require.NoError(t, err)
		assert.Equal(t, "acme", claims.Metadata["tenant"])
	})

	tests := []struct {
		name   string
		mutate func(*auth.TokenClaims)
		claim  string
	}{
		{name: "subject", mutate: func(c *auth.TokenClaims) { c.RegisteredClaims.Subject = "admin" }, claim: "sub"},
		{name: "expiry", mutate: func(c *auth.TokenClaims) { c.ExpiresAt = jwt.NewNumericDate(clock.Now().Add(48 * time.Hour)) }, claim: "exp"},
		{name: "scopes", mutate: func(c *auth.TokenClaims) { c.Scopes = append(c.Scopes, "admin") }, claim: "scopes"},
		{name: "token id", mutate: func(c *auth.TokenClaims) { c.ID = "fixed" }, claim: "jti"},
	}

	for _, tt := range tests {
		t.Run("rejects "+tt.name+" mutation", func(t *testing.T) {
			ts := newTestTokenService(clock, auth.WithTokenClaimsDecorator(auth.ClaimsDecoratorFunc(
				func(ctx context.Context, claims *auth.TokenClaims) error {
					tt.mutate(claims)
					return nil
				})))

			_, err := ts.Issue("johndoe", []string{"me"}, 0)
			require.Error(t, err)

			var richErr *goerrors.Error
			require.True(t, goerrors.As(err, &richErr))
			assert.Equal(t, auth.ErrImmutableClaimMutation.TextCode, richErr.TextCode)
			assert.Equal(t, tt.claim, richErr.Metadata["claim"])
		})
	}
}

func TestMultiTokenVerifier(t *testing.T) {
	clock := newFakeClock()
	current := newTestTokenService(clock)
	retired := auth.NewTokenService([]byte("retired-key-retired-key-retired!!"), auth.WithClock(clock.Now))

	oldToken, err := retired.Issue("johndoe", nil, 0)
	require.NoError(t, err)

	_, err = current.Verify(oldToken.SignedString)
	require.Equal(t, auth.KindBadSignature, auth.KindOf(err))

	multi := auth.NewMultiTokenVerifier(current, nil, retired)
	claims, err := multi.Verify(oldToken.SignedString)
	require.NoError(t, err)
	assert.Equal(t, "johndoe", claims.Subject())

	clock.Advance(time.Hour)
	_, err = multi.Verify(oldToken.SignedString)
	assert.Equal(t, auth.KindExpired, auth.KindOf(err))

	_, err = auth.NewMultiTokenVerifier().Verify(oldToken.SignedString)
	assert.Equal(t, auth.KindMalformed, auth.KindOf(err))
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
