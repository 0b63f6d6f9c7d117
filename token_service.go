package auth

import (
	"context"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

const (
	// DefaultTokenTTL is used when Issue is called with a zero ttl
	DefaultTokenTTL = 30 * time.Minute
	// DefaultMaxTokenTTL caps the ttl callers can ask for
	DefaultMaxTokenTTL = 24 * time.Hour
)

// TokenService issues and verifies HS256 bearer tokens. The signing key is
// the only state it holds, so a single instance is safe for concurrent use.
type TokenService struct {
	signingKey      []byte
	ttl             time.Duration
	maxTTL          time.Duration
	leeway          time.Duration
	issuer          string
	audience        string
	now             func() time.Time
	claimsDecorator ClaimsDecorator
	logger          Logger
}

var (
	_ TokenIssuer   = (*TokenService)(nil)
	_ TokenVerifier = (*TokenService)(nil)
)

// TokenServiceOption configures a TokenService
type TokenServiceOption func(*TokenService)

// WithTokenTTL sets the ttl used when Issue gets zero
func WithTokenTTL(ttl time.Duration) TokenServiceOption {
	return func(ts *TokenService) {
		if ttl > 0 {
			ts.ttl = ttl
		}
	}
}

// WithMaxTokenTTL sets the largest ttl Issue accepts. Zero keeps the default.
func WithMaxTokenTTL(ttl time.Duration) TokenServiceOption {
	return func(ts *TokenService) {
		if ttl > 0 {
			ts.maxTTL = ttl
		}
	}
}

// WithLeeway tolerates clock skew when checking expiry
func WithLeeway(leeway time.Duration) TokenServiceOption {
	return func(ts *TokenService) {
		if leeway >= 0 {
			ts.leeway = leeway
		}
	}
}

// WithIssuer sets iss on issued tokens and requires it on verification
func WithIssuer(issuer string) TokenServiceOption {
	return func(ts *TokenService) {
		ts.issuer = issuer
	}
}

// WithAudience sets aud on issued tokens and requires it on verification
func WithAudience(audience string) TokenServiceOption {
	return func(ts *TokenService) {
		ts.audience = audience
	}
}

// WithClock overrides time.Now, mostly for tests
func WithClock(now func() time.Time) TokenServiceOption {
	return func(ts *TokenService) {
		if now != nil {
			ts.now = now
		}
	}
}

// WithTokenClaimsDecorator enriches claims before they are signed
func WithTokenClaimsDecorator(decorator ClaimsDecorator) TokenServiceOption {
	return func(ts *TokenService) {
		ts.claimsDecorator = normalizeClaimsDecorator(decorator)
	}
}

// WithTokenLogger sets the logger
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenService) {
		ts.logger = normalizeLogger(logger)
	}
}

// NewTokenService creates a new TokenService instance
func NewTokenService(signingKey []byte, opts ...TokenServiceOption) *TokenService {
	ts := &TokenService{
		signingKey:      slices.Clone(signingKey),
		ttl:             DefaultTokenTTL,
		maxTTL:          DefaultMaxTokenTTL,
		now:             time.Now,
		claimsDecorator: noopClaimsDecorator{},
		logger:          defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts
}

// NewTokenServiceFromConfig creates a TokenService from Config getters
func NewTokenServiceFromConfig(cfg Config, opts ...TokenServiceOption) *TokenService {
	base := []TokenServiceOption{
		WithTokenTTL(cfg.GetTokenTTL()),
		WithMaxTokenTTL(cfg.GetMaxTokenTTL()),
		WithLeeway(cfg.GetLeeway()),
		WithIssuer(cfg.GetIssuer()),
		WithAudience(cfg.GetAudience()),
	}
	return NewTokenService([]byte(cfg.GetSigningKey()), append(base, opts...)...)
}

// DefaultTTL returns the ttl used when Issue gets zero
func (ts *TokenService) DefaultTTL() time.Duration {
	return ts.ttl
}

// Issue mints a signed token for subject. A zero ttl uses the default.
// The subject is not checked against any directory.
func (ts *TokenService) Issue(subject string, scopes []string, ttl time.Duration) (AccessToken, error) {
	return ts.IssueContext(context.Background(), subject, scopes, ttl)
}

// IssueContext is Issue with a context handed to the claims decorator
func (ts *TokenService) IssueContext(ctx context.Context, subject string, scopes []string, ttl time.Duration) (AccessToken, error) {
	if subject == "" {
		return AccessToken{}, badInput("token subject is required", nil)
	}

	if ttl == 0 {
		ttl = ts.ttl
	}

	if ttl < 0 {
		return AccessToken{}, badInput("token TTL must be positive", map[string]any{"ttl": ttl.String()})
	}

	if ts.maxTTL > 0 && ttl > ts.maxTTL {
		return AccessToken{}, badInput("token TTL exceeds maximum", map[string]any{
			"ttl":     ttl.String(),
			"max_ttl": ts.maxTTL.String(),
		})
	}

	now := ts.now()
	claims := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	if ts.audience != "" {
		claims.RegisteredClaims.Audience = jwt.ClaimStrings{ts.audience}
	}

	if len(scopes) > 0 {
		claims.Scopes = slices.Clone(scopes)
	}

	ensureTokenID(&claims.RegisteredClaims)

	snapshot := captureImmutableClaims(claims)
	if err := normalizeClaimsDecorator(ts.claimsDecorator).Decorate(ctx, claims); err != nil {
		ts.logger.Error("claims decorator failed: %v", err)
		return AccessToken{}, err
	}
	if err := snapshot.validate(claims); err != nil {
		ts.logger.Error("claims decorator mutated immutable claims: %v", err)
		return AccessToken{}, err
	}

	signed, err := ts.SignClaims(claims)
	if err != nil {
		return AccessToken{}, err
	}

	return AccessToken{
		SignedString: signed,
		TokenType:    TokenTypeBearer,
		ExpiresAt:    claims.Expires(),
		Scopes:       claims.Scopes,
	}, nil
}

// SignClaims signs claims using the configured signing key.
func (ts *TokenService) SignClaims(claims *TokenClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	if len(ts.signingKey) == 0 {
		return "", errors.New("signing key is not configured", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Verify checks signature and expiry of a signed token and returns its
// claims. Failures are ErrTokenMalformed, ErrTokenBadSignature or
// ErrTokenExpired kinds. It does no I/O.
func (ts *TokenService) Verify(signed string) (*TokenClaims, error) {
	if signed == "" {
		return nil, ErrTokenMalformed
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		// lenient decoding ignores the trailing bits of the last character
		jwt.WithStrictDecoding(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(ts.leeway),
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if ts.audience != "" {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience))
	}

	token, err := jwt.ParseWithClaims(signed, &TokenClaims{}, func(t *jwt.Token) (any, error) {
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		kind := classifyJWTError(err)
		ts.logger.Debug("token verification failed: kind=%s err=%v", kind, err)
		switch kind {
		case KindExpired:
			return nil, tokenFailure(ErrTokenExpired, err)
		case KindBadSignature:
			return nil, tokenFailure(ErrTokenBadSignature, err)
		default:
			return nil, tokenFailure(ErrTokenMalformed, err)
		}
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		ts.logger.Error("token verification could not decode claims")
		return nil, ErrTokenMalformed
	}

	if claims.Subject() == "" {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

// classifyJWTError maps jwt parse errors onto our kinds. The parser checks
// the signature before any claim, so an expired token with a bad signature
// reports BadSignature.
func classifyJWTError(err error) Kind {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return KindMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return KindBadSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return KindExpired
	default:
		// missing exp, wrong iss/aud and the like: claims we cannot use
		return KindMalformed
	}
}
