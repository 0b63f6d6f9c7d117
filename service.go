package auth

import (
	"context"
	"slices"
	"time"
)

// Service wires the authenticator, token service and resolver over one
// directory. It is what an HTTP layer talks to.
type Service struct {
	authenticator *Authenticator
	tokens        *TokenService
	resolver      *Resolver
	verifier      TokenVerifier
	hasher        *Hasher
	logger        Logger
	activitySink  ActivitySink
}

// ServiceOption configures a Service
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	hasher       *Hasher
	logger       Logger
	activitySink ActivitySink
	tokenOpts    []TokenServiceOption
	retiredKeys  [][]byte
}

// WithServiceHasher overrides the hasher built from config
func WithServiceHasher(h *Hasher) ServiceOption {
	return func(o *serviceOptions) {
		o.hasher = h
	}
}

// WithServiceLogger sets the logger for every component
func WithServiceLogger(l Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = l
	}
}

// WithServiceActivitySink sets the activity sink for every component
func WithServiceActivitySink(s ActivitySink) ServiceOption {
	return func(o *serviceOptions) {
		o.activitySink = s
	}
}

// WithServiceTokenOptions appends token service options, e.g. WithClock
func WithServiceTokenOptions(opts ...TokenServiceOption) ServiceOption {
	return func(o *serviceOptions) {
		o.tokenOpts = append(o.tokenOpts, opts...)
	}
}

// WithRetiredSigningKeys keeps tokens signed with older keys verifiable
// until they expire. New tokens are always signed with the current key.
func WithRetiredSigningKeys(keys ...[]byte) ServiceOption {
	return func(o *serviceOptions) {
		o.retiredKeys = append(o.retiredKeys, keys...)
	}
}

// NewService builds a Service from cfg over directory
func NewService(directory UserDirectory, cfg Config, opts ...ServiceOption) (*Service, error) {
	if directory == nil {
		return nil, badInput("user directory is required", nil)
	}

	if len(cfg.GetSigningKey()) == 0 {
		return nil, badInput("signing key is required", nil)
	}

	o := &serviceOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	logger := normalizeLogger(o.logger)
	sink := normalizeActivitySink(o.activitySink)

	hasher := o.hasher
	if hasher == nil {
		hasher = NewHasherFromConfig(cfg)
	}

	tokenOpts := append([]TokenServiceOption{WithTokenLogger(logger)}, o.tokenOpts...)
	tokens := NewTokenServiceFromConfig(cfg, tokenOpts...)

	authenticator := NewAuthenticator(directory, hasher).
		WithLogger(logger).
		WithActivitySink(sink).
		WithDirectoryTimeout(cfg.GetDirectoryTimeout())

	var verifier TokenVerifier = tokens
	if len(o.retiredKeys) > 0 {
		chain := []TokenVerifier{tokens}
		for _, key := range o.retiredKeys {
			if len(key) == 0 {
				continue
			}
			retired := NewTokenServiceFromConfig(cfg, tokenOpts...)
			retired.signingKey = slices.Clone(key)
			chain = append(chain, retired)
		}
		verifier = NewMultiTokenVerifier(chain...)
	}

	resolver := NewResolver(verifier, directory).
		WithLogger(logger).
		WithActivitySink(sink).
		WithDirectoryTimeout(cfg.GetDirectoryTimeout())

	return &Service{
		authenticator: authenticator,
		tokens:        tokens,
		resolver:      resolver,
		verifier:      verifier,
		hasher:        hasher,
		logger:        logger,
		activitySink:  sink,
	}, nil
}

// Login authenticates creds and mints a token for the user with the
// requested scopes and the default ttl. Scopes are carried, not checked.
func (s *Service) Login(ctx context.Context, creds Credentials) (AccessToken, error) {
	record, err := s.authenticator.Authenticate(ctx, creds.Identifier, creds.Secret)
	if err != nil {
		return AccessToken{}, err
	}

	token, err := s.tokens.IssueContext(ctx, record.Identifier, creds.Scopes, 0)
	if err != nil {
		s.logger.Error("Login failed to issue token: %v", err)
		return AccessToken{}, err
	}

	emitActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType:  ActivityEventTokenIssued,
		Identifier: record.Identifier,
		Metadata: map[string]any{
			"scopes":     token.Scopes,
			"expires_at": token.ExpiresAt.Format(time.RFC3339),
		},
	})

	return token, nil
}

// Authenticate see Authenticator.Authenticate
func (s *Service) Authenticate(ctx context.Context, identifier, secret string) (*UserRecord, error) {
	return s.authenticator.Authenticate(ctx, identifier, secret)
}

// Issue see TokenService.Issue
func (s *Service) Issue(subject string, scopes []string, ttl time.Duration) (AccessToken, error) {
	return s.tokens.Issue(subject, scopes, ttl)
}

// Verify checks signed against the current and any retired signing keys
func (s *Service) Verify(signed string) (*TokenClaims, error) {
	return s.verifier.Verify(signed)
}

// Resolve see Resolver.Resolve
func (s *Service) Resolve(ctx context.Context, signed string) (*Principal, error) {
	return s.resolver.Resolve(ctx, signed)
}

// ResolveClaims see Resolver.ResolveClaims
func (s *Service) ResolveClaims(ctx context.Context, signed string) (*Principal, *TokenClaims, error) {
	return s.resolver.ResolveClaims(ctx, signed)
}

// Hasher returns the password hasher in use
func (s *Service) Hasher() *Hasher {
	return s.hasher
}

// TokenService returns the TokenService instance used by this Service
func (s *Service) TokenService() *TokenService {
	return s.tokens
}
