package httpauth

import (
	"context"
	"slices"

	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-pwauth"
)

const (
	// DefaultPrincipalKey is the fiber locals key the principal is stored under
	DefaultPrincipalKey = "principal"
	// DefaultClaimsKey is the fiber locals key the verified claims are stored under
	DefaultClaimsKey = "claims"
)

// ClaimsResolver is what the middleware needs from the core. *auth.Service
// satisfies it.
type ClaimsResolver interface {
	ResolveClaims(ctx context.Context, signed string) (*auth.Principal, *auth.TokenClaims, error)
}

// MiddlewareConfig configures Middleware
type MiddlewareConfig struct {
	// Filter skips the middleware when it returns true
	Filter       func(*fiber.Ctx) bool
	ErrorHandler ErrorHandler
	Logger       auth.Logger
	TokenLookup  string
	AuthScheme   string
	PrincipalKey string
	ClaimsKey    string
}

func (cfg MiddlewareConfig) withDefaults() MiddlewareConfig {
	cfg.Logger = loggerOrDefault(cfg.Logger)
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = DefaultErrorHandler(cfg.Logger)
	}
	if cfg.TokenLookup == "" {
		cfg.TokenLookup = DefaultTokenLookup
	}
	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}
	if cfg.PrincipalKey == "" {
		cfg.PrincipalKey = DefaultPrincipalKey
	}
	if cfg.ClaimsKey == "" {
		cfg.ClaimsKey = DefaultClaimsKey
	}
	return cfg
}

// Middleware authenticates every request with a bearer token. A request
// without one is rejected before the resolver is called. On success the
// principal and claims are stored in fiber locals and in the user context.
func Middleware(resolver ClaimsResolver, config ...MiddlewareConfig) fiber.Handler {
	var cfg MiddlewareConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	cfg = cfg.withDefaults()
	extractors := GetExtractors(cfg.TokenLookup, cfg.AuthScheme)

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		raw, err := ExtractToken(c, extractors)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		principal, claims, err := resolver.ResolveClaims(c.UserContext(), raw)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		c.Locals(cfg.PrincipalKey, principal)
		c.Locals(cfg.ClaimsKey, claims)

		ctx := auth.WithPrincipal(c.UserContext(), principal)
		ctx = auth.WithClaimsContext(ctx, claims)
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// RequireScopes rejects requests whose token lacks any of scopes. It must
// run after Middleware.
func RequireScopes(scopes ...string) fiber.Handler {
	return RequireScopesWith(MiddlewareConfig{}, scopes...)
}

// RequireScopesWith is RequireScopes with a custom config for the locals key
// and error handler
func RequireScopesWith(cfg MiddlewareConfig, scopes ...string) fiber.Handler {
	cfg = cfg.withDefaults()
	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals(cfg.ClaimsKey).(*auth.TokenClaims)
		if !ok || claims == nil {
			return cfg.ErrorHandler(c, ErrMissingBearer)
		}

		var missing []string
		for _, scope := range scopes {
			if !claims.HasScope(scope) {
				missing = append(missing, scope)
			}
		}

		if len(missing) > 0 {
			return cfg.ErrorHandler(c, ErrInsufficientScope.Clone().WithMetadata(map[string]any{
				"subject":  claims.Subject(),
				"required": slices.Clone(scopes),
				"missing":  missing,
			}))
		}

		return c.Next()
	}
}

// PrincipalFromCtx returns the principal stored by Middleware
func PrincipalFromCtx(c *fiber.Ctx, key ...string) (*auth.Principal, bool) {
	k := DefaultPrincipalKey
	if len(key) > 0 && key[0] != "" {
		k = key[0]
	}
	principal, ok := c.Locals(k).(*auth.Principal)
	return principal, ok && principal != nil
}

// ClaimsFromCtx returns the claims stored by Middleware
func ClaimsFromCtx(c *fiber.Ctx, key ...string) (*auth.TokenClaims, bool) {
	k := DefaultClaimsKey
	if len(key) > 0 && key[0] != "" {
		k = key[0]
	}
	claims, ok := c.Locals(k).(*auth.TokenClaims)
	return claims, ok && claims != nil
}
