package httpauth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-pwauth"
)

// GrantTypePassword is the only grant the token endpoint serves
const GrantTypePassword = "password"

// Routes where Handler.Register mounts its endpoints
type Routes struct {
	Token string
	Me    string
}

// DefaultRoutes returns the default endpoint paths
func DefaultRoutes() Routes {
	return Routes{
		Token: "/token",
		Me:    "/me",
	}
}

// LoginService is the core login operation. *auth.Service satisfies it.
type LoginService interface {
	Login(ctx context.Context, creds auth.Credentials) (auth.AccessToken, error)
	ClaimsResolver
}

// TokenForm is the OAuth2 password grant request body. identifier and
// secret are accepted as aliases of username and password.
type TokenForm struct {
	GrantType  string `form:"grant_type"`
	Username   string `form:"username"`
	Password   string `form:"password"`
	Identifier string `form:"identifier"`
	Secret     string `form:"secret"`
	Scope      string `form:"scope"`
}

// normalize folds the alias fields into Username and Password
func (f *TokenForm) normalize() {
	if f.Username == "" {
		f.Username = f.Identifier
	}
	if f.Password == "" {
		f.Password = f.Secret
	}
}

// Validate checks the form has what a password grant needs
func (f TokenForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Username, validation.Required, validation.Length(1, 255)),
		validation.Field(&f.Password, validation.Required, validation.Length(1, 1024)),
		validation.Field(&f.Scope, validation.Length(0, 2048)),
	)
}

// TokenResponse is the OAuth2 token endpoint success body
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

// Handler serves the token endpoint and an authenticated /me endpoint
type Handler struct {
	service      LoginService
	routes       Routes
	logger       auth.Logger
	errorHandler ErrorHandler
	middleware   MiddlewareConfig
	now          func() time.Time
}

// Option configures a Handler
type Option func(*Handler)

// WithRoutes overrides the endpoint paths
func WithRoutes(routes Routes) Option {
	return func(h *Handler) {
		if routes.Token != "" {
			h.routes.Token = routes.Token
		}
		if routes.Me != "" {
			h.routes.Me = routes.Me
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger auth.Logger) Option {
	return func(h *Handler) {
		h.logger = loggerOrDefault(logger)
	}
}

// WithErrorHandler overrides how failures are written
func WithErrorHandler(handler ErrorHandler) Option {
	return func(h *Handler) {
		if handler != nil {
			h.errorHandler = handler
		}
	}
}

// WithMiddlewareConfig sets the config used for the /me route
func WithMiddlewareConfig(cfg MiddlewareConfig) Option {
	return func(h *Handler) {
		h.middleware = cfg
	}
}

// WithClock overrides time.Now used for expires_in
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler creates a Handler over service
func NewHandler(service LoginService, opts ...Option) *Handler {
	h := &Handler{
		service: service,
		routes:  DefaultRoutes(),
		logger:  auth.DefaultLogger(),
		now:     time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	if h.errorHandler == nil {
		h.errorHandler = DefaultErrorHandler(h.logger)
	}
	if h.middleware.ErrorHandler == nil {
		h.middleware.ErrorHandler = h.errorHandler
	}
	if h.middleware.Logger == nil {
		h.middleware.Logger = h.logger
	}

	return h
}

// Register mounts the endpoints on router
func (h *Handler) Register(router fiber.Router) {
	router.Post(h.routes.Token, h.Token)
	router.Get(h.routes.Me, h.Middleware(), h.Me)
}

// Middleware returns the bearer middleware bound to this handler's service
func (h *Handler) Middleware() fiber.Handler {
	return Middleware(h.service, h.middleware)
}

// Token implements the OAuth2 password grant
func (h *Handler) Token(c *fiber.Ctx) error {
	if !isFormRequest(c) {
		return badRequest(c, ErrCodeInvalidRequest, "request body must be form encoded")
	}

	form := TokenForm{}
	if err := c.BodyParser(&form); err != nil {
		return badRequest(c, ErrCodeInvalidRequest, "could not parse form")
	}

	if form.GrantType != "" && form.GrantType != GrantTypePassword {
		return badRequest(c, ErrCodeUnsupportedGrantType, "only the password grant is supported")
	}

	form.normalize()
	if err := form.Validate(); err != nil {
		return badRequest(c, ErrCodeInvalidRequest, err.Error())
	}

	token, err := h.service.Login(c.UserContext(), auth.Credentials{
		Identifier: form.Username,
		Secret:     form.Password,
		Scopes:     auth.ParseScopes(form.Scope),
	})
	if err != nil {
		return h.errorHandler(c, err)
	}

	c.Set(fiber.HeaderCacheControl, "no-store")
	c.Set(fiber.HeaderPragma, "no-cache")

	return c.JSON(TokenResponse{
		AccessToken: token.SignedString,
		TokenType:   token.TokenType,
		ExpiresIn:   token.ExpiresIn(h.now()),
		Scope:       token.Scope(),
	})
}

// Me returns the authenticated principal
func (h *Handler) Me(c *fiber.Ctx) error {
	principal, ok := PrincipalFromCtx(c, h.middleware.PrincipalKey)
	if !ok {
		return h.errorHandler(c, ErrMissingBearer)
	}
	return c.JSON(principal)
}

func isFormRequest(c *fiber.Ctx) bool {
	ct := strings.ToLower(c.Get(fiber.HeaderContentType))
	return strings.HasPrefix(ct, fiber.MIMEApplicationForm) ||
		strings.HasPrefix(ct, fiber.MIMEMultipartForm)
}
