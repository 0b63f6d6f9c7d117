package httpauth

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	auth "github.com/goliatone/go-pwauth"
)

// Client facing messages. The fine grained kind is logged, never returned.
const (
	MessageInvalidCredentials = "Incorrect username or password"
	MessageUnauthenticated    = "Could not validate credentials"
	MessageUnavailable        = "Authentication is temporarily unavailable"
	MessageInsufficientScope  = "Insufficient scope"
	MessageInternal           = "An unexpected server error occurred"
)

// OAuth2 error codes used in ErrorResponse.Error
const (
	ErrCodeInvalidRequest       = "invalid_request"
	ErrCodeInvalidGrant         = "invalid_grant"
	ErrCodeUnsupportedGrantType = "unsupported_grant_type"
	ErrCodeInvalidToken         = "invalid_token"
	ErrCodeInsufficientScope    = "insufficient_scope"
	ErrCodeTemporarilyUnavail   = "temporarily_unavailable"
	ErrCodeServerError          = "server_error"
)

// DefaultRetryAfter is sent with 503 responses
const DefaultRetryAfter = 5

// ErrMissingBearer the request carried no bearer credential
var ErrMissingBearer = errors.New("missing or malformed bearer token", errors.CategoryAuth).
	WithTextCode(auth.TextCodeUnauthenticated).
	WithCode(errors.CodeUnauthorized)

// ErrInsufficientScope the token does not carry a required scope
var ErrInsufficientScope = errors.New("token lacks required scope", errors.CategoryAuthz).
	WithTextCode("INSUFFICIENT_SCOPE").
	WithCode(errors.CodeForbidden)

// ErrorResponse is the JSON body of every error we write
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// ErrorHandler writes err to the client
type ErrorHandler func(c *fiber.Ctx, err error) error

// DefaultErrorHandler maps auth failures onto HTTP responses
func DefaultErrorHandler(logger auth.Logger) ErrorHandler {
	logger = loggerOrDefault(logger)
	return func(c *fiber.Ctx, err error) error {
		return writeError(c, logger, err)
	}
}

func writeError(c *fiber.Ctx, logger auth.Logger, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, MessageInternal).
			WithCode(errors.CodeInternal)
	}

	kind := auth.KindOf(err)

	switch kind {
	case auth.KindInvalidCredentials:
		logger.Info("auth failure path=%s kind=%s", c.Path(), kind)
		return challenge(c, http.StatusUnauthorized, ErrCodeInvalidGrant, MessageInvalidCredentials)

	case auth.KindMalformed, auth.KindBadSignature, auth.KindExpired,
		auth.KindInactive, auth.KindUnauthenticated, auth.KindUserNotFound:
		logger.Info("auth failure path=%s kind=%s cause=%s details=%s",
			c.Path(), kind, auth.CauseKindOf(err), print.MaybePrettyJSON(richErr.Metadata))
		return challenge(c, http.StatusUnauthorized, ErrCodeInvalidToken, MessageUnauthenticated)

	case auth.KindDirectoryUnavailable:
		logger.Error("directory unavailable path=%s err=%v details=%s",
			c.Path(), err, print.MaybePrettyJSON(richErr.Metadata))
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(DefaultRetryAfter))
		return c.Status(http.StatusServiceUnavailable).JSON(ErrorResponse{
			Error:  ErrCodeTemporarilyUnavail,
			Detail: MessageUnavailable,
		})

	case auth.KindBadInput:
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Error:  ErrCodeInvalidRequest,
			Detail: richErr.Message,
		})
	}

	if richErr.TextCode == ErrInsufficientScope.TextCode {
		logger.Info("auth failure path=%s kind=insufficient_scope details=%s",
			c.Path(), print.MaybePrettyJSON(richErr.Metadata))
		c.Set(fiber.HeaderWWWAuthenticate, `Bearer error="insufficient_scope"`)
		return c.Status(http.StatusForbidden).JSON(ErrorResponse{
			Error:  ErrCodeInsufficientScope,
			Detail: MessageInsufficientScope,
		})
	}

	logger.Error("unexpected error path=%s err=%v", c.Path(), err)
	return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
		Error:  ErrCodeServerError,
		Detail: MessageInternal,
	})
}

func challenge(c *fiber.Ctx, status int, code, detail string) error {
	c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
	return c.Status(status).JSON(ErrorResponse{
		Error:  code,
		Detail: detail,
	})
}

func badRequest(c *fiber.Ctx, code, detail string) error {
	return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
		Error:  code,
		Detail: detail,
	})
}

func loggerOrDefault(logger auth.Logger) auth.Logger {
	if logger == nil {
		return auth.DefaultLogger()
	}
	return logger
}
