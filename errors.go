package auth

import (
	"net/http"

	"github.com/goliatone/go-errors"
)

// Kind identifies an authentication failure. The set is closed: every error
// produced by this package maps to exactly one Kind.
type Kind string

const (
	KindNone                 Kind = ""
	KindInvalidCredentials   Kind = "INVALID_CREDENTIALS"
	KindMalformed            Kind = "TOKEN_MALFORMED"
	KindBadSignature         Kind = "TOKEN_BAD_SIGNATURE"
	KindExpired              Kind = "TOKEN_EXPIRED"
	KindInactive             Kind = "PRINCIPAL_INACTIVE"
	KindUnauthenticated      Kind = "UNAUTHENTICATED"
	KindDirectoryUnavailable Kind = "DIRECTORY_UNAVAILABLE"
	KindUserNotFound         Kind = "USER_NOT_FOUND"
	KindBadInput             Kind = "BAD_INPUT"
	KindInternal             Kind = "INTERNAL"
)

const (
	TextCodeInvalidCredentials   = string(KindInvalidCredentials)
	TextCodeTokenMalformed       = string(KindMalformed)
	TextCodeTokenBadSignature    = string(KindBadSignature)
	TextCodeTokenExpired         = string(KindExpired)
	TextCodePrincipalInactive    = string(KindInactive)
	TextCodeUnauthenticated      = string(KindUnauthenticated)
	TextCodeDirectoryUnavailable = string(KindDirectoryUnavailable)
	TextCodeUserNotFound         = string(KindUserNotFound)
	TextCodeBadInput             = string(KindBadInput)
)

const metaCauseKind = "cause_kind"

// ErrInvalidCredentials is returned for an unknown identifier and for a wrong
// secret alike.
var ErrInvalidCredentials = errors.New("incorrect username or password", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed token could not be decoded or its claims are unusable
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrTokenBadSignature token decodes but the signature does not match
var ErrTokenBadSignature = errors.New("token signature is invalid", errors.CategoryAuth).
	WithTextCode(TextCodeTokenBadSignature).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired signature is valid but the token is past its expiry
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrPrincipalInactive the token resolved to a disabled account
var ErrPrincipalInactive = errors.New("principal is inactive", errors.CategoryAuth).
	WithTextCode(TextCodePrincipalInactive).
	WithCode(errors.CodeUnauthorized)

// ErrUnauthenticated no usable credential was presented
var ErrUnauthenticated = errors.New("could not validate credentials", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(errors.CodeUnauthorized)

// ErrDirectoryUnavailable the user directory could not answer in time
var ErrDirectoryUnavailable = errors.New("user directory unavailable", errors.CategoryInternal).
	WithTextCode(TextCodeDirectoryUnavailable).
	WithCode(http.StatusServiceUnavailable)

// ErrUserNotFound is what directories return for unknown identifiers
var ErrUserNotFound = errors.New("user not found", errors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(errors.CodeNotFound)

// ErrEmptyPassword we do not hash empty secrets
var ErrEmptyPassword = errors.New("password must not be empty", errors.CategoryBadInput).
	WithTextCode(TextCodeBadInput).
	WithCode(errors.CodeBadRequest)

var knownKinds = map[Kind]struct{}{
	KindInvalidCredentials:   {},
	KindMalformed:            {},
	KindBadSignature:         {},
	KindExpired:              {},
	KindInactive:             {},
	KindUnauthenticated:      {},
	KindDirectoryUnavailable: {},
	KindUserNotFound:         {},
	KindBadInput:             {},
}

// KindOf reports the failure kind carried by err. Errors that did not
// originate here report KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr != nil {
		kind := Kind(richErr.TextCode)
		if _, ok := knownKinds[kind]; ok {
			return kind
		}
	}

	return KindInternal
}

// CauseKindOf reports the kind of the failure an Unauthenticated error was
// derived from, e.g. KindExpired. For any other error it returns KindOf(err).
func CauseKindOf(err error) Kind {
	var richErr *errors.Error
	if !errors.As(err, &richErr) || richErr == nil {
		return KindOf(err)
	}

	if Kind(richErr.TextCode) != KindUnauthenticated {
		return KindOf(err)
	}

	if cause, ok := richErr.Metadata[metaCauseKind].(string); ok && cause != "" {
		return Kind(cause)
	}

	return KindUnauthenticated
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	return KindOf(err) == KindExpired || CauseKindOf(err) == KindExpired
}

// IsMalformedError will check for tokens we could not decode
func IsMalformedError(err error) bool {
	return KindOf(err) == KindMalformed || CauseKindOf(err) == KindMalformed
}

// IsNotFound reports whether err means the directory has no such user
func IsNotFound(err error) bool {
	return KindOf(err) == KindUserNotFound
}

// IsDirectoryUnavailable reports a lookup that failed for infrastructure
// reasons. It is never a bad credential.
func IsDirectoryUnavailable(err error) bool {
	return KindOf(err) == KindDirectoryUnavailable
}

func tokenFailure(base *errors.Error, cause error) error {
	if cause == nil {
		return base
	}
	return errors.Wrap(cause, base.Category, base.Message).
		WithTextCode(base.TextCode).
		WithCode(base.Code)
}

func unauthenticated(cause error, reason string) error {
	return errors.Wrap(cause, errors.CategoryAuth, ErrUnauthenticated.Message).
		WithTextCode(TextCodeUnauthenticated).
		WithCode(errors.CodeUnauthorized).
		WithMetadata(map[string]any{
			metaCauseKind: string(KindOf(cause)),
			"reason":      reason,
		})
}

func directoryUnavailable(cause error, identifier string) error {
	return errors.Wrap(cause, errors.CategoryInternal, ErrDirectoryUnavailable.Message).
		WithTextCode(TextCodeDirectoryUnavailable).
		WithCode(http.StatusServiceUnavailable).
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

func badInput(message string, metadata map[string]any) error {
	err := errors.New(message, errors.CategoryBadInput).
		WithTextCode(TextCodeBadInput).
		WithCode(errors.CodeBadRequest)
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}
