package auth

import (
	"context"
	"time"
)

// timingEqualizer is implemented by hashers that can hand out a digest
// nobody knows the secret for
type timingEqualizer interface {
	DummyDigest() string
}

// Authenticator verifies credentials against the directory. It does not
// look at the active flag: a disabled account still authenticates here and
// is rejected when its token is resolved, so login failures never reveal
// account state.
type Authenticator struct {
	directory    UserDirectory
	hasher       PasswordHasher
	timeout      time.Duration
	logger       Logger
	activitySink ActivitySink
}

var _ CredentialAuthenticator = (*Authenticator)(nil)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(directory UserDirectory, hasher PasswordHasher) *Authenticator {
	if hasher == nil {
		hasher = NewDefaultHasher()
	}
	return &Authenticator{
		directory:    directory,
		hasher:       hasher,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (a *Authenticator) WithLogger(logger Logger) *Authenticator {
	a.logger = normalizeLogger(logger)
	return a
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (a *Authenticator) WithActivitySink(sink ActivitySink) *Authenticator {
	a.activitySink = normalizeActivitySink(sink)
	return a
}

// WithDirectoryTimeout bounds each directory lookup. Zero relies on the
// caller's deadline alone.
func (a *Authenticator) WithDirectoryTimeout(timeout time.Duration) *Authenticator {
	a.timeout = timeout
	return a
}

// Authenticate returns the user record for identifier when secret matches.
// Unknown identifiers and wrong secrets both yield ErrInvalidCredentials.
// An identifier containing "@" may also match a user's email when the
// directory implements EmailDirectory.
func (a *Authenticator) Authenticate(ctx context.Context, identifier, secret string) (*UserRecord, error) {
	record, err := lookupLogin(ctx, a.directory, a.timeout, identifier)
	if err != nil {
		if IsNotFound(err) {
			a.equalizeTiming(secret)
			a.emit(ctx, ActivityEventLoginFailure, identifier, KindInvalidCredentials, map[string]any{
				"reason": "unknown identifier",
			})
			return nil, ErrInvalidCredentials
		}

		a.logger.Error("Authenticate directory lookup failed: %v", err)
		a.emit(ctx, ActivityEventDirectoryUnavailable, identifier, KindOf(err), map[string]any{
			"error": err.Error(),
		})
		return nil, err
	}

	if !a.hasher.Verify(secret, record.PasswordDigest) {
		a.emit(ctx, ActivityEventLoginFailure, identifier, KindInvalidCredentials, map[string]any{
			"reason": "secret mismatch",
		})
		return nil, ErrInvalidCredentials
	}

	a.emit(ctx, ActivityEventLoginSuccess, record.Identifier, KindNone, nil)

	return record, nil
}

// equalizeTiming spends the same work a real verification would so an
// unknown identifier is not faster to reject than a wrong secret
func (a *Authenticator) equalizeTiming(secret string) {
	eq, ok := a.hasher.(timingEqualizer)
	if !ok {
		return
	}
	if dummy := eq.DummyDigest(); dummy != "" {
		_ = a.hasher.Verify(secret, dummy)
	}
}

func (a *Authenticator) emit(ctx context.Context, eventType ActivityEventType, identifier string, kind Kind, metadata map[string]any) {
	emitActivity(ctx, a.activitySink, a.logger, ActivityEvent{
		EventType:  eventType,
		Identifier: identifier,
		Kind:       kind,
		Metadata:   metadata,
	})
}
