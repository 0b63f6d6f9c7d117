package auth

import (
	"context"
	"time"
)

// Resolver turns a bearer token into the current principal. The token
// proves who the caller was at issuance; the directory is asked every time
// whether that account still exists and is active. There is no revocation
// list: disabling an account takes effect on the next Resolve.
type Resolver struct {
	verifier     TokenVerifier
	directory    UserDirectory
	timeout      time.Duration
	logger       Logger
	activitySink ActivitySink
}

var _ PrincipalResolver = (*Resolver)(nil)

// NewResolver creates a Resolver
func NewResolver(verifier TokenVerifier, directory UserDirectory) *Resolver {
	return &Resolver{
		verifier:     verifier,
		directory:    directory,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (r *Resolver) WithLogger(logger Logger) *Resolver {
	r.logger = normalizeLogger(logger)
	return r
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (r *Resolver) WithActivitySink(sink ActivitySink) *Resolver {
	r.activitySink = normalizeActivitySink(sink)
	return r
}

// WithDirectoryTimeout bounds each directory lookup
func (r *Resolver) WithDirectoryTimeout(timeout time.Duration) *Resolver {
	r.timeout = timeout
	return r
}

// Resolve verifies signed and loads its subject. Token failures come back
// as Unauthenticated with the token kind kept as cause (see CauseKindOf),
// a missing subject as Unauthenticated, a disabled account as
// ErrPrincipalInactive and lookup failures as DirectoryUnavailable.
func (r *Resolver) Resolve(ctx context.Context, signed string) (*Principal, error) {
	principal, _, err := r.ResolveClaims(ctx, signed)
	return principal, err
}

// ResolveClaims is Resolve that also hands back the verified claims, e.g.
// for scope checks.
func (r *Resolver) ResolveClaims(ctx context.Context, signed string) (*Principal, *TokenClaims, error) {
	claims, err := r.verifier.Verify(signed)
	if err != nil {
		r.emit(ctx, "", KindOf(err), nil)
		return nil, nil, unauthenticated(err, "token rejected")
	}

	subject := claims.Subject()

	record, err := lookupUser(ctx, r.directory, r.timeout, subject)
	if err != nil {
		if IsNotFound(err) {
			r.emit(ctx, subject, KindUserNotFound, nil)
			return nil, nil, unauthenticated(err, "principal no longer exists")
		}

		r.logger.Error("Resolve directory lookup failed: %v", err)
		emitActivity(ctx, r.activitySink, r.logger, ActivityEvent{
			EventType:  ActivityEventDirectoryUnavailable,
			Identifier: subject,
			Kind:       KindOf(err),
			Metadata:   map[string]any{"error": err.Error()},
		})
		return nil, nil, err
	}

	if !record.Active {
		r.emit(ctx, subject, KindInactive, nil)
		return nil, nil, ErrPrincipalInactive
	}

	return record.Principal(), claims, nil
}

func (r *Resolver) emit(ctx context.Context, identifier string, kind Kind, metadata map[string]any) {
	emitActivity(ctx, r.activitySink, r.logger, ActivityEvent{
		EventType:  ActivityEventResolveFailure,
		Identifier: identifier,
		Kind:       kind,
		Metadata:   metadata,
	})
}
