package auth

import (
	"context"
	"strings"
	"time"
)

// lookupUser asks the directory for identifier, bounding the call with
// timeout when set. Anything other than a hit or a clean miss comes back as
// a DirectoryUnavailable error, never as ErrUserNotFound.
func lookupUser(ctx context.Context, directory UserDirectory, timeout time.Duration, identifier string) (*UserRecord, error) {
	return boundedLookup(ctx, directory.FindByIdentifier, timeout, identifier)
}

// lookupLogin is lookupUser for credential checks: when identifier looks
// like an email address and has no exact match, the email index is tried.
func lookupLogin(ctx context.Context, directory UserDirectory, timeout time.Duration, identifier string) (*UserRecord, error) {
	record, err := lookupUser(ctx, directory, timeout, identifier)
	if err == nil || !IsNotFound(err) || !strings.Contains(identifier, "@") {
		return record, err
	}

	emails, ok := directory.(EmailDirectory)
	if !ok {
		return nil, err
	}
	return boundedLookup(ctx, emails.FindByEmail, timeout, identifier)
}

func boundedLookup(ctx context.Context, find func(context.Context, string) (*UserRecord, error), timeout time.Duration, key string) (*UserRecord, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := ctx.Err(); err != nil {
		return nil, directoryUnavailable(err, key)
	}

	record, err := find(ctx, key)
	switch {
	case err == nil && record != nil:
		return record, nil
	case err == nil, IsNotFound(err):
		return nil, ErrUserNotFound
	case IsDirectoryUnavailable(err):
		return nil, err
	default:
		return nil, directoryUnavailable(err, key)
	}
}
