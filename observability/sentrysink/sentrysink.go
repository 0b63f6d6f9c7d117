// Package sentrysink forwards infrastructure failures seen by the auth
// components to Sentry. Ordinary credential failures are not reported.
package sentrysink

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	auth "github.com/goliatone/go-pwauth"
)

// FlushTimeout is how long Flush waits for buffered events
const FlushTimeout = 2 * time.Second

// Init configures the global Sentry client. An empty dsn leaves Sentry
// disabled and is not an error.
func Init(dsn, environment string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	})
}

// Flush waits for buffered events to be sent
func Flush() {
	sentry.Flush(FlushTimeout)
}

// Sink is an auth.ActivitySink reporting directory outages and internal
// failures
type Sink struct {
	hub *sentry.Hub
}

var _ auth.ActivitySink = (*Sink)(nil)

// New returns a Sink on hub, or on the current hub when hub is nil
func New(hub *sentry.Hub) *Sink {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	return &Sink{hub: hub}
}

// Record implements auth.ActivitySink.
func (s *Sink) Record(ctx context.Context, event auth.ActivityEvent) error {
	if !reportable(event) {
		return nil
	}

	hub := s.hub
	if ctxHub := sentry.GetHubFromContext(ctx); ctxHub != nil {
		hub = ctxHub
	}

	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		scope.SetTag("event_type", string(event.EventType))
		scope.SetTag("kind", string(event.Kind))
		if event.Identifier != "" {
			scope.SetUser(sentry.User{Username: event.Identifier})
		}
		for k, v := range event.Metadata {
			scope.SetExtra(k, v)
		}
		hub.CaptureMessage(string(event.EventType))
	})

	return nil
}

func reportable(event auth.ActivityEvent) bool {
	return event.EventType == auth.ActivityEventDirectoryUnavailable ||
		event.Kind == auth.KindInternal
}
