package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-print"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSignInSuccess        ActivityEventType = "identity.signin.success"
	ActivityEventSignInFailure        ActivityEventType = "identity.signin.failure"
	ActivityEventLockout              ActivityEventType = "identity.lockout.engaged"
	ActivityEventUnlock               ActivityEventType = "identity.lockout.cleared"
	ActivityEventExternalSignIn       ActivityEventType = "identity.external.signin"
	ActivityEventExternalLinked       ActivityEventType = "identity.external.linked"
	ActivityEventRegistered           ActivityEventType = "identity.user.registered"
	ActivityEventEmailConfirmed       ActivityEventType = "identity.email.confirmed"
	ActivityEventPasswordResetRequest ActivityEventType = "identity.password.reset_requested"
	ActivityEventPasswordResetSuccess ActivityEventType = "identity.password.reset"
	ActivityEventPasswordChanged      ActivityEventType = "identity.password.changed"
	ActivityEventRolesReplaced        ActivityEventType = "identity.roles.replaced"
	ActivityEventClaimsReplaced       ActivityEventType = "identity.claims.replaced"
	ActivityEventUserDeleted          ActivityEventType = "identity.user.deleted"
)

// ActorRef identifies who/what triggered an event.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

// NoopActivitySink returns a sink that drops every event.
func NoopActivitySink() ActivitySink {
	return noopActivitySink{}
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// LoggingActivitySink writes events through a Logger, pretty printing the
// metadata payload. Useful in development or as a fallback sink.
type LoggingActivitySink struct {
	logger Logger
}

// NewLoggingActivitySink creates a sink over the given logger.
func NewLoggingActivitySink(l Logger) *LoggingActivitySink {
	return &LoggingActivitySink{logger: normalizeLogger(l)}
}

// Record implements ActivitySink.
func (s *LoggingActivitySink) Record(_ context.Context, event ActivityEvent) error {
	s.logger.Info("activity %s user=%s actor=%s meta=%s",
		event.EventType,
		event.UserID,
		event.Actor.ID,
		print.MaybePrettyJSON(event.Metadata),
	)
	return nil
}

func recordActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil {
		normalizeLogger(logger).Warn("activity sink record error: %v", err)
	}
}
