package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSignUp               ActivityEventType = "auth.signup"
	ActivityEventLoginSuccess         ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure         ActivityEventType = "auth.login.failure"
	ActivityEventTokenRefreshed       ActivityEventType = "auth.token.refreshed"
	ActivityEventOTPRequested         ActivityEventType = "auth.otp.requested"
	ActivityEventOTPVerified          ActivityEventType = "auth.otp.verified"
	ActivityEventPasswordResetSuccess ActivityEventType = "auth.password.reset"
	ActivityEventFederatedLogin       ActivityEventType = "auth.federated.login"
	ActivityEventFederatedProvisioned ActivityEventType = "auth.federated.provisioned"
	ActivityEventProfileUpdated       ActivityEventType = "auth.profile.updated"
	ActivityEventAccountDeactivated   ActivityEventType = "auth.account.deactivated"
)

// ActorRef identifies who triggered an event
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

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// activityEmitter is shared by the flows. Sinks run best effort, a failing
// sink is logged and never fails the operation.
type activityEmitter struct {
	sink   ActivitySink
	logger Logger
	now    func() time.Time
}

func (e activityEmitter) emit(ctx context.Context, eventType ActivityEventType, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(e.sink)

	actor := ActorRef{Type: "unknown"}
	if userID != "" {
		actor = ActorRef{ID: userID, Type: "user"}
	}

	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    userID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	now := e.now
	if now == nil {
		now = time.Now
	}
	event.OccurredAt = now()

	if err := sink.Record(ctx, event); err != nil {
		defaultLogger(e.logger).Warn("activity sink record error", "event", eventType, "error", err)
	}
}
