package activitymap_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/storefront/go-auth"
	"github.com/storefront/go-auth/activitymap"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := auth.ActivityEvent{
		EventType: auth.ActivityEventLoginSuccess,
		Actor:     auth.ActorRef{ID: "user-100", Type: "user"},
		UserID:    "user-100",
		Metadata: map[string]any{
			"email": "user@example.com",
		},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	assert.Equal(t, "user-100", out.ActorID)
	assert.Equal(t, string(auth.ActivityEventLoginSuccess), out.Verb)
	assert.Equal(t, "user-100", out.ObjectID)
	assert.Equal(t, "auth", out.Channel)
	assert.True(t, out.OccurredAt.Equal(ts))
	assert.Equal(t, "user@example.com", out.Metadata["email"])
	assert.Equal(t, "user", out.Metadata[activitymap.MetadataKeyActorType])
}

func TestNormalizeAnonymousAndClock(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	out := activitymap.Normalize(auth.ActivityEvent{
		EventType: auth.ActivityEventLoginFailure,
	}, activitymap.WithClock(func() time.Time { return ts }), activitymap.WithChannel("audit"))

	assert.Equal(t, "anonymous", out.ActorID)
	assert.Empty(t, out.ObjectID)
	assert.Equal(t, "audit", out.Channel)
	assert.True(t, out.OccurredAt.Equal(ts))
	assert.Nil(t, out.Metadata)
}

func TestNormalizeRedactsSecrets(t *testing.T) {
	t.Parallel()

	event := auth.ActivityEvent{
		EventType: auth.ActivityEventOTPRequested,
		UserID:    "user-1",
		Metadata: map[string]any{
			"code":  123456,
			"Token": "abc",
			"kept":  "value",
		},
	}

	out := activitymap.Normalize(event)

	assert.Equal(t, "[redacted]", out.Metadata["code"])
	assert.Equal(t, "[redacted]", out.Metadata["Token"])
	assert.Equal(t, "value", out.Metadata["kept"])
	assert.Equal(t, 123456, event.Metadata["code"], "source metadata must not be mutated")
}

type captureLogger struct {
	msgs []string
	args [][]any
}

func (c *captureLogger) Debug(msg string, args ...any) {}
func (c *captureLogger) Warn(msg string, args ...any)  {}
func (c *captureLogger) Error(msg string, args ...any) {}
func (c *captureLogger) Info(msg string, args ...any) {
	c.msgs = append(c.msgs, msg)
	c.args = append(c.args, args)
}

func TestLogSink(t *testing.T) {
	logger := &captureLogger{}
	sink := activitymap.NewLogSink(logger)

	err := sink.Record(context.Background(), auth.ActivityEvent{
		EventType: auth.ActivityEventPasswordResetSuccess,
		UserID:    "user-7",
	})
	require.NoError(t, err)

	require.Len(t, logger.msgs, 1)
	assert.Equal(t, "activity", logger.msgs[0])
	assert.Contains(t, logger.args[0], string(auth.ActivityEventPasswordResetSuccess))
	assert.Contains(t, logger.args[0], "user-7")
}
