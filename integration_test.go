package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/storefront/go-auth"
	"github.com/storefront/go-auth/activitymap"
)

// capturingLogger records Info calls made by the activity log sink
type capturingLogger struct {
	MockLogger
	messages []string
	args     [][]any
}

func (l *capturingLogger) Info(msg string, args ...any) {
	l.messages = append(l.messages, msg)
	l.args = append(l.args, args)
}

func TestSQLDirectoryLifecycleIntegration(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	cfg := testConfig()
	logger := &capturingLogger{}
	sink := activitymap.NewLogSink(logger)

	users := auth.NewUsersRepository(newTestDB(t))
	tokens := auth.NewTokenService(cfg).WithClock(clock.Now)
	auther := auth.NewAuthenticator(users, tokens).
		WithLogger(MockLogger{}).
		WithPasswordHasher(fastHasher()).
		WithActivitySink(sink)

	inbox := newCodeInbox()
	recovery := auth.NewRecoveryService(users, tokens, inbox.Notifier(), 5*time.Minute).
		WithLogger(MockLogger{}).
		WithClock(clock.Now).
		WithPasswordHasher(fastHasher()).
		WithActivitySink(sink)

	_, err := auther.SignUp(ctx, auth.SignUpMessage{Name: "Buyer", Email: "buyer@example.com", Password: "password1"})
	require.NoError(t, err)

	session, err := auther.SignIn(ctx, "buyer@example.com", "password1")
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = auther.Refresh(ctx, session.Refresh.Token, auth.RoleUser)
	require.NoError(t, err)

	require.NoError(t, recovery.RequestCode(ctx, "buyer@example.com"))
	code := inbox.Last(t, "buyer@example.com")

	ticket, err := recovery.VerifyCode(ctx, "buyer@example.com", code)
	require.NoError(t, err)

	_, err = recovery.VerifyCode(ctx, "buyer@example.com", code)
	assertTextCode(t, err, auth.TextCodeInvalidOtpAttempt)

	require.NoError(t, recovery.ResetPassword(ctx, "buyer@example.com", ticket.Token, "password2"))
	assertTextCode(t, recovery.ResetPassword(ctx, "buyer@example.com", ticket.Token, "password3"), auth.TextCodeInvalidResetTicket)

	_, err = auther.SignIn(ctx, "buyer@example.com", "password1")
	assertTextCode(t, err, auth.TextCodeInvalidCreds)
	_, err = auther.SignIn(ctx, "buyer@example.com", "password2")
	require.NoError(t, err)

	verifier := new(MockVerifier)
	verifier.On("VerifyAssertion", mock.Anything, "id-token").Return(&auth.FederatedProfile{
		Subject:    "g-42",
		Email:      "fed@example.com",
		GivenName:  "Fed",
		FamilyName: "User",
	}, nil)
	federated := auth.NewFederatedAuthenticator(verifier, users, auther).
		WithLogger(MockLogger{}).
		WithActivitySink(sink)

	first, err := federated.Authenticate(ctx, "id-token")
	require.NoError(t, err)
	second, err := federated.Authenticate(ctx, "id-token")
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID)

	require.NotEmpty(t, logger.messages)

	verbs := []string{}
	for _, args := range logger.args {
		for i := 0; i+1 < len(args); i += 2 {
			if key, _ := args[i].(string); key == "verb" {
				verbs = append(verbs, args[i+1].(string))
			}
		}
	}
	assert.Subset(t, verbs, []string{
		string(auth.ActivityEventSignUp),
		string(auth.ActivityEventLoginSuccess),
		string(auth.ActivityEventTokenRefreshed),
		string(auth.ActivityEventOTPRequested),
		string(auth.ActivityEventOTPVerified),
		string(auth.ActivityEventPasswordResetSuccess),
		string(auth.ActivityEventFederatedProvisioned),
		string(auth.ActivityEventFederatedLogin),
	})
}
