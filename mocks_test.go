package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/storefront/go-auth"
)

var testEpoch = time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

func testConfig() auth.EnvConfig {
	return auth.EnvConfig{
		AppEnv:            "test",
		APIVersion:        "v1",
		UserSigningKey:    "user-secret-0123456789abcdef",
		AdminSigningKey:   "admin-secret-0123456789abcdef",
		Issuer:            "storefront",
		Audience:          "storefront-api",
		AccessTokenTTL:    900,
		RefreshTokenTTL:   604800,
		ResetTicketTTL:    600,
		OTPTTL:            300,
		AccessCookieName:  "access_token",
		RefreshCookieName: "refresh_token",
		CookiePath:        "/",
		CookieSecure:      true,
		ContextKey:        "user",
	}
}

// testClock is a manually advanced clock
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: testEpoch}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func fastHasher() auth.BcryptHasher {
	return auth.BcryptHasher{Cost: bcrypt.MinCost}
}

// sequenceCodes returns the given codes in order
func sequenceCodes(codes ...int) func() (int, error) {
	var mu sync.Mutex
	i := 0
	return func() (int, error) {
		mu.Lock()
		defer mu.Unlock()
		code := codes[i%len(codes)]
		i++
		return code, nil
	}
}

// MockNotifier implements auth.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendOTP(ctx context.Context, user *auth.User, code int) error {
	args := m.Called(ctx, user, code)
	return args.Error(0)
}

// codeInbox records delivered codes per email
type codeInbox struct {
	mu    sync.Mutex
	codes map[string][]int
}

func newCodeInbox() *codeInbox {
	return &codeInbox{codes: map[string][]int{}}
}

func (i *codeInbox) Notifier() auth.Notifier {
	return auth.NotifierFunc(func(_ context.Context, user *auth.User, code int) error {
		i.mu.Lock()
		defer i.mu.Unlock()
		i.codes[user.Email] = append(i.codes[user.Email], code)
		return nil
	})
}

func (i *codeInbox) Last(t *testing.T, email string) int {
	t.Helper()
	i.mu.Lock()
	defer i.mu.Unlock()
	codes := i.codes[email]
	require.NotEmpty(t, codes, "no code delivered to %s", email)
	return codes[len(codes)-1]
}

func (i *codeInbox) Count(email string) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.codes[email])
}

// recordingSink implements auth.ActivitySink
type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Types() []auth.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

// MockDirectory implements auth.UserDirectory
type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) FindByID(ctx context.Context, id string) (*auth.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockDirectory) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockDirectory) FindByFederatedID(ctx context.Context, federatedID string) (auth.UserLookup, error) {
	args := m.Called(ctx, federatedID)
	return args.Get(0).(auth.UserLookup), args.Error(1)
}

func (m *MockDirectory) Create(ctx context.Context, user *auth.User) (*auth.User, error) {
	args := m.Called(ctx, user)
	created, _ := args.Get(0).(*auth.User)
	return created, args.Error(1)
}

func (m *MockDirectory) Update(ctx context.Context, id uuid.UUID, patch auth.UserPatch) (*auth.User, error) {
	args := m.Called(ctx, id, patch)
	updated, _ := args.Get(0).(*auth.User)
	return updated, args.Error(1)
}

func (m *MockDirectory) UpdateIf(ctx context.Context, id uuid.UUID, cond auth.UserCondition, patch auth.UserPatch) (bool, error) {
	args := m.Called(ctx, id, cond, patch)
	return args.Bool(0), args.Error(1)
}

// MockLogger implements auth.Logger
type MockLogger struct{}

func (MockLogger) Debug(string, ...any) {}
func (MockLogger) Info(string, ...any)  {}
func (MockLogger) Warn(string, ...any)  {}
func (MockLogger) Error(string, ...any) {}

// fixture wires the services over an in-memory directory
type fixture struct {
	cfg       auth.EnvConfig
	clock     *testClock
	directory *auth.MemoryDirectory
	tokens    *auth.TokenService
	auther    *auth.Auther
	recovery  *auth.RecoveryService
	inbox     *codeInbox
	sink      *recordingSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := testConfig()
	clock := newTestClock()
	directory := auth.NewMemoryDirectory()
	sink := &recordingSink{}
	inbox := newCodeInbox()

	tokens := auth.NewTokenService(cfg).WithClock(clock.Now).WithLogger(MockLogger{})
	auther := auth.NewAuthenticator(directory, tokens).
		WithLogger(MockLogger{}).
		WithPasswordHasher(fastHasher()).
		WithActivitySink(sink)
	recovery := auth.NewRecoveryService(directory, tokens, inbox.Notifier(), time.Duration(cfg.OTPTTL)*time.Second).
		WithLogger(MockLogger{}).
		WithClock(clock.Now).
		WithPasswordHasher(fastHasher()).
		WithActivitySink(sink)

	return &fixture{
		cfg:       cfg,
		clock:     clock,
		directory: directory,
		tokens:    tokens,
		auther:    auther,
		recovery:  recovery,
		inbox:     inbox,
		sink:      sink,
	}
}

func (f *fixture) signUp(t *testing.T, email, password string) *auth.User {
	t.Helper()
	user, err := f.auther.SignUp(context.Background(), auth.SignUpMessage{
		Name:     "Test User",
		Email:    email,
		Password: password,
	})
	require.NoError(t, err)
	return user
}

func assertTextCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, auth.HasTextCode(err, code), "expected text code %s, got %v", code, err)
}
