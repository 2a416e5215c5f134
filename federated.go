package auth

import (
	"context"
	"strings"

	"github.com/goliatone/hashid/pkg/hashid"
)

// FederatedProviderGoogle prefixes federated ids derived from Google subjects
const FederatedProviderGoogle = "google"

// FederatedAuthenticator exchanges a verified third party assertion for
// local tokens, provisioning the account on first use.
type FederatedAuthenticator struct {
	verifier  AssertionVerifier
	directory UserDirectory
	auther    *Auther
	provider  string
	logger    Logger
	activity  activityEmitter
}

func NewFederatedAuthenticator(verifier AssertionVerifier, directory UserDirectory, auther *Auther) *FederatedAuthenticator {
	logger := defaultLogger(nil)
	return &FederatedAuthenticator{
		verifier:  verifier,
		directory: directory,
		auther:    auther,
		provider:  FederatedProviderGoogle,
		logger:    logger,
		activity:  activityEmitter{sink: noopActivitySink{}, logger: logger},
	}
}

func (f *FederatedAuthenticator) WithLogger(logger Logger) *FederatedAuthenticator {
	f.logger = defaultLogger(logger)
	f.activity.logger = f.logger
	return f
}

func (f *FederatedAuthenticator) WithActivitySink(sink ActivitySink) *FederatedAuthenticator {
	f.activity.sink = normalizeActivitySink(sink)
	return f
}

// Authenticate verifies assertion, resolves or provisions the local user and
// issues tokens. Provider side failures collapse into ErrUnauthorized,
// directory outages surface as ErrServiceUnavailable.
func (f *FederatedAuthenticator) Authenticate(ctx context.Context, assertion string) (*SignInResult, error) {
	profile, err := f.verifier.VerifyAssertion(ctx, assertion)
	if err != nil {
		f.logger.Warn("federated assertion rejected", "provider", f.provider, "error", err)
		return nil, unauthorized(err)
	}

	if profile == nil || profile.Subject == "" || profile.Email == "" {
		return nil, ErrUnauthorized
	}

	lookup, err := f.directory.FindByFederatedID(ctx, profile.Subject)
	if err != nil {
		f.logger.Error("federated lookup failed", "error", err)
		return nil, asUnavailable(err, "federated.lookup")
	}

	user, found := lookup.User()
	switch {
	case found:
		f.activity.emit(ctx, ActivityEventFederatedLogin, user.ID.String(), map[string]any{
			"provider": f.provider,
		})
	default:
		if user, err = f.provision(ctx, profile); err != nil {
			return nil, err
		}
	}

	if !user.Active {
		return nil, ErrUnauthorized
	}

	result, err := f.auther.IssueSession(user)
	if err != nil {
		return nil, unauthorized(err)
	}
	return result, nil
}

func (f *FederatedAuthenticator) provision(ctx context.Context, profile *FederatedProfile) (*User, error) {
	id, err := hashid.NewUUID(f.provider + ":" + profile.Subject)
	if err != nil {
		return nil, unauthorized(err)
	}

	subject := profile.Subject
	user, err := f.directory.Create(ctx, &User{
		ID:       id,
		Name:     displayName(profile),
		Email:    normalizeEmail(profile.Email),
		Role:     RoleUser,
		GoogleID: &subject,
		Active:   true,
	})
	if err == nil {
		f.activity.emit(ctx, ActivityEventFederatedProvisioned, user.ID.String(), map[string]any{
			"provider": f.provider,
		})
		return user, nil
	}

	if !HasTextCode(err, TextCodeEmailTaken) {
		f.logger.Error("federated provisioning failed", "error", err)
		return nil, asUnavailable(err, "federated.provision")
	}

	// a concurrent sign in may have created the row first
	lookup, lerr := f.directory.FindByFederatedID(ctx, profile.Subject)
	if lerr != nil {
		return nil, asUnavailable(lerr, "federated.lookup")
	}
	if existing, ok := lookup.User(); ok {
		return existing, nil
	}

	f.logger.Warn("federated email already bound to a local account", "provider", f.provider)
	return nil, unauthorized(err)
}

func displayName(profile *FederatedProfile) string {
	name := strings.TrimSpace(profile.GivenName + " " + profile.FamilyName)
	if name == "" {
		name = profile.Email
	}
	return name
}
