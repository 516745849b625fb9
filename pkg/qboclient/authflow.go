package qboclient

import (
	"context"
	"io"

	"github.com/fivetwenty-io/qbo-client/internal/auth"
	"github.com/fivetwenty-io/qbo-client/pkg/qbo"
)

// AuthFlow runs the OAuth2 authorization-code flow. It needs AppKey,
// AppSecret, RedirectURL and Scope, plus a token storage strategy to
// persist the exchanged token. RealmID is not required; the realm comes
// back with the authorization code.
type AuthFlow struct {
	tokens *auth.TokenManager
	config *qbo.AppConfig
	random io.Reader
}

// AuthFlowOption configures an AuthFlow.
type AuthFlowOption func(*AuthFlow)

// WithRandom sets the source CSRF state values are drawn from.
func WithRandom(r io.Reader) AuthFlowOption {
	return func(f *AuthFlow) {
		f.random = r
	}
}

// NewAuthFlow creates an authorization-code flow for config.
func NewAuthFlow(config *qbo.Config, opts ...AuthFlowOption) (*AuthFlow, error) {
	app, err := config.Clean()
	if err != nil {
		return nil, err
	}

	err = app.RequireAuthFlow()
	if err != nil {
		return nil, err
	}

	store, _, err := auth.NewStore(config)
	if err != nil {
		return nil, err
	}

	flow := &AuthFlow{
		tokens: auth.NewTokenManager(store, app,
			auth.WithLogger(config.Logger),
			auth.WithExtra(config.Extra),
			auth.WithHTTPClient(config.HTTPClient),
		),
		config: app,
	}

	for _, opt := range opts {
		opt(flow)
	}

	return flow, nil
}

// AuthorizeURL returns the consent page URL and the state it carries. An
// empty state is generated; callers must check it on the redirect.
func (f *AuthFlow) AuthorizeURL(state string) (string, string, error) {
	return auth.AuthorizeURL(f.config, state, f.random)
}

// Exchange trades the code from the redirect for a token and saves it
// under realmID.
func (f *AuthFlow) Exchange(ctx context.Context, code, realmID string) (*qbo.StoreTokenData, error) {
	if realmID == "" && f.config.RealmID == "" {
		return nil, &qbo.ValidationError{Field: "realmId", Reason: qbo.ErrRealmIDRequired.Error()}
	}

	return f.tokens.CreateToken(ctx, code, realmID)
}

// ValidateIDToken verifies the id token returned by Exchange when the
// openid scope was requested.
func (f *AuthFlow) ValidateIDToken(ctx context.Context, rawToken string) (bool, error) {
	if rawToken == "" {
		return false, &qbo.TokenError{Err: qbo.ErrNoIDToken}
	}

	return f.tokens.ValidateIDToken(ctx, rawToken)
}
