package qboclient

import (
	"context"
	"fmt"

	"github.com/fivetwenty-io/qbo-client/internal/auth"
	"github.com/fivetwenty-io/qbo-client/internal/client"
	qbohttp "github.com/fivetwenty-io/qbo-client/internal/http"
	"github.com/fivetwenty-io/qbo-client/pkg/qbo"
)

// EntityClient runs create, read, update, delete, void, query, PDF and
// email operations for one entity type.
type EntityClient = client.EntityClient

// Client is a QuickBooks Online client for one company. The request
// primitives (Create, Read, Update, Delete, Void, Query, QueryAll, Count,
// Report, PDF, SendEmail, Upload, ChangeDataCapture, Batch) are promoted
// from the embedded engine.
type Client struct {
	*client.Client

	tokens   *auth.TokenManager
	config   *qbo.AppConfig
	strategy auth.Strategy
}

// New creates a client from config. Exactly one token storage strategy must
// be configured: AccessToken/RefreshToken, TokenStore, or
// GetTokenFunc/SaveTokenFunc.
func New(ctx context.Context, config *qbo.Config) (*Client, error) {
	err := ctx.Err()
	if err != nil {
		return nil, err
	}

	app, err := config.Clean()
	if err != nil {
		return nil, err
	}

	if app.RealmID == "" {
		return nil, &qbo.ConfigurationError{Field: "realm_id", Reason: qbo.ErrRealmIDRequired.Error()}
	}

	store, strategy, err := auth.NewStore(config)
	if err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = qbo.NopLogger{}
	}

	tokens := auth.NewTokenManager(store, app,
		auth.WithLogger(logger),
		auth.WithExtra(config.Extra),
		auth.WithHTTPClient(config.HTTPClient),
	)

	transport := qbohttp.NewClient(app.Endpoint+app.RealmID, tokens,
		qbohttp.WithLogger(logger),
		qbohttp.WithDebug(app.Debug),
		qbohttp.WithTimeout(app.HTTPTimeout),
		qbohttp.WithRetryConfig(app.RetryMax, app.RetryWaitMin, app.RetryWaitMax),
		qbohttp.WithMinorVersion(app.MinorVersion),
		qbohttp.WithUserAgent(app.UserAgent),
		qbohttp.WithHTTPClient(config.HTTPClient),
		qbohttp.WithInterceptors(buildInterceptors(config, app, logger)),
	)

	engine := client.New(transport,
		client.WithLogger(logger),
		client.WithMaxQueryPages(app.MaxQueryPages),
		client.WithResponseHeaders(app.ResponseHeaders),
	)

	logger.Debug("Client created", map[string]interface{}{
		"realm_id": app.RealmID,
		"endpoint": app.Endpoint,
		"strategy": string(strategy),
	})

	return &Client{
		Client:   engine,
		tokens:   tokens,
		config:   app,
		strategy: strategy,
	}, nil
}

func buildInterceptors(config *qbo.Config, app *qbo.AppConfig, logger qbo.Logger) *qbo.InterceptorChain {
	chain := qbo.NewInterceptorChain()
	chain.AddResponseInterceptor(qbo.FaultLogger(logger))

	if app.RateLimit > 0 {
		chain.AddRequestInterceptor(qbo.RateLimitInterceptor(app.RateLimit, app.RateBurst))
	}

	if config.Metrics != nil {
		chain.AddRequestInterceptor(qbo.MetricsRequestInterceptor(config.Metrics))
		chain.AddResponseInterceptor(qbo.MetricsResponseInterceptor(config.Metrics))
	}

	for _, interceptor := range config.RequestInterceptors {
		chain.AddRequestInterceptor(interceptor)
	}

	for _, interceptor := range config.ResponseInterceptors {
		chain.AddResponseInterceptor(interceptor)
	}

	return chain
}

// Config returns the validated configuration.
func (c *Client) Config() *qbo.AppConfig {
	return c.config
}

// RealmID returns the company the client talks to.
func (c *Client) RealmID() string {
	return c.config.RealmID
}

// Strategy returns the token storage strategy in use.
func (c *Client) Strategy() string {
	return string(c.strategy)
}

// Token returns the current token, refreshing it first when auto refresh
// is on and it is about to expire.
func (c *Client) Token(ctx context.Context) (*qbo.StoreTokenData, error) {
	return c.tokens.GetTokenWithRefresh(ctx)
}

// RefreshToken refreshes the stored token now.
func (c *Client) RefreshToken(ctx context.Context) (*qbo.StoreTokenData, error) {
	token, err := c.tokens.Refresh(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("refreshing token for realm %s: %w", c.config.RealmID, err)
	}

	return token, nil
}

// RevokeToken revokes the access token, or the refresh token and with it
// the whole grant.
func (c *Client) RevokeToken(ctx context.Context, useRefreshToken bool) error {
	return c.tokens.Revoke(ctx, useRefreshToken)
}

// ValidateIDToken verifies an OpenID id token. An empty rawToken validates
// the stored one.
func (c *Client) ValidateIDToken(ctx context.Context, rawToken string) (bool, error) {
	return c.tokens.ValidateIDToken(ctx, rawToken)
}
