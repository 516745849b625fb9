package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fivetwenty-io/qbo-client/internal/constants"
	"github.com/fivetwenty-io/qbo-client/pkg/qbo"
	"golang.org/x/sync/singleflight"
)

// deleter is implemented by stores that can forget a token after revoke.
type deleter interface {
	DeleteToken(ctx context.Context, ref qbo.RealmRef) error
}

// TokenManager drives one realm's token through its lifecycle: reading it
// from the configured store, refreshing it before it expires, exchanging
// authorization codes, revoking, and validating id tokens.
type TokenManager struct {
	store      qbo.TokenStore
	config     *qbo.AppConfig
	extra      any
	httpClient *http.Client
	logger     qbo.Logger
	now        func() time.Time
	refreshes  singleflight.Group
}

// Option customizes a TokenManager.
type Option func(*TokenManager)

// WithHTTPClient sets the client used for the token, revoke and key-set
// endpoints.
func WithHTTPClient(client *http.Client) Option {
	return func(m *TokenManager) {
		if client != nil {
			m.httpClient = client
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger qbo.Logger) Option {
	return func(m *TokenManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(m *TokenManager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithExtra sets the opaque value passed to the store on every call.
func WithExtra(extra any) Option {
	return func(m *TokenManager) {
		m.extra = extra
	}
}

// NewTokenManager creates a manager over store.
func NewTokenManager(store qbo.TokenStore, config *qbo.AppConfig, opts ...Option) *TokenManager {
	m := &TokenManager{
		store:      store,
		config:     config,
		httpClient: &http.Client{Timeout: constants.ShortHTTPTimeout},
		logger:     qbo.NopLogger{},
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Config returns the configuration the manager was built with.
func (m *TokenManager) Config() *qbo.AppConfig {
	return m.config
}

// IsAccessTokenExpired reports whether the access token must be refreshed:
// a token with no recorded expiry is expired, otherwise it expires buffer
// before its timestamp.
func IsAccessTokenExpired(token *qbo.StoreTokenData, buffer time.Duration, now time.Time) bool {
	if token == nil || token.AccessExpireTimestamp.IsZero() {
		return true
	}

	return !now.Before(token.AccessExpireTimestamp.Add(-buffer))
}

// IsRefreshTokenExpired reports whether the refresh token is past its
// recorded expiry. A token with no recorded refresh expiry is assumed usable.
func IsRefreshTokenExpired(token *qbo.StoreTokenData, now time.Time) bool {
	if token == nil || token.RefreshExpireTimestamp.IsZero() {
		return false
	}

	return !now.Before(token.RefreshExpireTimestamp)
}

func (m *TokenManager) ref(realmID string) qbo.RealmRef {
	if realmID == "" {
		realmID = m.config.RealmID
	}

	return qbo.RealmRef{RealmID: realmID, Config: m.config, Extra: m.extra}
}

// GetToken reads the stored token without refreshing it. It returns nil
// when nothing is stored.
func (m *TokenManager) GetToken(ctx context.Context) (*qbo.StoreTokenData, error) {
	token, err := m.store.GetToken(ctx, m.ref(""))
	if err != nil {
		return nil, fmt.Errorf("reading token: %w", err)
	}

	return token, nil
}

// GetTokenWithRefresh returns the stored token, refreshing it first when auto
// refresh is on and the access token is within the refresh buffer of its
// expiry.
func (m *TokenManager) GetTokenWithRefresh(ctx context.Context) (*qbo.StoreTokenData, error) {
	token, err := m.GetToken(ctx)
	if err != nil {
		return nil, err
	}

	if token == nil {
		return nil, &qbo.TokenError{Reason: "realm " + m.config.RealmID, Err: qbo.ErrNoTokenStored}
	}

	if !m.config.AutoRefresh || token.RefreshToken == "" {
		return token, nil
	}

	if !IsAccessTokenExpired(token, m.config.RefreshBuffer(), m.now()) {
		return token, nil
	}

	return m.Refresh(ctx, token.RefreshToken)
}

// AccessToken returns a bearer token for the next API call.
func (m *TokenManager) AccessToken(ctx context.Context) (string, error) {
	token, err := m.GetTokenWithRefresh(ctx)
	if err != nil {
		return "", err
	}

	if token.AccessToken == "" {
		return "", &qbo.TokenError{Err: qbo.ErrNoAccessToken}
	}

	return token.AccessToken, nil
}

// Refresh exchanges refreshToken for a new token and persists it. An empty
// refreshToken means the stored one. Concurrent refreshes of one realm share
// a single token endpoint call; that call outlives any one caller's context,
// and each caller stops waiting when its own context is done.
func (m *TokenManager) Refresh(ctx context.Context, refreshToken string) (*qbo.StoreTokenData, error) {
	ref := m.ref("")

	results := m.refreshes.DoChan(ref.RealmID, func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.ShortHTTPTimeout)
		defer cancel()

		return m.refresh(shared, ref, refreshToken)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for token refresh: %w", ctx.Err())
	case result := <-results:
		if result.Err != nil {
			return nil, result.Err
		}

		token, _ := result.Val.(*qbo.StoreTokenData)

		return token.Clone(), nil
	}
}

func (m *TokenManager) refresh(ctx context.Context, ref qbo.RealmRef, refreshToken string) (*qbo.StoreTokenData, error) {
	current, err := m.store.GetToken(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("reading token: %w", err)
	}

	if refreshToken == "" && current != nil {
		refreshToken = current.RefreshToken
	}

	// Another caller already rotated the token.
	if current != nil && current.RefreshToken != refreshToken &&
		!IsAccessTokenExpired(current, m.config.RefreshBuffer(), m.now()) {
		return current, nil
	}

	if refreshToken == "" {
		return nil, &qbo.TokenError{Err: qbo.ErrNoRefreshToken}
	}

	if current != nil && current.RefreshToken == refreshToken && IsRefreshTokenExpired(current, m.now()) {
		return nil, &qbo.TokenError{
			Reason: "expired at " + current.RefreshExpireTimestamp.Format(time.RFC3339),
			Err:    qbo.ErrRefreshTokenExpired,
		}
	}

	form := url.Values{}
	form.Set("grant_type", constants.GrantTypeRefreshToken)
	form.Set("refresh_token", refreshToken)

	data, err := m.requestToken(ctx, form)
	if err != nil {
		m.logger.Error("Token refresh failed", map[string]interface{}{
			"realm_id": ref.RealmID,
			"error":    err,
		})

		return nil, err
	}

	saved, err := m.save(ctx, ref, data)
	if err != nil {
		return nil, err
	}

	m.logger.Info("Token refreshed", map[string]interface{}{
		"realm_id":   ref.RealmID,
		"expires_at": saved.AccessExpireTimestamp,
	})

	return saved, nil
}

// CreateToken exchanges an authorization code for a token and persists it
// under realmID, or the configured realm when realmID is empty.
func (m *TokenManager) CreateToken(ctx context.Context, authCode, realmID string) (*qbo.StoreTokenData, error) {
	if authCode == "" {
		return nil, &qbo.ValidationError{Field: "code", Reason: "authorization code is required"}
	}

	form := url.Values{}
	form.Set("grant_type", constants.GrantTypeAuthorizationCode)
	form.Set("code", authCode)
	form.Set("redirect_uri", m.config.RedirectURL)

	data, err := m.requestToken(ctx, form)
	if err != nil {
		return nil, err
	}

	ref := m.ref(realmID)

	saved, err := m.save(ctx, ref, data)
	if err != nil {
		return nil, err
	}

	m.logger.Info("Token created", map[string]interface{}{"realm_id": ref.RealmID})

	return saved, nil
}

// Revoke revokes the stored access token, or the refresh token when
// useRefreshToken is set. Revoking the refresh token invalidates the whole
// grant, so the stored token is dropped when the store supports deletion.
func (m *TokenManager) Revoke(ctx context.Context, useRefreshToken bool) error {
	ref := m.ref("")

	token, err := m.GetToken(ctx)
	if err != nil {
		return err
	}

	var value string

	if token != nil {
		value = token.AccessToken
		if useRefreshToken {
			value = token.RefreshToken
		}
	}

	if value == "" {
		if useRefreshToken {
			return &qbo.TokenError{Reason: "revoke", Err: qbo.ErrNoRefreshToken}
		}

		return &qbo.TokenError{Reason: "revoke", Err: qbo.ErrNoAccessToken}
	}

	form := url.Values{}
	form.Set("token", value)

	_, err = m.post(ctx, m.config.RevokeURL, form)
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}

	m.logger.Info("Token revoked", map[string]interface{}{
		"realm_id":      ref.RealmID,
		"refresh_token": useRefreshToken,
	})

	if d, ok := m.store.(deleter); ok && useRefreshToken {
		err = d.DeleteToken(ctx, ref)
		if err != nil {
			return fmt.Errorf("deleting revoked token: %w", err)
		}
	}

	return nil
}

func (m *TokenManager) save(ctx context.Context, ref qbo.RealmRef, data *qbo.TokenData) (*qbo.StoreTokenData, error) {
	token := qbo.NewStoreTokenData(ref.RealmID, *data, m.now())

	saved, err := m.store.SaveToken(ctx, ref, token)
	if err != nil {
		return nil, fmt.Errorf("saving token: %w", err)
	}

	if saved == nil {
		saved = token
	}

	return saved, nil
}

func (m *TokenManager) requestToken(ctx context.Context, form url.Values) (*qbo.TokenData, error) {
	body, err := m.post(ctx, m.config.TokenURL, form)
	if err != nil {
		return nil, fmt.Errorf("requesting token: %w", err)
	}

	var data qbo.TokenData

	err = json.Unmarshal(body, &data)
	if err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}

	if data.AccessToken == "" {
		return nil, fmt.Errorf("token response: %w", qbo.ErrNoAccessToken)
	}

	return &data, nil
}

// post sends a form with the app's basic credentials. Any non-2xx response is
// returned as a *qbo.TransportError.
func (m *TokenManager) post(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.SetBasicAuth(m.config.AppKey, m.config.AppSecret)
	req.Header.Set(constants.HeaderContentType, constants.ContentTypeForm)
	req.Header.Set(constants.HeaderAccept, constants.ContentTypeJSON)
	req.Header.Set(constants.HeaderUserAgent, m.config.UserAgent)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &qbo.TransportError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Header:     resp.Header,
			Body:       body,
		}
	}

	return body, nil
}
