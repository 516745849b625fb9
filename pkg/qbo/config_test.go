package qbo_test

import (
	"testing"
	"time"

	"github.com/fivetwenty-io/qbo-client/pkg/qbo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_CleanDefaults(t *testing.T) {
	t.Parallel()

	app, err := (&qbo.Config{
		RealmID:   " 123145 ",
		AppKey:    "key",
		AppSecret: "secret",
		Scope:     []string{"com.intuit.quickbooks.accounting"},
	}).Clean()
	require.NoError(t, err)

	assert.Equal(t, "123145", app.RealmID)
	assert.True(t, app.AutoRefresh)
	assert.Equal(t, 60, app.AutoRefreshBufferSeconds)
	assert.Equal(t, time.Minute, app.RefreshBuffer())
	assert.Equal(t, "https://sandbox-quickbooks.api.intuit.com/v3/company/", app.Endpoint)
	assert.Equal(t, "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer", app.TokenURL)
	assert.Equal(t, "https://developer.api.intuit.com/v2/oauth2/tokens/revoke", app.RevokeURL)
	assert.Equal(t, "https://oauth.platform.intuit.com/op/v1", app.Issuer)
	assert.Equal(t, 100, app.MaxQueryPages)
	assert.Equal(t, 0, app.RetryMax)
	assert.NotEmpty(t, app.UserAgent)
}

func TestConfig_CleanEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		config   qbo.Config
		expected string
	}{
		{
			name:     "production",
			config:   qbo.Config{UseProduction: true},
			expected: "https://quickbooks.api.intuit.com/v3/company/",
		},
		{
			name:     "sandbox",
			config:   qbo.Config{},
			expected: "https://sandbox-quickbooks.api.intuit.com/v3/company/",
		},
		{
			name:     "override gains trailing slash",
			config:   qbo.Config{Endpoint: "http://127.0.0.1:8080/v3/company"},
			expected: "http://127.0.0.1:8080/v3/company/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := tt.config
			cfg.AutoRefresh = qbo.Bool(false)

			app, err := cfg.Clean()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, app.Endpoint)
		})
	}
}

func TestConfig_CleanErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		config *qbo.Config
		field  string
	}{
		{name: "nil config", config: nil, field: ""},
		{name: "auto refresh without key", config: &qbo.Config{AppSecret: "secret"}, field: "app_key"},
		{name: "auto refresh without secret", config: &qbo.Config{AppKey: "key"}, field: "app_secret"},
		{name: "bad endpoint", config: &qbo.Config{Endpoint: "not a url", AutoRefresh: qbo.Bool(false)}, field: "Endpoint"},
		{name: "bad minor version", config: &qbo.Config{MinorVersion: "seventy", AutoRefresh: qbo.Bool(false)}, field: "MinorVersion"},
		{name: "negative buffer", config: &qbo.Config{AutoRefreshBufferSeconds: qbo.Int(-1), AutoRefresh: qbo.Bool(false)}, field: "AutoRefreshBufferSeconds"},
		{name: "negative retries", config: &qbo.Config{RetryMax: -1, AutoRefresh: qbo.Bool(false)}, field: "RetryMax"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := tt.config.Clean()
			require.Error(t, err)
			assert.ErrorIs(t, err, qbo.ErrConfiguration)

			var configErr *qbo.ConfigurationError
			require.ErrorAs(t, err, &configErr)
			assert.Equal(t, tt.field, configErr.Field)
		})
	}
}

func TestConfig_CleanWithoutAutoRefresh(t *testing.T) {
	t.Parallel()

	app, err := (&qbo.Config{AutoRefresh: qbo.Bool(false), AutoRefreshBufferSeconds: qbo.Int(0)}).Clean()
	require.NoError(t, err)
	assert.False(t, app.AutoRefresh)
	assert.Equal(t, 0, app.AutoRefreshBufferSeconds)
}

func TestConfig_CleanCopiesScope(t *testing.T) {
	t.Parallel()

	cfg := &qbo.Config{AutoRefresh: qbo.Bool(false), Scope: []string{"openid"}}

	app, err := cfg.Clean()
	require.NoError(t, err)

	cfg.Scope[0] = "changed"
	assert.Equal(t, []string{"openid"}, app.Scope)
}

func TestAppConfig_RequireAuthFlow(t *testing.T) {
	t.Parallel()

	complete := qbo.AppConfig{AppKey: "k", AppSecret: "s", RedirectURL: "https://example.com/cb", Scope: []string{"openid"}}
	require.NoError(t, complete.RequireAuthFlow())

	tests := []struct {
		name   string
		mutate func(*qbo.AppConfig)
		field  string
	}{
		{name: "key", mutate: func(a *qbo.AppConfig) { a.AppKey = "" }, field: "app_key"},
		{name: "secret", mutate: func(a *qbo.AppConfig) { a.AppSecret = "" }, field: "app_secret"},
		{name: "redirect", mutate: func(a *qbo.AppConfig) { a.RedirectURL = "" }, field: "redirect_url"},
		{name: "scope", mutate: func(a *qbo.AppConfig) { a.Scope = nil }, field: "scope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app := complete
			app.Scope = []string{"openid"}
			tt.mutate(&app)

			err := app.RequireAuthFlow()

			var configErr *qbo.ConfigurationError
			require.ErrorAs(t, err, &configErr)
			assert.Equal(t, tt.field, configErr.Field)
		})
	}
}
