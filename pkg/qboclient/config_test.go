package qboclient_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fivetwenty-io/qbo-client/internal/constants"
	"github.com/fivetwenty-io/qbo-client/pkg/qbo"
	"github.com/fivetwenty-io/qbo-client/pkg/qboclient"
	"github.com/fivetwenty-io/qbo-client/pkg/tokenstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `realm_id: "123145"
app_key: file-key
app_secret: file-secret
redirect_url: https://app.example.com/callback
scope:
  - com.intuit.quickbooks.accounting
minor_version: "75"
auto_refresh_buffer_seconds: 120
http_timeout: 15s
max_query_pages: 10
response_headers: true
token_store:
  type: redis
  redis:
    addr: localhost:6379
    prefix: "acme:"
    ttl: 48h
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), constants.StoreFilePerm))

	return path
}

func TestLoadConfig_File(t *testing.T) {
	path := writeFile(t, "qbo.yaml", testConfigYAML)

	config, store, err := qboclient.LoadConfig(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "123145", config.RealmID)
	assert.Equal(t, "file-key", config.AppKey)
	assert.Equal(t, []string{"com.intuit.quickbooks.accounting"}, config.Scope)
	assert.Equal(t, "75", config.MinorVersion)
	assert.Equal(t, 15*time.Second, config.HTTPTimeout)
	assert.Equal(t, 10, config.MaxQueryPages)
	assert.True(t, config.ResponseHeaders)
	require.NotNil(t, config.AutoRefreshBufferSeconds)
	assert.Equal(t, 120, *config.AutoRefreshBufferSeconds)
	assert.Nil(t, config.AutoRefresh)

	assert.Equal(t, tokenstore.StoreTypeRedis, store.Type)
	require.NotNil(t, store.Redis)
	assert.Equal(t, "localhost:6379", store.Redis.Addr)
	assert.Equal(t, "acme:", store.Redis.Prefix)
	assert.Equal(t, 48*time.Hour, store.Redis.TTL)

	app, err := config.Clean()
	require.NoError(t, err)
	assert.Equal(t, 120*time.Second, app.RefreshBuffer())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeFile(t, "qbo.yaml", testConfigYAML)

	t.Setenv("QBO_APP_SECRET", "env-secret")
	t.Setenv("QBO_AUTO_REFRESH", "false")
	t.Setenv("QBO_TOKEN_STORE_TYPE", "bolt")
	t.Setenv("QBO_TOKEN_STORE_BOLT_PATH", "/var/lib/qbo/tokens.db")

	config, store, err := qboclient.LoadConfig(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "env-secret", config.AppSecret)
	require.NotNil(t, config.AutoRefresh)
	assert.False(t, *config.AutoRefresh)
	assert.Equal(t, tokenstore.StoreTypeBolt, store.Type)
	require.NotNil(t, store.Bolt)
	assert.Equal(t, "/var/lib/qbo/tokens.db", store.Bolt.Path)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	envFile := writeFile(t, ".env", "QBO_REALM_ID=999\nQBO_ACCESS_TOKEN=from-dotenv\n")

	t.Cleanup(func() {
		_ = os.Unsetenv("QBO_REALM_ID")
		_ = os.Unsetenv("QBO_ACCESS_TOKEN")
	})

	config, store, err := qboclient.LoadConfig("", envFile)
	require.NoError(t, err)

	assert.Equal(t, "999", config.RealmID)
	assert.Equal(t, "from-dotenv", config.AccessToken)
	assert.Equal(t, tokenstore.StoreTypeMemory, store.Type)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, _, err := qboclient.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), filepath.Join(t.TempDir(), "x.env"))
	require.ErrorIs(t, err, qbo.ErrConfiguration)

	path := writeFile(t, "bad.yaml", "realm_id: [unclosed\n")

	_, _, err = qboclient.LoadConfig(path, filepath.Join(t.TempDir(), "x.env"))
	require.ErrorIs(t, err, qbo.ErrConfiguration)
}
