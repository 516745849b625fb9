//go:build integration

package integration

import (
	"context"
	"os"
	"testing"

	"github.com/fivetwenty-io/qbo-client/pkg/qbo"
	"github.com/fivetwenty-io/qbo-client/pkg/qboclient"
	"github.com/fivetwenty-io/qbo-client/pkg/tokenstore"
	"github.com/stretchr/testify/require"
)

// TestConfig holds configuration for sandbox integration tests.
type TestConfig struct {
	Client  *qbo.Config
	Store   *tokenstore.Config
	Verbose bool
}

// LoadTestConfig reads QBO_CONFIG (optional), .env and QBO_* variables.
func LoadTestConfig(t *testing.T) *TestConfig {
	t.Helper()

	config, store, err := qboclient.LoadConfig(os.Getenv("QBO_CONFIG"))
	require.NoError(t, err)

	return &TestConfig{
		Client:  config,
		Store:   store,
		Verbose: os.Getenv("QBO_VERBOSE") == "true",
	}
}

// SkipIfMissingConfig skips the test unless a sandbox realm and credentials
// are configured.
func (c *TestConfig) SkipIfMissingConfig(t *testing.T) {
	t.Helper()

	if c.Client.RealmID == "" {
		t.Skip("QBO_REALM_ID not set")
	}

	if c.Client.AccessToken == "" && c.Client.RefreshToken == "" && c.Store.Type == tokenstore.StoreTypeMemory {
		t.Skip("no sandbox token: set QBO_REFRESH_TOKEN or a persistent token store")
	}

	if c.Client.UseProduction {
		t.Skip("integration tests only run against sandbox companies")
	}
}

// NewClient builds a client for the sandbox company.
func (c *TestConfig) NewClient(t *testing.T) *qboclient.Client {
	t.Helper()

	ctx := context.Background()

	config := *c.Client
	if config.AccessToken == "" && config.RefreshToken == "" {
		store, err := tokenstore.NewFromConfig(ctx, c.Store)
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })

		config.TokenStore = store
	}

	if c.Verbose {
		config.Debug = true
		config.Logger = qbo.NewConsoleLogger(os.Stderr, true)
	}

	client, err := qboclient.New(ctx, &config)
	require.NoError(t, err)

	return client
}
