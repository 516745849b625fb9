package qboclient

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/fivetwenty-io/qbo-client/pkg/qbo"
	"github.com/fivetwenty-io/qbo-client/pkg/tokenstore"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable LoadConfig reads, e.g.
// QBO_APP_KEY or QBO_TOKEN_STORE_REDIS_ADDR.
const EnvPrefix = "QBO"

// configKeys are bound to environment variables so they apply without a
// config file.
var configKeys = []string{
	"realm_id", "app_key", "app_secret", "redirect_url", "scope",
	"use_production", "endpoint", "minor_version",
	"auto_refresh", "auto_refresh_buffer_seconds",
	"access_token", "refresh_token",
	"token_url", "revoke_url", "authorize_url", "jwks_url", "issuer",
	"http_timeout", "retry_max", "retry_wait_min", "retry_wait_max",
	"rate_limit", "rate_burst", "max_query_pages",
	"response_headers", "user_agent", "debug",
	"token_store.type",
	"token_store.redis.addr", "token_store.redis.username", "token_store.redis.password",
	"token_store.redis.db", "token_store.redis.prefix", "token_store.redis.ttl",
	"token_store.bolt.path",
	"token_store.nats.url", "token_store.nats.bucket",
	"token_store.file.path",
}

type fileConfig struct {
	qbo.Config `mapstructure:",squash"`

	Store tokenstore.Config `mapstructure:"token_store"`
}

// LoadConfig reads the client configuration from the YAML file at path (if
// not empty), overridden by QBO_* environment variables. The .env files
// (default ".env") are loaded first; missing ones are ignored. The
// token_store section is returned separately for tokenstore.NewFromConfig.
func LoadConfig(path string, envFiles ...string) (*qbo.Config, *tokenstore.Config, error) {
	err := loadEnvFiles(envFiles)
	if err != nil {
		return nil, nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range configKeys {
		err = v.BindEnv(key)
		if err != nil {
			return nil, nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)

		err = v.ReadInConfig()
		if err != nil {
			return nil, nil, &qbo.ConfigurationError{Field: "config_file", Reason: err.Error()}
		}
	}

	var loaded fileConfig

	err = v.Unmarshal(&loaded)
	if err != nil {
		return nil, nil, &qbo.ConfigurationError{Reason: "decoding config: " + err.Error()}
	}

	config := loaded.Config
	store := loaded.Store

	if store.Type == "" {
		store.Type = tokenstore.StoreTypeMemory
	}

	return &config, &store, nil
}

func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, file := range files {
		err := godotenv.Load(file)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", file, err)
		}
	}

	return nil
}
