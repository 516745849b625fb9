package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fivetwenty-io/qbo-client/pkg/qbo"
)

// StoreType names a token store backend.
type StoreType string

const (
	// StoreTypeMemory keeps tokens in process memory.
	StoreTypeMemory StoreType = "memory"

	// StoreTypeRedis keeps tokens in Redis.
	StoreTypeRedis StoreType = "redis"

	// StoreTypeBolt keeps tokens in a local bbolt database.
	StoreTypeBolt StoreType = "bolt"

	// StoreTypeNATS keeps tokens in a NATS JetStream key-value bucket.
	StoreTypeNATS StoreType = "nats"

	// StoreTypeFile keeps tokens in a YAML file.
	StoreTypeFile StoreType = "file"
)

// Config selects and configures a backend.
type Config struct {
	Type  StoreType    `mapstructure:"type"  yaml:"type"`
	Redis *RedisConfig `mapstructure:"redis" yaml:"redis"`
	Bolt  *BoltConfig  `mapstructure:"bolt"  yaml:"bolt"`
	NATS  *NATSConfig  `mapstructure:"nats"  yaml:"nats"`
	File  *FileConfig  `mapstructure:"file"  yaml:"file"`
}

// DefaultConfig returns the memory backend.
func DefaultConfig() *Config {
	return &Config{Type: StoreTypeMemory}
}

// Store is a token store that may hold resources.
type Store interface {
	qbo.TokenStore
	Deleter
	io.Closer
}

// NewFromConfig creates a store from configuration. A nil config or empty
// type yields a memory store.
func NewFromConfig(ctx context.Context, config *Config) (Store, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Type {
	case StoreTypeMemory, "":
		return nopCloser{NewMemoryStore()}, nil

	case StoreTypeRedis:
		if config.Redis == nil {
			return nil, ErrRedisConfigRequired
		}

		store, err := NewRedisStoreFromConfig(ctx, config.Redis)
		if err != nil {
			return nil, err
		}

		return store, nil

	case StoreTypeBolt:
		if config.Bolt == nil {
			return nil, ErrBoltConfigRequired
		}

		store, err := OpenBoltStore(config.Bolt.Path)
		if err != nil {
			return nil, err
		}

		return store, nil

	case StoreTypeNATS:
		if config.NATS == nil {
			return nil, ErrNATSConfigRequired
		}

		store, err := NewNATSStoreFromConfig(config.NATS)
		if err != nil {
			return nil, err
		}

		return store, nil

	case StoreTypeFile:
		if config.File == nil {
			return nil, ErrFileConfigRequired
		}

		store, err := NewFileStore(config.File.Path)
		if err != nil {
			return nil, err
		}

		return nopCloser{store}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedStoreType, config.Type)
	}
}

type deletableStore interface {
	qbo.TokenStore
	Deleter
}

type nopCloser struct {
	deletableStore
}

func (nopCloser) Close() error { return nil }

// Builder helps build store configurations.
type Builder struct {
	config *Config
}

// NewBuilder creates a builder defaulting to the memory backend.
func NewBuilder() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithType sets the backend type.
func (b *Builder) WithType(storeType StoreType) *Builder {
	b.config.Type = storeType

	return b
}

// WithRedis selects Redis.
func (b *Builder) WithRedis(config *RedisConfig) *Builder {
	b.config.Type = StoreTypeRedis
	b.config.Redis = config

	return b
}

// WithBolt selects a bbolt database at path.
func (b *Builder) WithBolt(path string) *Builder {
	b.config.Type = StoreTypeBolt
	b.config.Bolt = &BoltConfig{Path: path}

	return b
}

// WithNATS selects a NATS key-value bucket.
func (b *Builder) WithNATS(config *NATSConfig) *Builder {
	b.config.Type = StoreTypeNATS
	b.config.NATS = config

	return b
}

// WithFile selects a YAML file at path.
func (b *Builder) WithFile(path string) *Builder {
	b.config.Type = StoreTypeFile
	b.config.File = &FileConfig{Path: path}

	return b
}

// Config returns the configuration built so far.
func (b *Builder) Config() *Config {
	return b.config
}

// Build creates the store.
func (b *Builder) Build(ctx context.Context) (Store, error) {
	return NewFromConfig(ctx, b.config)
}

// Chain layers stores as tiers. Reads go to each tier in order and the first
// hit is copied into the tiers before it. Writes go to every tier.
type Chain struct {
	stores []qbo.TokenStore
	logger qbo.Logger
}

// NewChain creates a chain. The first store is the fastest tier.
func NewChain(stores ...qbo.TokenStore) (*Chain, error) {
	if len(stores) == 0 {
		return nil, ErrEmptyChain
	}

	return &Chain{stores: stores, logger: qbo.NopLogger{}}, nil
}

// WithLogger reports tier failures that reads otherwise tolerate.
func (c *Chain) WithLogger(logger qbo.Logger) *Chain {
	if logger != nil {
		c.logger = logger
	}

	return c
}

// GetToken implements qbo.TokenStore.
func (c *Chain) GetToken(ctx context.Context, ref qbo.RealmRef) (*qbo.StoreTokenData, error) {
	var errs []error

	for i, store := range c.stores {
		token, err := store.GetToken(ctx, ref)
		if err != nil {
			c.logger.Warn("Token store tier read failed", map[string]interface{}{
				"realm_id": ref.RealmID,
				"tier":     i,
				"error":    err,
			})

			errs = append(errs, err)

			continue
		}

		if token == nil {
			continue
		}

		for j := range i {
			if _, err := c.stores[j].SaveToken(ctx, ref, token); err != nil {
				c.logger.Warn("Token store tier backfill failed", map[string]interface{}{
					"realm_id": ref.RealmID,
					"tier":     j,
					"error":    err,
				})
			}
		}

		return token, nil
	}

	if len(errs) == len(c.stores) {
		return nil, errors.Join(errs...)
	}

	return nil, nil
}

// SaveToken writes to every tier and returns the last error.
func (c *Chain) SaveToken(ctx context.Context, ref qbo.RealmRef, token *qbo.StoreTokenData) (*qbo.StoreTokenData, error) {
	var lastErr error

	for _, store := range c.stores {
		_, err := store.SaveToken(ctx, ref, token)
		if err != nil {
			lastErr = err
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}

	return token.Clone(), nil
}

// DeleteToken removes the token from every tier that supports deletion.
func (c *Chain) DeleteToken(ctx context.Context, ref qbo.RealmRef) error {
	var lastErr error

	for _, store := range c.stores {
		deleter, ok := store.(Deleter)
		if !ok {
			continue
		}

		err := deleter.DeleteToken(ctx, ref)
		if err != nil {
			lastErr = err
		}
	}

	return lastErr
}
