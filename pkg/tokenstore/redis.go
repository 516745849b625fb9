package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fivetwenty-io/qbo-client/pkg/qbo"
	"github.com/go-redis/redis/v8"
)

const (
	// DefaultRedisPrefix namespaces token keys.
	DefaultRedisPrefix = "qbo:token:"

	// DefaultRedisTTL caps how long a token key lives.
	DefaultRedisTTL = 101 * 24 * time.Hour

	redisExpiryGrace = 24 * time.Hour
)

// RedisConfig configures the Redis store.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"     yaml:"addr"`
	Username string        `mapstructure:"username" yaml:"username"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db"       yaml:"db"`
	Prefix   string        `mapstructure:"prefix"   yaml:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"      yaml:"ttl"`
}

// RedisStore shares tokens between processes through Redis. A key expires a
// day after its refresh token does.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// RedisOption customizes a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisPrefix overrides the key prefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithRedisTTL overrides the maximum key lifetime.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.Cmdable, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		prefix: DefaultRedisPrefix,
		ttl:    DefaultRedisTTL,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// NewRedisStoreFromConfig dials Redis and checks the connection.
func NewRedisStoreFromConfig(ctx context.Context, config *RedisConfig) (*RedisStore, error) {
	if config == nil || config.Addr == "" {
		return nil, ErrRedisConfigRequired
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Username: config.Username,
		Password: config.Password,
		DB:       config.DB,
	})

	err := client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("connecting to redis at %s: %w", config.Addr, err)
	}

	return NewRedisStore(client, WithRedisPrefix(config.Prefix), WithRedisTTL(config.TTL)), nil
}

// GetToken implements qbo.TokenStore.
func (s *RedisStore) GetToken(ctx context.Context, ref qbo.RealmRef) (*qbo.StoreTokenData, error) {
	data, err := s.client.Get(ctx, s.key(ref.RealmID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading token from redis: %w", err)
	}

	var token qbo.StoreTokenData

	err = json.Unmarshal(data, &token)
	if err != nil {
		return nil, fmt.Errorf("decoding stored token: %w", err)
	}

	return &token, nil
}

// SaveToken implements qbo.TokenStore.
func (s *RedisStore) SaveToken(ctx context.Context, ref qbo.RealmRef, token *qbo.StoreTokenData) (*qbo.StoreTokenData, error) {
	if token == nil {
		return nil, ErrNilToken
	}

	data, err := json.Marshal(token)
	if err != nil {
		return nil, fmt.Errorf("encoding token: %w", err)
	}

	err = s.client.Set(ctx, s.key(ref.RealmID), data, s.expiration(token)).Err()
	if err != nil {
		return nil, fmt.Errorf("writing token to redis: %w", err)
	}

	return token.Clone(), nil
}

// DeleteToken removes the realm's key.
func (s *RedisStore) DeleteToken(ctx context.Context, ref qbo.RealmRef) error {
	err := s.client.Del(ctx, s.key(ref.RealmID)).Err()
	if err != nil {
		return fmt.Errorf("deleting token from redis: %w", err)
	}

	return nil
}

// Close closes the client when it supports closing.
func (s *RedisStore) Close() error {
	if closer, ok := s.client.(io.Closer); ok {
		return closer.Close()
	}

	return nil
}

func (s *RedisStore) key(realmID string) string {
	return s.prefix + realmID
}

func (s *RedisStore) expiration(token *qbo.StoreTokenData) time.Duration {
	if token.RefreshExpireTimestamp.IsZero() {
		return s.ttl
	}

	ttl := token.RefreshExpireTimestamp.Sub(s.now()) + redisExpiryGrace
	if ttl > s.ttl {
		return s.ttl
	}

	if ttl <= 0 {
		return redisExpiryGrace
	}

	return ttl
}
