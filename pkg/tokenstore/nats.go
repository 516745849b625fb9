package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fivetwenty-io/qbo-client/pkg/qbo"
	"github.com/nats-io/nats.go"
)

// DefaultNATSBucket is the key-value bucket tokens are kept in.
const DefaultNATSBucket = "qbo_tokens"

// NATSConfig configures the NATS JetStream key-value store.
type NATSConfig struct {
	URL    string `mapstructure:"url"    yaml:"url"`
	Bucket string `mapstructure:"bucket" yaml:"bucket"`
}

// KeyValue is the subset of nats.KeyValue the store uses.
type KeyValue interface {
	Get(key string) (nats.KeyValueEntry, error)
	Put(key string, value []byte) (uint64, error)
	Delete(key string, opts ...nats.DeleteOpt) error
}

// NATSStore keeps tokens in a JetStream key-value bucket so several
// processes can share them.
type NATSStore struct {
	kv   KeyValue
	conn *nats.Conn
}

// NewNATSStore wraps an existing bucket.
func NewNATSStore(kv KeyValue) *NATSStore {
	return &NATSStore{kv: kv}
}

// NewNATSStoreFromConn binds to bucket on nc, creating it when missing.
func NewNATSStoreFromConn(nc *nats.Conn, bucket string) (*NATSStore, error) {
	if bucket == "" {
		bucket = DefaultNATSBucket
	}

	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("opening jetstream context: %w", err)
	}

	kv, err := js.KeyValue(bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      bucket,
			Description: "QuickBooks Online OAuth tokens",
		})
	}

	if err != nil {
		return nil, fmt.Errorf("binding key-value bucket %s: %w", bucket, err)
	}

	return &NATSStore{kv: kv}, nil
}

// NewNATSStoreFromConfig connects to the server and binds the bucket. The
// store owns the connection and closes it on Close.
func NewNATSStoreFromConfig(config *NATSConfig) (*NATSStore, error) {
	if config == nil || config.URL == "" {
		return nil, ErrNATSConfigRequired
	}

	nc, err := nats.Connect(config.URL, nats.Name("qbo-client"))
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", config.URL, err)
	}

	store, err := NewNATSStoreFromConn(nc, config.Bucket)
	if err != nil {
		nc.Close()

		return nil, err
	}

	store.conn = nc

	return store, nil
}

// Close releases the connection when the store opened it.
func (s *NATSStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}

	return nil
}

// GetToken implements qbo.TokenStore.
func (s *NATSStore) GetToken(ctx context.Context, ref qbo.RealmRef) (*qbo.StoreTokenData, error) {
	entry, err := s.kv.Get(natsKey(ref.RealmID))
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading token from NATS: %w", err)
	}

	if len(entry.Value()) == 0 {
		return nil, nil
	}

	var token qbo.StoreTokenData

	err = json.Unmarshal(entry.Value(), &token)
	if err != nil {
		return nil, fmt.Errorf("decoding stored token: %w", err)
	}

	return &token, nil
}

// SaveToken implements qbo.TokenStore.
func (s *NATSStore) SaveToken(ctx context.Context, ref qbo.RealmRef, token *qbo.StoreTokenData) (*qbo.StoreTokenData, error) {
	if token == nil {
		return nil, ErrNilToken
	}

	data, err := json.Marshal(token)
	if err != nil {
		return nil, fmt.Errorf("encoding token: %w", err)
	}

	_, err = s.kv.Put(natsKey(ref.RealmID), data)
	if err != nil {
		return nil, fmt.Errorf("writing token to NATS: %w", err)
	}

	return token.Clone(), nil
}

// DeleteToken removes the realm's key.
func (s *NATSStore) DeleteToken(ctx context.Context, ref qbo.RealmRef) error {
	err := s.kv.Delete(natsKey(ref.RealmID))
	if err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("deleting token from NATS: %w", err)
	}

	return nil
}

// natsKey maps a realm ID onto the key alphabet JetStream accepts.
func natsKey(realmID string) string {
	return "realm." + strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, realmID)
}
