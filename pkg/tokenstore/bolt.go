package tokenstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fivetwenty-io/qbo-client/internal/constants"
	"github.com/fivetwenty-io/qbo-client/pkg/qbo"
	bolt "go.etcd.io/bbolt"
)

const boltOpenTimeout = 5 * time.Second

var tokensBucket = []byte("tokens")

// BoltConfig configures the bbolt store.
type BoltConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// BoltStore keeps tokens in a local bbolt database, one key per realm.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens the database at path, creating it and its directory
// when missing.
func OpenBoltStore(path string) (*BoltStore, error) {
	if path == "" {
		return nil, ErrBoltConfigRequired
	}

	if err := os.MkdirAll(filepath.Dir(path), constants.StoreDirPerm); err != nil {
		return nil, fmt.Errorf("creating token store directory: %w", err)
	}

	db, err := bolt.Open(path, constants.StoreFilePerm, &bolt.Options{Timeout: boltOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening token store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(tokensBucket)

		return err
	})
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("initializing token store: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// GetToken implements qbo.TokenStore.
func (s *BoltStore) GetToken(ctx context.Context, ref qbo.RealmRef) (*qbo.StoreTokenData, error) {
	var token *qbo.StoreTokenData

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(tokensBucket)
		if b == nil {
			return ErrBucketMissing
		}

		v := b.Get([]byte(ref.RealmID))
		if v == nil {
			return nil
		}

		token = &qbo.StoreTokenData{}

		return json.Unmarshal(v, token)
	})
	if err != nil {
		return nil, fmt.Errorf("reading token: %w", err)
	}

	return token, nil
}

// SaveToken implements qbo.TokenStore.
func (s *BoltStore) SaveToken(ctx context.Context, ref qbo.RealmRef, token *qbo.StoreTokenData) (*qbo.StoreTokenData, error) {
	if token == nil {
		return nil, ErrNilToken
	}

	data, err := json.Marshal(token)
	if err != nil {
		return nil, fmt.Errorf("encoding token: %w", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(tokensBucket).Put([]byte(ref.RealmID), data)
	})
	if err != nil {
		return nil, fmt.Errorf("writing token: %w", err)
	}

	return token.Clone(), nil
}

// DeleteToken removes the realm's key.
func (s *BoltStore) DeleteToken(ctx context.Context, ref qbo.RealmRef) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(tokensBucket).Delete([]byte(ref.RealmID))
	})
	if err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}

	return nil
}

// Realms lists the realm IDs that have a stored token.
func (s *BoltStore) Realms() ([]string, error) {
	var realms []string

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(tokensBucket).ForEach(func(k, _ []byte) error {
			realms = append(realms, string(k))

			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("listing realms: %w", err)
	}

	return realms, nil
}
