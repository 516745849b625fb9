package tokenstore

import (
	"context"
	"sync"

	"github.com/fivetwenty-io/qbo-client/pkg/qbo"
)

// MemoryStore keeps tokens in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]*qbo.StoreTokenData
}

// NewMemoryStore creates an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]*qbo.StoreTokenData)}
}

// GetToken implements qbo.TokenStore.
func (s *MemoryStore) GetToken(ctx context.Context, ref qbo.RealmRef) (*qbo.StoreTokenData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tokens[ref.RealmID].Clone(), nil
}

// SaveToken implements qbo.TokenStore.
func (s *MemoryStore) SaveToken(ctx context.Context, ref qbo.RealmRef, token *qbo.StoreTokenData) (*qbo.StoreTokenData, error) {
	if token == nil {
		return nil, ErrNilToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[ref.RealmID] = token.Clone()

	return token.Clone(), nil
}

// DeleteToken removes the realm's token.
func (s *MemoryStore) DeleteToken(ctx context.Context, ref qbo.RealmRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, ref.RealmID)

	return nil
}

// Len returns the number of stored tokens.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.tokens)
}
