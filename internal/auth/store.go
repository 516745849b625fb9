package auth

import (
	"context"
	"sync"

	"github.com/fivetwenty-io/qbo-client/internal/constants"
	"github.com/fivetwenty-io/qbo-client/pkg/qbo"
)

// Strategy names how a client persists its token.
type Strategy string

const (
	// StrategyInternal keeps the token in the client's memory.
	StrategyInternal Strategy = "internal"

	// StrategyClass delegates to a qbo.TokenStore.
	StrategyClass Strategy = "class"

	// StrategyFunction delegates to a pair of functions.
	StrategyFunction Strategy = "function"
)

// NewStore selects the storage strategy configured in cfg. Exactly one
// strategy must be configured.
func NewStore(cfg *qbo.Config) (qbo.TokenStore, Strategy, error) {
	if cfg == nil {
		return nil, "", &qbo.ConfigurationError{Reason: qbo.ErrConfigRequired.Error()}
	}

	var selected []Strategy

	if cfg.AccessToken != "" || cfg.RefreshToken != "" {
		selected = append(selected, StrategyInternal)
	}

	if cfg.TokenStore != nil {
		selected = append(selected, StrategyClass)
	}

	if cfg.GetTokenFunc != nil || cfg.SaveTokenFunc != nil {
		selected = append(selected, StrategyFunction)
	}

	switch len(selected) {
	case 0:
		return nil, "", &qbo.ConfigurationError{
			Field:  "token_store",
			Reason: "configure access_token/refresh_token, a token store, or get/save token functions",
		}
	case 1:
	default:
		return nil, "", &qbo.ConfigurationError{
			Field:  "token_store",
			Reason: "more than one token storage strategy configured",
		}
	}

	switch selected[0] {
	case StrategyInternal:
		return newInternalStore(cfg.RealmID, cfg.AccessToken, cfg.RefreshToken), StrategyInternal, nil

	case StrategyClass:
		return cfg.TokenStore, StrategyClass, nil

	default:
		if cfg.GetTokenFunc == nil {
			return nil, "", &qbo.ConfigurationError{Field: "get_token_func", Reason: "required with save_token_func"}
		}

		if cfg.SaveTokenFunc == nil {
			return nil, "", &qbo.ConfigurationError{Field: "save_token_func", Reason: "required with get_token_func"}
		}

		return funcStore{get: cfg.GetTokenFunc, save: cfg.SaveTokenFunc}, StrategyFunction, nil
	}
}

// internalStore holds the one token of a client configured with literal
// access and refresh tokens.
type internalStore struct {
	mu    sync.RWMutex
	token *qbo.StoreTokenData
}

func newInternalStore(realmID, accessToken, refreshToken string) *internalStore {
	return &internalStore{token: &qbo.StoreTokenData{
		TokenData: qbo.TokenData{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			TokenType:    constants.TokenTypeBearer,
		},
		RealmID: realmID,
	}}
}

func (s *internalStore) GetToken(context.Context, qbo.RealmRef) (*qbo.StoreTokenData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token.Clone(), nil
}

func (s *internalStore) SaveToken(_ context.Context, _ qbo.RealmRef, token *qbo.StoreTokenData) (*qbo.StoreTokenData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token.Clone()

	return token.Clone(), nil
}

func (s *internalStore) DeleteToken(context.Context, qbo.RealmRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = nil

	return nil
}

type funcStore struct {
	get  qbo.GetTokenFunc
	save qbo.SaveTokenFunc
}

func (s funcStore) GetToken(ctx context.Context, ref qbo.RealmRef) (*qbo.StoreTokenData, error) {
	return s.get(ctx, ref)
}

func (s funcStore) SaveToken(ctx context.Context, ref qbo.RealmRef, token *qbo.StoreTokenData) (*qbo.StoreTokenData, error) {
	return s.save(ctx, ref, token)
}
