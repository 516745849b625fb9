package qbo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// TokenData is the token endpoint's response body.
type TokenData struct {
	AccessToken            string `json:"access_token"               yaml:"access_token"`
	RefreshToken           string `json:"refresh_token"              yaml:"refresh_token"`
	TokenType              string `json:"token_type"                 yaml:"token_type"`
	ExpiresIn              int64  `json:"expires_in"                 yaml:"expires_in"`
	XRefreshTokenExpiresIn int64  `json:"x_refresh_token_expires_in" yaml:"x_refresh_token_expires_in"`
	IDToken                string `json:"id_token,omitempty"         yaml:"id_token,omitempty"`
}

// StoreTokenData is the persisted form of a token. Expiry timestamps are
// absolute and computed once when the token is saved.
type StoreTokenData struct {
	TokenData `yaml:",inline"`

	RealmID                string    `json:"realmID"                  yaml:"realm_id"`
	AccessExpireTimestamp  time.Time `json:"access_expire_timestamp"  yaml:"access_expire_timestamp"`
	RefreshExpireTimestamp time.Time `json:"refresh_expire_timestamp" yaml:"refresh_expire_timestamp"`
}

// NewStoreTokenData stamps td with absolute expiry times relative to now.
func NewStoreTokenData(realmID string, td TokenData, now time.Time) *StoreTokenData {
	out := &StoreTokenData{TokenData: td, RealmID: realmID}

	if td.ExpiresIn > 0 {
		out.AccessExpireTimestamp = now.Add(time.Duration(td.ExpiresIn) * time.Second)
	}

	if td.XRefreshTokenExpiresIn > 0 {
		out.RefreshExpireTimestamp = now.Add(time.Duration(td.XRefreshTokenExpiresIn) * time.Second)
	}

	return out
}

// Clone returns a copy of the token.
func (s *StoreTokenData) Clone() *StoreTokenData {
	if s == nil {
		return nil
	}

	clone := *s

	return &clone
}

// storeTokenJSON is the wire form with epoch-millisecond timestamps, the
// layout other clients of the API persist tokens in.
type storeTokenJSON struct {
	TokenData

	RealmID                string `json:"realmID,omitempty"`
	AccessExpireTimestamp  *int64 `json:"access_expire_timestamp,omitempty"`
	RefreshExpireTimestamp *int64 `json:"refresh_expire_timestamp,omitempty"`
}

// MarshalJSON encodes expiry timestamps as epoch milliseconds.
func (s StoreTokenData) MarshalJSON() ([]byte, error) {
	wire := storeTokenJSON{TokenData: s.TokenData, RealmID: s.RealmID}

	if !s.AccessExpireTimestamp.IsZero() {
		ms := s.AccessExpireTimestamp.UnixMilli()
		wire.AccessExpireTimestamp = &ms
	}

	if !s.RefreshExpireTimestamp.IsZero() {
		ms := s.RefreshExpireTimestamp.UnixMilli()
		wire.RefreshExpireTimestamp = &ms
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("marshaling token: %w", err)
	}

	return data, nil
}

// UnmarshalJSON decodes epoch-millisecond expiry timestamps.
func (s *StoreTokenData) UnmarshalJSON(data []byte) error {
	var wire storeTokenJSON

	err := json.Unmarshal(data, &wire)
	if err != nil {
		return fmt.Errorf("unmarshaling token: %w", err)
	}

	*s = StoreTokenData{TokenData: wire.TokenData, RealmID: wire.RealmID}

	if wire.AccessExpireTimestamp != nil {
		s.AccessExpireTimestamp = time.UnixMilli(*wire.AccessExpireTimestamp)
	}

	if wire.RefreshExpireTimestamp != nil {
		s.RefreshExpireTimestamp = time.UnixMilli(*wire.RefreshExpireTimestamp)
	}

	return nil
}

// RealmRef identifies the token a store call is about. Config is the clean
// client configuration and Extra is the caller's opaque context value.
type RealmRef struct {
	RealmID string
	Config  *AppConfig
	Extra   any
}

// TokenStore persists one token per realm. GetToken returns (nil, nil) when
// nothing is stored. Implementations must be safe for concurrent use.
type TokenStore interface {
	GetToken(ctx context.Context, ref RealmRef) (*StoreTokenData, error)
	SaveToken(ctx context.Context, ref RealmRef, token *StoreTokenData) (*StoreTokenData, error)
}

// GetTokenFunc is the read half of the function storage strategy.
type GetTokenFunc func(ctx context.Context, ref RealmRef) (*StoreTokenData, error)

// SaveTokenFunc is the write half of the function storage strategy.
type SaveTokenFunc func(ctx context.Context, ref RealmRef, token *StoreTokenData) (*StoreTokenData, error)
