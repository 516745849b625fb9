package auth_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fivetwenty-io/qbo-client/internal/auth"
	"github.com/fivetwenty-io/qbo-client/pkg/qbo"
	"github.com/fivetwenty-io/qbo-client/pkg/tokenstore"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jwksServer struct {
	*httptest.Server

	hits atomic.Int32
}

func newJWKSServer(t *testing.T, key *rsa.PublicKey, kid string) *jwksServer {
	t.Helper()

	js := &jwksServer{}
	js.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		js.hits.Add(1)
		assert.Equal(t, "/jwks", r.URL.Path)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kid": kid,
				"kty": "RSA",
				"alg": "RS256",
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	}))
	t.Cleanup(js.Close)

	return js
}

func signIDToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid

	signed, err := token.SignedString(key)
	require.NoError(t, err)

	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":     "https://issuer.example.com",
		"aud":     []string{"app-key"},
		"sub":     "user-1",
		"exp":     testNow.Add(time.Hour).Unix(),
		"iat":     testNow.Unix(),
		"realmid": testRealmID,
	}
}

func TestTokenManager_ValidateIDToken(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tests := []struct {
		name     string
		token    func() string
		expected bool
		fetches  int32
	}{
		{
			name:     "valid",
			token:    func() string { return signIDToken(t, key, "k1", validClaims()) },
			expected: true,
			fetches:  1,
		},
		{
			name: "string audience",
			token: func() string {
				claims := validClaims()
				claims["aud"] = "app-key"

				return signIDToken(t, key, "k1", claims)
			},
			expected: true,
			fetches:  1,
		},
		{
			name: "wrong issuer never fetches keys",
			token: func() string {
				claims := validClaims()
				claims["iss"] = "https://evil.example.com"

				return signIDToken(t, key, "k1", claims)
			},
			expected: false,
		},
		{
			name: "wrong audience never fetches keys",
			token: func() string {
				claims := validClaims()
				claims["aud"] = "someone-else"

				return signIDToken(t, key, "k1", claims)
			},
			expected: false,
		},
		{
			name: "expired never fetches keys",
			token: func() string {
				claims := validClaims()
				claims["exp"] = testNow.Add(-time.Second).Unix()

				return signIDToken(t, key, "k1", claims)
			},
			expected: false,
		},
		{
			name:     "malformed",
			token:    func() string { return "not-a-token" },
			expected: false,
		},
		{
			name:     "signed by another key",
			token:    func() string { return signIDToken(t, otherKey, "k1", validClaims()) },
			expected: false,
			fetches:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := newJWKSServer(t, &key.PublicKey, "k1")
			manager := auth.NewTokenManager(tokenstore.NewMemoryStore(), testAppConfig(t, server.URL, true), auth.WithClock(testClock))

			valid, err := manager.ValidateIDToken(context.Background(), tt.token())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, valid)
			assert.Equal(t, tt.fetches, server.hits.Load())
		})
	}
}

func TestTokenManager_ValidateIDToken_StoredToken(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	server := newJWKSServer(t, &key.PublicKey, "k1")

	token := storedToken(testNow.Add(time.Hour), testNow.Add(time.Hour))
	token.IDToken = signIDToken(t, key, "k1", validClaims())

	manager := auth.NewTokenManager(seededStore(t, token), testAppConfig(t, server.URL, true), auth.WithClock(testClock))

	valid, err := manager.ValidateIDToken(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, valid)

	empty := auth.NewTokenManager(tokenstore.NewMemoryStore(), testAppConfig(t, server.URL, true))
	_, err = empty.ValidateIDToken(context.Background(), "")
	require.ErrorIs(t, err, qbo.ErrNoIDToken)
}

func TestTokenManager_ValidateIDToken_UnknownKeyID(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	server := newJWKSServer(t, &key.PublicKey, "k1")
	manager := auth.NewTokenManager(tokenstore.NewMemoryStore(), testAppConfig(t, server.URL, true), auth.WithClock(testClock))

	_, err = manager.ValidateIDToken(context.Background(), signIDToken(t, key, "k2", validClaims()))
	require.ErrorIs(t, err, qbo.ErrSigningKeyNotFound)
}
