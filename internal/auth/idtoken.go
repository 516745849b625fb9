package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/fivetwenty-io/qbo-client/internal/constants"
	"github.com/fivetwenty-io/qbo-client/pkg/qbo"
	"github.com/golang-jwt/jwt/v5"
)

// IDTokenHeader is the decoded JOSE header of an id token.
type IDTokenHeader struct {
	Algorithm string `json:"alg"`
	KeyID     string `json:"kid"`
}

// IDTokenClaims are the claims checked before the signature.
type IDTokenClaims struct {
	Issuer    string          `json:"iss"`
	Audience  json.RawMessage `json:"aud"`
	Subject   string          `json:"sub"`
	ExpiresAt int64           `json:"exp"`
	IssuedAt  int64           `json:"iat"`
	RealmID   string          `json:"realmid"`
}

// HasAudience reports whether aud, a string or a list, contains audience.
func (c *IDTokenClaims) HasAudience(audience string) bool {
	var single string
	if json.Unmarshal(c.Audience, &single) == nil {
		return single == audience
	}

	var list []string
	if json.Unmarshal(c.Audience, &list) == nil {
		for _, aud := range list {
			if aud == audience {
				return true
			}
		}
	}

	return false
}

// jsonWebKey is one RSA entry of a key set.
type jsonWebKey struct {
	KeyID string `json:"kid"`
	Type  string `json:"kty"`
	N     string `json:"n"`
	E     string `json:"e"`
}

type jsonWebKeySet struct {
	Keys []jsonWebKey `json:"keys"`
}

// idToken is a split, decoded compact token.
type idToken struct {
	header       IDTokenHeader
	claims       IDTokenClaims
	signingInput string
	signature    []byte
}

func decodeSegment(segment string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(segment, "="))
}

func parseIDToken(raw string) (*idToken, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("id token has %d segments, want 3", len(parts))
	}

	headerJSON, err := decodeSegment(parts[0])
	if err != nil {
		return nil, fmt.Errorf("decoding id token header: %w", err)
	}

	claimsJSON, err := decodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decoding id token payload: %w", err)
	}

	signature, err := decodeSegment(parts[2])
	if err != nil {
		return nil, fmt.Errorf("decoding id token signature: %w", err)
	}

	token := &idToken{signingInput: parts[0] + "." + parts[1], signature: signature}

	err = json.Unmarshal(headerJSON, &token.header)
	if err != nil {
		return nil, fmt.Errorf("parsing id token header: %w", err)
	}

	err = json.Unmarshal(claimsJSON, &token.claims)
	if err != nil {
		return nil, fmt.Errorf("parsing id token payload: %w", err)
	}

	return token, nil
}

// ValidateIDToken checks an OpenID id token: issuer, audience (the app key)
// and expiry first, and only when those pass fetches the issuer's key set
// and verifies the RS256 signature. An empty rawToken means the stored
// token's id_token. A token that fails any check yields false with a nil
// error; errors are reserved for missing tokens and network failures.
func (m *TokenManager) ValidateIDToken(ctx context.Context, rawToken string) (bool, error) {
	if rawToken == "" {
		token, err := m.GetToken(ctx)
		if err != nil {
			return false, err
		}

		if token == nil || token.IDToken == "" {
			return false, &qbo.TokenError{Err: qbo.ErrNoIDToken}
		}

		rawToken = token.IDToken
	}

	token, err := parseIDToken(rawToken)
	if err != nil {
		m.logger.Debug("Malformed id token", map[string]interface{}{"error": err})

		return false, nil
	}

	if !m.checkClaims(&token.claims) {
		return false, nil
	}

	key, err := m.signingKey(ctx, token.header.KeyID)
	if err != nil {
		return false, err
	}

	err = jwt.SigningMethodRS256.Verify(token.signingInput, token.signature, key)
	if err != nil {
		m.logger.Debug("Id token signature rejected", map[string]interface{}{"error": err})

		return false, nil
	}

	return true, nil
}

func (m *TokenManager) checkClaims(claims *IDTokenClaims) bool {
	switch {
	case claims.Issuer != m.config.Issuer:
		m.logger.Debug("Id token issuer mismatch", map[string]interface{}{"issuer": claims.Issuer})

		return false
	case !claims.HasAudience(m.config.AppKey):
		m.logger.Debug("Id token audience mismatch", nil)

		return false
	case !m.now().Before(time.Unix(claims.ExpiresAt, 0)):
		m.logger.Debug("Id token expired", map[string]interface{}{"exp": claims.ExpiresAt})

		return false
	}

	return true
}

func (m *TokenManager) signingKey(ctx context.Context, keyID string) (*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.config.JWKSURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating key set request: %w", err)
	}

	req.Header.Set(constants.HeaderAccept, constants.ContentTypeJSON)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching key set: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading key set: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &qbo.TransportError{StatusCode: resp.StatusCode, Status: resp.Status, Header: resp.Header, Body: body}
	}

	var set jsonWebKeySet

	err = json.Unmarshal(body, &set)
	if err != nil {
		return nil, fmt.Errorf("decoding key set: %w", err)
	}

	for _, jwk := range set.Keys {
		if jwk.KeyID == keyID {
			return jwk.publicKey()
		}
	}

	return nil, fmt.Errorf("kid %q: %w", keyID, qbo.ErrSigningKeyNotFound)
}

func (k jsonWebKey) publicKey() (*rsa.PublicKey, error) {
	n, err := decodeSegment(k.N)
	if err != nil {
		return nil, fmt.Errorf("decoding key modulus: %w", err)
	}

	e, err := decodeSegment(k.E)
	if err != nil {
		return nil, fmt.Errorf("decoding key exponent: %w", err)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(n),
		E: int(new(big.Int).SetBytes(e).Int64()),
	}, nil
}
