package auth

import (
	"crypto/rand"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/fivetwenty-io/qbo-client/pkg/qbo"
	"github.com/google/uuid"
)

// Scopes accepted by the authorization endpoint.
const (
	ScopeAccounting = "com.intuit.quickbooks.accounting"
	ScopePayment    = "com.intuit.quickbooks.payment"
	ScopeOpenID     = "openid"
	ScopeProfile    = "profile"
	ScopeEmail      = "email"
	ScopePhone      = "phone"
	ScopeAddress    = "address"
)

// NewState returns a CSRF state value drawn from r, or from crypto/rand when
// r is nil.
func NewState(r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}

	id, err := uuid.NewRandomFromReader(r)
	if err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}

	return id.String(), nil
}

// AuthorizeURL builds the consent page URL for config. An empty state is
// generated from random.
func AuthorizeURL(config *qbo.AppConfig, state string, random io.Reader) (string, string, error) {
	err := config.RequireAuthFlow()
	if err != nil {
		return "", "", err
	}

	if state == "" {
		state, err = NewState(random)
		if err != nil {
			return "", "", err
		}
	}

	query := url.Values{}
	query.Set("client_id", config.AppKey)
	query.Set("scope", strings.Join(config.Scope, " "))
	query.Set("redirect_uri", config.RedirectURL)
	query.Set("response_type", "code")
	query.Set("state", state)

	return config.AuthorizeURL + "?" + query.Encode(), state, nil
}
