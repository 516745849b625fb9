package qbo

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fivetwenty-io/qbo-client/internal/constants"
)

// WebhookPayload is the event notification body posted to webhook consumers.
type WebhookPayload struct {
	EventNotifications []EventNotification `json:"eventNotifications" yaml:"eventNotifications"`
}

// EventNotification groups the changes of one realm.
type EventNotification struct {
	RealmID         string          `json:"realmId"         yaml:"realmId"`
	DataChangeEvent DataChangeEvent `json:"dataChangeEvent" yaml:"dataChangeEvent"`
}

// DataChangeEvent lists changed entities.
type DataChangeEvent struct {
	Entities []ChangedEntity `json:"entities" yaml:"entities"`
}

// ChangedEntity is one change of one entity.
type ChangedEntity struct {
	Name        string `json:"name"                yaml:"name"`
	ID          string `json:"id"                  yaml:"id"`
	Operation   string `json:"operation"           yaml:"operation"`
	LastUpdated string `json:"lastUpdated"         yaml:"lastUpdated"`
	DeletedID   string `json:"deletedID,omitempty" yaml:"deletedID,omitempty"`
}

var lastUpdatedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.000-0700",
}

// LastUpdatedTime parses LastUpdated. The API sends offsets both with and
// without a colon.
func (c ChangedEntity) LastUpdatedTime() (time.Time, error) {
	var lastErr error

	for _, layout := range lastUpdatedLayouts {
		t, err := time.Parse(layout, c.LastUpdated)
		if err == nil {
			return t, nil
		}

		lastErr = err
	}

	return time.Time{}, fmt.Errorf("parsing lastUpdated %q: %w", c.LastUpdated, lastErr)
}

// ParseWebhookPayload decodes an event notification body.
func ParseWebhookPayload(data []byte) (*WebhookPayload, error) {
	var payload WebhookPayload

	err := json.Unmarshal(data, &payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWebhookPayload, err)
	}

	return &payload, nil
}

// VerifyWebhook checks signature against the HMAC-SHA256 of payload keyed
// with verifierToken, base64 encoded. Byte slices and strings are signed as
// given, anything else as its JSON encoding. A missing token or signature
// fails; a nil or empty payload passes because there is nothing to forge.
func VerifyWebhook(verifierToken string, payload any, signature string) bool {
	if verifierToken == "" || signature == "" {
		return false
	}

	var body []byte

	switch v := payload.(type) {
	case nil:
		return true
	case []byte:
		body = v
	case json.RawMessage:
		body = v
	case string:
		body = []byte(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return false
		}

		body = encoded
	}

	if len(body) == 0 {
		return true
	}

	return hmac.Equal([]byte(SignWebhook(verifierToken, body)), []byte(signature))
}

// VerifyWebhookBody is VerifyWebhook for a raw request body.
func VerifyWebhookBody(verifierToken string, body []byte, signature string) bool {
	return VerifyWebhook(verifierToken, body, signature)
}

// SignWebhook returns the base64 HMAC-SHA256 of body keyed with verifierToken.
func SignWebhook(verifierToken string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(verifierToken))
	_, _ = mac.Write(body)

	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookRequest reads r's body and checks its intuit-signature header.
// The body is returned so the caller can decode it.
func VerifyWebhookRequest(verifierToken string, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("reading webhook body: %w", err)
	}

	if !VerifyWebhookBody(verifierToken, body, r.Header.Get(constants.HeaderIntuitSignature)) {
		return nil, fmt.Errorf("%w: signature mismatch", ErrInvalidWebhookPayload)
	}

	return body, nil
}
