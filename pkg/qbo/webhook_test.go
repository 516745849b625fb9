package qbo_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fivetwenty-io/qbo-client/pkg/qbo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testVerifierToken = "verifier-token"
	testWebhookBody   = `{"eventNotifications":[{"realmId":"1185883450","dataChangeEvent":{"entities":[` +
		`{"name":"Customer","id":"1","operation":"Create","lastUpdated":"2015-10-05T14:42:19-0700"},` +
		`{"name":"Vendor","id":"1","operation":"Merge","lastUpdated":"2015-10-05T14:42:19-0700","deletedID":"7"}]}}]}`
)

func TestVerifyWebhook_StableSignature(t *testing.T) {
	t.Parallel()

	first := qbo.SignWebhook(testVerifierToken, []byte(testWebhookBody))
	second := qbo.SignWebhook(testVerifierToken, []byte(testWebhookBody))

	assert.Equal(t, first, second)
	assert.True(t, qbo.VerifyWebhookBody(testVerifierToken, []byte(testWebhookBody), first))
	assert.False(t, qbo.VerifyWebhookBody("other-token", []byte(testWebhookBody), first))
}

func TestVerifyWebhook_SingleByteMutation(t *testing.T) {
	t.Parallel()

	body := []byte(testWebhookBody)
	signature := qbo.SignWebhook(testVerifierToken, body)

	for i := range body {
		mutated := bytes.Clone(body)
		mutated[i] ^= 0x01

		assert.False(t, qbo.VerifyWebhookBody(testVerifierToken, mutated, signature), "mutation at byte %d", i)
	}
}

func TestVerifyWebhook_Edges(t *testing.T) {
	t.Parallel()

	signature := qbo.SignWebhook(testVerifierToken, []byte(testWebhookBody))

	tests := []struct {
		name      string
		token     string
		payload   any
		signature string
		expected  bool
	}{
		{name: "missing token", token: "", payload: testWebhookBody, signature: signature, expected: false},
		{name: "missing signature", token: testVerifierToken, payload: testWebhookBody, signature: "", expected: false},
		{name: "nil payload", token: testVerifierToken, payload: nil, signature: "anything", expected: true},
		{name: "empty string payload", token: testVerifierToken, payload: "", signature: "anything", expected: true},
		{name: "empty body payload", token: testVerifierToken, payload: []byte{}, signature: "anything", expected: true},
		{name: "string payload", token: testVerifierToken, payload: testWebhookBody, signature: signature, expected: true},
		{name: "re-encoded signature", token: testVerifierToken, payload: testWebhookBody, signature: signature + "=", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, qbo.VerifyWebhook(tt.token, tt.payload, tt.signature))
		})
	}
}

func TestVerifyWebhook_StructPayload(t *testing.T) {
	t.Parallel()

	payload := map[string]any{"eventNotifications": []any{}}
	signature := qbo.SignWebhook(testVerifierToken, []byte(`{"eventNotifications":[]}`))

	assert.True(t, qbo.VerifyWebhook(testVerifierToken, payload, signature))
}

func TestVerifyWebhookRequest(t *testing.T) {
	t.Parallel()

	signature := qbo.SignWebhook(testVerifierToken, []byte(testWebhookBody))

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(testWebhookBody))
	req.Header.Set("intuit-signature", signature)

	body, err := qbo.VerifyWebhookRequest(testVerifierToken, req)
	require.NoError(t, err)
	assert.Equal(t, testWebhookBody, string(body))

	bad := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(testWebhookBody))
	bad.Header.Set("intuit-signature", "forged")

	_, err = qbo.VerifyWebhookRequest(testVerifierToken, bad)
	require.ErrorIs(t, err, qbo.ErrInvalidWebhookPayload)
}

func TestParseWebhookPayload(t *testing.T) {
	t.Parallel()

	payload, err := qbo.ParseWebhookPayload([]byte(testWebhookBody))
	require.NoError(t, err)

	require.Len(t, payload.EventNotifications, 1)
	notification := payload.EventNotifications[0]
	assert.Equal(t, "1185883450", notification.RealmID)
	require.Len(t, notification.DataChangeEvent.Entities, 2)

	merged := notification.DataChangeEvent.Entities[1]
	assert.Equal(t, "Vendor", merged.Name)
	assert.Equal(t, "Merge", merged.Operation)
	assert.Equal(t, "7", merged.DeletedID)

	updated, err := merged.LastUpdatedTime()
	require.NoError(t, err)
	assert.Equal(t, int64(1444081339), updated.Unix())

	_, err = qbo.ParseWebhookPayload([]byte("{"))
	require.ErrorIs(t, err, qbo.ErrInvalidWebhookPayload)
}
