package qbo_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/fivetwenty-io/qbo-client/pkg/qbo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreTokenData(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	token := qbo.NewStoreTokenData("123145", qbo.TokenData{
		AccessToken:            "access",
		RefreshToken:           "refresh",
		TokenType:              "bearer",
		ExpiresIn:              3600,
		XRefreshTokenExpiresIn: 8726400,
	}, now)

	assert.Equal(t, "123145", token.RealmID)
	assert.Equal(t, now.Add(time.Hour), token.AccessExpireTimestamp)
	assert.Equal(t, now.Add(8726400*time.Second), token.RefreshExpireTimestamp)
}

func TestNewStoreTokenData_MissingLifetimes(t *testing.T) {
	t.Parallel()

	token := qbo.NewStoreTokenData("1", qbo.TokenData{AccessToken: "a"}, time.Now())
	assert.True(t, token.AccessExpireTimestamp.IsZero())
	assert.True(t, token.RefreshExpireTimestamp.IsZero())
}

func TestStoreTokenData_JSON(t *testing.T) {
	t.Parallel()

	expire := time.UnixMilli(1714567200123)

	original := &qbo.StoreTokenData{
		TokenData: qbo.TokenData{
			AccessToken:  "access",
			RefreshToken: "refresh",
			TokenType:    "bearer",
			ExpiresIn:    3600,
		},
		RealmID:               "42",
		AccessExpireTimestamp: expire,
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.InDelta(t, float64(1714567200123), raw["access_expire_timestamp"], 0)
	assert.NotContains(t, raw, "refresh_expire_timestamp")
	assert.Equal(t, "42", raw["realmID"])
	assert.Equal(t, "access", raw["access_token"])

	var decoded qbo.StoreTokenData
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, expire.Equal(decoded.AccessExpireTimestamp))
	assert.True(t, decoded.RefreshExpireTimestamp.IsZero())
	assert.Equal(t, original.TokenData, decoded.TokenData)
}

func TestStoreTokenData_ReadsForeignRecord(t *testing.T) {
	t.Parallel()

	record := `{"access_token":"a","refresh_token":"r","token_type":"bearer","expires_in":3600,` +
		`"x_refresh_token_expires_in":8726400,"realmID":"99",` +
		`"access_expire_timestamp":1700000000000,"refresh_expire_timestamp":1708726400000}`

	var token qbo.StoreTokenData
	require.NoError(t, json.Unmarshal([]byte(record), &token))

	assert.Equal(t, "99", token.RealmID)
	assert.Equal(t, int64(1700000000000), token.AccessExpireTimestamp.UnixMilli())
	assert.Equal(t, int64(1708726400000), token.RefreshExpireTimestamp.UnixMilli())
	assert.Equal(t, int64(8726400), token.XRefreshTokenExpiresIn)
}

func TestStoreTokenData_Clone(t *testing.T) {
	t.Parallel()

	original := &qbo.StoreTokenData{TokenData: qbo.TokenData{AccessToken: "a"}}
	clone := original.Clone()
	clone.AccessToken = "b"

	assert.Equal(t, "a", original.AccessToken)
	assert.Nil(t, (*qbo.StoreTokenData)(nil).Clone())
}
