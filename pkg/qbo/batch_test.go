package qbo_test

import (
	"encoding/json"
	"testing"

	"github.com/fivetwenty-io/qbo-client/pkg/qbo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchItem_MarshalJSON(t *testing.T) {
	t.Parallel()

	t.Run("entity item", func(t *testing.T) {
		t.Parallel()

		data, err := json.Marshal(qbo.BatchItem{
			BID:       "bid1",
			Operation: qbo.BatchCreate,
			Entity:    qbo.EntityVendor,
			Data:      map[string]any{"DisplayName": "Acme"},
		})
		require.NoError(t, err)
		assert.JSONEq(t, `{"bId":"bid1","operation":"create","Vendor":{"DisplayName":"Acme"}}`, string(data))
	})

	t.Run("void item", func(t *testing.T) {
		t.Parallel()

		data, err := json.Marshal(qbo.BatchItem{
			BID:         "bid2",
			Operation:   qbo.BatchUpdate,
			OptionsData: "void",
			Entity:      qbo.EntityInvoice,
			Data:        map[string]any{"Id": "5", "SyncToken": "0"},
		})
		require.NoError(t, err)
		assert.JSONEq(t, `{"bId":"bid2","operation":"update","optionsData":"void","Invoice":{"Id":"5","SyncToken":"0"}}`, string(data))
	})

	t.Run("query item", func(t *testing.T) {
		t.Parallel()

		data, err := json.Marshal(qbo.BatchItem{BID: "bid3", Query: "select * from Customer"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"bId":"bid3","Query":"select * from Customer"}`, string(data))
	})

	t.Run("empty item", func(t *testing.T) {
		t.Parallel()

		_, err := json.Marshal(qbo.BatchItem{BID: "bid4"})
		require.ErrorIs(t, err, qbo.ErrBatchItemEntity)
	})
}

func TestBatchResponse_Unmarshal(t *testing.T) {
	t.Parallel()

	body := `{"BatchItemResponse":[
		{"bId":"bid1","Vendor":{"Id":"9","DisplayName":"Acme"}},
		{"bId":"bid2","Fault":{"Error":[{"Message":"Object Not Found","code":"610"}],"type":"ValidationFault"}},
		{"bId":"bid3","QueryResponse":{"Customer":[{"Id":"1"}],"startPosition":1,"maxResults":1}}
	],"time":"2024-01-01T00:00:00.000-08:00"}`

	var resp qbo.BatchResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	require.Len(t, resp.Items, 3)

	vendor, err := resp.Item("bid1")
	require.NoError(t, err)
	require.NoError(t, vendor.Err())

	raw, ok := vendor.Entity(qbo.EntityVendor)
	require.True(t, ok)
	assert.JSONEq(t, `{"Id":"9","DisplayName":"Acme"}`, string(raw))

	faulted, err := resp.Item("bid2")
	require.NoError(t, err)
	assert.True(t, qbo.IsNotFound(faulted.Err()))

	queried, err := resp.Item("bid3")
	require.NoError(t, err)

	_, ok = queried.QueryResponse()
	assert.True(t, ok)

	_, err = resp.Item("missing")
	require.ErrorIs(t, err, qbo.ErrBatchItemNotFound)
}

func TestDecodeRows(t *testing.T) {
	t.Parallel()

	type customer struct {
		ID   string `json:"Id"`
		Name string `json:"DisplayName"`
	}

	result := &qbo.QueryResult{
		Entity: qbo.EntityCustomer,
		Rows: []json.RawMessage{
			json.RawMessage(`{"Id":"1","DisplayName":"A"}`),
			json.RawMessage(`{"Id":"2","DisplayName":"B"}`),
		},
	}

	customers, err := qbo.DecodeRows[customer](result)
	require.NoError(t, err)
	assert.Equal(t, []customer{{ID: "1", Name: "A"}, {ID: "2", Name: "B"}}, customers)

	result.Rows = append(result.Rows, json.RawMessage(`[`))
	_, err = qbo.DecodeRows[customer](result)
	require.Error(t, err)
}
