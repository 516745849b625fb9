package client_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/fivetwenty-io/qbo-client/pkg/qbo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityClient(t *testing.T) {
	t.Parallel()

	server := &pagedInvoices{total: 2}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case companyPath + "query":
			server.handler(t)(w, r)
		case companyPath + "invoice/1":
			writeJSON(w, map[string]any{"Invoice": map[string]any{"Id": "1", "SyncToken": "0"}})
		case companyPath + "invoice":
			writeJSON(w, map[string]any{"Invoice": map[string]any{"Id": "2", "SyncToken": "0"}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	invoices := c.Entity(qbo.EntityInvoice)
	assert.Equal(t, qbo.EntityInvoice, invoices.Name())

	ctx := context.Background()

	got, err := invoices.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "1", got.ID())

	created, err := invoices.Create(ctx, map[string]any{"Line": []any{}})
	require.NoError(t, err)
	assert.Equal(t, "2", created.ID())

	found, err := invoices.Find(ctx, qbo.QueryData{QueryBase: qbo.QueryBase{Limit: qbo.Int(1)}})
	require.NoError(t, err)
	assert.Len(t, found.Rows, 1)

	all, err := invoices.FindAll(ctx, qbo.QueryData{QueryBase: qbo.QueryBase{Limit: qbo.Int(1)}})
	require.NoError(t, err)
	assert.Len(t, all.Rows, 2)

	_, err = c.Entity(qbo.EntityCustomer).Void(ctx, "1", "0")
	require.ErrorIs(t, err, qbo.ErrValidation)
}
