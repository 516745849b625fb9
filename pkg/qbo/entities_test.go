package qbo_test

import (
	"sort"
	"testing"

	"github.com/fivetwenty-io/qbo-client/pkg/qbo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityName_Path(t *testing.T) {
	t.Parallel()

	tests := []struct {
		entity qbo.EntityName
		path   string
	}{
		{entity: qbo.EntityInvoice, path: "invoice"},
		{entity: qbo.EntityJournalEntry, path: "journalentry"},
		{entity: qbo.EntityTaxService, path: "taxservice/taxcode"},
		{entity: qbo.EntityName("Widget"), path: "widget"},
	}

	for _, tt := range tests {
		t.Run(string(tt.entity), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.path, tt.entity.Path())
		})
	}
}

func TestEntityName_Capabilities(t *testing.T) {
	t.Parallel()

	assert.True(t, qbo.EntityInvoice.Voidable())
	assert.True(t, qbo.EntityInvoice.Deletable())
	assert.True(t, qbo.EntityInvoice.Emailable())
	assert.True(t, qbo.EntityInvoice.Printable())

	assert.False(t, qbo.EntityCustomer.Deletable())
	assert.False(t, qbo.EntityCustomer.Voidable())
	assert.False(t, qbo.EntityBill.Printable())
}

func TestEntityName_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, qbo.EntityCustomer.Validate())
	assert.True(t, qbo.EntityCustomer.IsKnown())

	err := qbo.EntityName("Widget").Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, qbo.ErrValidation)
	assert.Contains(t, err.Error(), "Widget")
}

func TestEntities(t *testing.T) {
	t.Parallel()

	entities := qbo.Entities()
	assert.Len(t, entities, 40)
	assert.True(t, sort.SliceIsSorted(entities, func(i, j int) bool { return entities[i] < entities[j] }))

	for _, entity := range entities {
		assert.True(t, entity.IsKnown())
		assert.NotEmpty(t, entity.Path())
	}
}

func TestReportName_Path(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "reports/ProfitAndLoss", qbo.ReportProfitAndLoss.Path())
	assert.Equal(t, "reports/ItemSales", qbo.ReportSalesByProduct.Path())
}
