package bigquery

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestRowFromTransaction(t *testing.T) {
	created := time.Date(2026, 5, 2, 9, 30, 0, 0, time.FixedZone("UTC+3", 3*3600))
	mirrored := time.Date(2026, 5, 2, 6, 31, 0, 0, time.UTC)
	tx := domain.Transaction{
		ID:        42,
		OwnerID:   7,
		Kind:      domain.KindExpense,
		Amount:    decimal.RequireFromString("12.50"),
		Currency:  "EUR",
		Category:  "food",
		Date:      civil.Date{Year: 2026, Month: 5, Day: 2},
		RawText:   "lunch 12.5",
		CreatedAt: created,
	}

	row := RowFromTransaction(tx, mirrored)

	assert.Equal(t, int64(7), row.OwnerID)
	assert.Equal(t, int64(42), row.TransactionID)
	assert.Equal(t, "expense", row.Kind)
	assert.Equal(t, "25/2", row.Amount.String())
	assert.False(t, row.Description.Valid)
	assert.Equal(t, bigquery.NullString{StringVal: "lunch 12.5", Valid: true}, row.RawText)
	assert.Equal(t, time.UTC, row.CreatedTS.Location())
	assert.Equal(t, fmt.Sprintf("7-42-%d", mirrored.UnixNano()), row.InsertID())
}

func TestSchemaInference(t *testing.T) {
	schema, err := bigquery.InferSchema(TransactionRow{})
	require.NoError(t, err)

	types := map[string]bigquery.FieldType{}
	for _, f := range schema {
		types[f.Name] = f.Type
	}
	assert.Equal(t, bigquery.NumericFieldType, types["amount"])
	assert.Equal(t, bigquery.DateFieldType, types["transaction_date"])
	assert.Equal(t, bigquery.TimestampFieldType, types["mirrored_ts"])
	assert.Equal(t, bigquery.StringFieldType, types["description"])
}

func TestRatToDecimal(t *testing.T) {
	d, err := ratToDecimal(decimal.RequireFromString("19.75").Rat())
	require.NoError(t, err)
	assert.Equal(t, "19.75", d.StringFixed(2))

	d, err = ratToDecimal(nil)
	require.NoError(t, err)
	assert.True(t, d.IsZero())
}

func TestCompareTotals(t *testing.T) {
	local := []domain.CategoryTotal{
		{Category: "food", Amount: decimal.RequireFromString("19.75")},
		{Category: "transport", Amount: decimal.RequireFromString("40")},
		{Category: "rent", Amount: decimal.RequireFromString("900")},
	}
	warehouse := []domain.CategoryTotal{
		{Category: "food", Amount: decimal.RequireFromString("19.750")},
		{Category: "transport", Amount: decimal.RequireFromString("35")},
		{Category: "gifts", Amount: decimal.RequireFromString("10")},
	}

	got := CompareTotals(local, warehouse)
	require.Len(t, got, 3)
	assert.Equal(t, "gifts", got[0].Category)
	assert.True(t, got[0].Local.IsZero())
	assert.Equal(t, "rent", got[1].Category)
	assert.True(t, got[1].Warehouse.IsZero())
	assert.Equal(t, "transport", got[2].Category)

	assert.Empty(t, CompareTotals(local, local))
}

func TestTableRef(t *testing.T) {
	assert.Equal(t, "`proj.finance.transactions`", tableRef("proj", "finance", "transactions"))
}

func TestErrorClassification(t *testing.T) {
	notFound := fmt.Errorf("metadata: %w", &googleapi.Error{Code: http.StatusNotFound})
	conflict := &googleapi.Error{Code: http.StatusConflict}

	assert.True(t, isNotFound(notFound))
	assert.False(t, isNotFound(conflict))
	assert.True(t, isAlreadyExists(conflict))
	assert.False(t, isNotFound(errors.New("boom")))
}
