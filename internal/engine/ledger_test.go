package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aethra/krishi/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ledgerInput(date string, entryType models.EntryType, amount, category string) LedgerInput {
	d, _ := models.ParseDate(date)
	return LedgerInput{
		Date:        d,
		EntryType:   entryType,
		Amount:      decimal.RequireFromString(amount),
		Description: category + " " + amount,
		Category:    category,
	}
}

func TestLedgerSummary(t *testing.T) {
	env := newTestEnv(t)
	ledger := NewLedgerEngine(env.db, nopLog())
	ctx := context.Background()
	p := env.signup(t, "farmer")
	other := env.signup(t, "other")

	_, err := ledger.Create(ctx, p, ledgerInput("2024-06-01", models.EntryIncome, "500.00", "crop_sale"))
	require.NoError(t, err)
	_, err = ledger.Create(ctx, p, ledgerInput("2024-06-02", models.EntryExpense, "120.00", "seeds"))
	require.NoError(t, err)
	_, err = ledger.Create(ctx, other, ledgerInput("2024-06-02", models.EntryIncome, "9999.00", "loan"))
	require.NoError(t, err)

	summary, err := ledger.Summary(ctx, p, DateRange{})
	require.NoError(t, err)
	assert.Equal(t, "380.00", summary.Net.StringFixed(2))
	assert.Equal(t, "500.00", summary.TotalIncome.StringFixed(2))
	assert.Equal(t, "120.00", summary.TotalExpense.StringFixed(2))
	assert.Equal(t, 2, summary.EntryCount)
	require.Len(t, summary.ByCategory, 2)
	assert.Equal(t, "crop_sale", summary.ByCategory[0].Category)
	assert.Equal(t, "Crop Sale", summary.ByCategory[0].Label)

	raw, err := json.Marshal(summary)
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "380.00", body["net"])
	assert.Equal(t, "500.00", body["total_income"])
	categories := body["by_category"].([]interface{})
	assert.Equal(t, "120.00", categories[1].(map[string]interface{})["total"])

	from, _ := models.ParseDate("2024-06-02")
	summary, err = ledger.Summary(ctx, p, DateRange{From: &from})
	require.NoError(t, err)
	assert.Equal(t, "-120.00", summary.Net.StringFixed(2))

	to, _ := models.ParseDate("2024-06-01")
	_, err = ledger.Summary(ctx, p, DateRange{From: &from, To: &to})
	assert.Error(t, err)
}

func TestLedger_ListAndUpdate(t *testing.T) {
	env := newTestEnv(t)
	ledger := NewLedgerEngine(env.db, nopLog())
	ctx := context.Background()
	p := env.signup(t, "farmer")

	first, err := ledger.Create(ctx, p, ledgerInput("2024-05-01", models.EntryExpense, "40.50", "fuel"))
	require.NoError(t, err)
	_, err = ledger.Create(ctx, p, ledgerInput("2024-05-03", models.EntryIncome, "800", "dairy_products"))
	require.NoError(t, err)

	page, err := ledger.List(ctx, p, LedgerFilter{})
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "dairy_products", page.Data[0].Category)

	page, err = ledger.List(ctx, p, LedgerFilter{EntryType: models.EntryExpense})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)

	_, err = ledger.Update(ctx, p, first.ID, ledgerInput("2024-05-01", models.EntryExpense, "40.50", "crop_sale"))
	assert.Error(t, err, "income category on an expense")

	updated, err := ledger.Update(ctx, p, first.ID, ledgerInput("2024-05-01", models.EntryExpense, "45.00", "fuel"))
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(decimal.RequireFromString("45")))

	stranger := env.signup(t, "stranger")
	_, err = ledger.Get(ctx, stranger, first.ID)
	assert.Error(t, err)
}
