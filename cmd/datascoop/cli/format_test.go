package cli

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/datascoop/datascoop/internal/reports"
)

func TestMoney(t *testing.T) {
	f := NewFormatter(language.English)
	require.Equal(t, "$18,250.00", f.Money(decimal.NewFromInt(18250)))
	require.Equal(t, "-$18,243.05", f.Money(decimal.RequireFromString("-18243.049")))
	require.Equal(t, "$0.00", f.Money(decimal.Zero))
	require.Equal(t, "1,280", f.Count(1280))
}

func TestIncomeStatementLayout(t *testing.T) {
	f := NewFormatter(language.Und)
	st := reports.Statement{
		LocationName:      "Main",
		Revenue:           decimal.RequireFromString("35"),
		COGSNapkins:       decimal.RequireFromString("0.04"),
		OperatingExpenses: decimal.NewFromInt(18250),
		NetIncome:         decimal.RequireFromString("-18215.04"),
	}
	var buf bytes.Buffer
	require.NoError(t, f.IncomeStatement(&buf, reports.IncomeStatementReport{Year: 2024, Month: 5, Locations: []reports.Statement{st}, Company: st}))

	out := buf.String()
	require.Contains(t, out, "Income Statement 2024-05")
	require.Contains(t, out, "Location: Main")
	require.Contains(t, out, "Company Totals:")
	require.Contains(t, out, "$18,250.00")
	require.Contains(t, out, "-$18,215.04")
}

func TestEmptyTables(t *testing.T) {
	f := NewFormatter(language.English)
	var buf bytes.Buffer
	require.NoError(t, f.FlavorSales(&buf, 2024, 2, nil))
	require.Equal(t, "No sales for 2024-02.\n", buf.String())

	buf.Reset()
	require.NoError(t, f.InventoryLevels(&buf, nil))
	require.Equal(t, "No inventory records found.\n", buf.String())
}

func TestInventoryLevelsRow(t *testing.T) {
	f := NewFormatter(language.English)
	var buf bytes.Buffer
	require.NoError(t, f.InventoryLevels(&buf, []reports.InventoryLevelRow{{
		LocationName:     "Main",
		FlavorName:       "Vanilla",
		Ounces:           1280,
		ContainersApprox: decimal.NewFromInt(2),
		AvgCost:          decimal.RequireFromString("0.003125"),
		Value:            decimal.NewFromInt(4),
	}}))
	require.Contains(t, buf.String(), "1,280")
	require.Contains(t, buf.String(), "$0.003125")
	require.Contains(t, buf.String(), "$4.00")
}
