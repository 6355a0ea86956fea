// Package cli renders reports for the terminal.
package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/datascoop/datascoop/internal/reports"
)

// Formatter writes reports with locale-aware number formatting.
type Formatter struct {
	printer *message.Printer
}

// NewFormatter returns a Formatter for tag. An empty tag means English.
func NewFormatter(tag language.Tag) *Formatter {
	if tag == language.Und {
		tag = language.English
	}
	return &Formatter{printer: message.NewPrinter(tag)}
}

// Money renders a currency amount with two decimals and grouping.
func (f *Formatter) Money(d decimal.Decimal) string {
	amount := d.Round(2).Abs().InexactFloat64()
	s := f.printer.Sprint(number.Decimal(amount, number.Scale(2)))
	if d.Round(2).IsNegative() {
		return "-$" + s
	}
	return "$" + s
}

// Count renders an integer with grouping.
func (f *Formatter) Count(v int64) string {
	return f.printer.Sprint(number.Decimal(v))
}

// IncomeStatement writes one block per location followed by company totals.
func (f *Formatter) IncomeStatement(w io.Writer, report reports.IncomeStatementReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Income Statement %04d-%02d\n\n", report.Year, report.Month)
	for _, st := range report.Locations {
		fmt.Fprintf(tw, "Location: %s\n", st.LocationName)
		f.statementLines(tw, st)
		fmt.Fprintln(tw)
	}
	fmt.Fprintln(tw, "Company Totals:")
	f.statementLines(tw, report.Company)
	return tw.Flush()
}

func (f *Formatter) statementLines(w io.Writer, st reports.Statement) {
	lines := []struct {
		label string
		value decimal.Decimal
	}{
		{"Revenue", st.Revenue},
		{"COGS - Ice Cream", st.COGSIceCream},
		{"COGS - Containers", st.COGSContainers},
		{"COGS - Napkins", st.COGSNapkins},
		{"COGS - Total", st.COGSTotal},
		{"Gross Profit", st.GrossProfit},
		{"Operating Expenses", st.OperatingExpenses},
		{"Operating Income", st.OperatingIncome},
		{"Net Income", st.NetIncome},
	}
	for _, l := range lines {
		fmt.Fprintf(w, "  %s:\t%s\t\n", l.label, f.Money(l.value))
	}
}

// FlavorSales writes the per-location flavor volume table.
func (f *Formatter) FlavorSales(w io.Writer, year, month int, rows []reports.FlavorSalesRow) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintf(w, "No sales for %04d-%02d.\n", year, month)
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Location\tFlavor\tOunces Sold\tContainers (approx)")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.LocationName, r.FlavorName, f.Count(r.OuncesSold), r.ContainersApprox.StringFixed(2))
	}
	return tw.Flush()
}

// InventoryLevels writes the ledger snapshot table.
func (f *Formatter) InventoryLevels(w io.Writer, rows []reports.InventoryLevelRow) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No inventory records found.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Location\tFlavor\tOunces on Hand\tContainers (approx)\tAvg Cost / oz\tValue")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t$%s\t%s\n",
			r.LocationName, r.FlavorName, f.Count(r.Ounces), r.ContainersApprox.StringFixed(2),
			r.AvgCost.StringFixed(6), f.Money(r.Value))
	}
	return tw.Flush()
}
