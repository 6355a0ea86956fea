package reports

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/datascoop/datascoop/internal/catalog"
	"github.com/datascoop/datascoop/internal/inventory"
)

// BuildStatement computes one location's statement from the sales dated in
// the period. avgCost maps flavor id to the ledger's current average cost
// per ounce at that location.
func BuildStatement(loc catalog.Location, sales []inventory.Sale, avgCost map[int64]decimal.Decimal, containers map[int64]catalog.Container, expenses catalog.FixedExpenses) Statement {
	st := Statement{
		LocationID:   loc.ID,
		LocationName: loc.Name,
		Revenue:      decimal.Zero,
	}
	ouncesByFlavor := make(map[int64]int64)
	var servings int64
	containerCost := decimal.Zero
	for _, sl := range sales {
		if sl.LocationID != loc.ID {
			continue
		}
		st.Revenue = st.Revenue.Add(sl.Revenue())
		ouncesByFlavor[sl.FlavorID] += sl.Ounces()
		servings += sl.Quantity
		if c, ok := containers[sl.ContainerID]; ok {
			containerCost = containerCost.Add(c.UnitCost().Mul(decimal.NewFromInt(sl.Quantity)))
		}
	}

	iceCream := decimal.Zero
	for flavorID, oz := range ouncesByFlavor {
		iceCream = iceCream.Add(avgCost[flavorID].Mul(decimal.NewFromInt(oz)))
	}
	st.COGSIceCream = iceCream
	st.COGSContainers = containerCost
	st.COGSNapkins = catalog.NapkinCostPerServing.Mul(decimal.NewFromInt(servings))
	st.COGSTotal = st.COGSIceCream.Add(st.COGSContainers).Add(st.COGSNapkins)
	st.GrossProfit = st.Revenue.Sub(st.COGSTotal)
	st.OperatingExpenses = expenses.Total()
	st.OperatingIncome = st.GrossProfit.Sub(st.OperatingExpenses)
	st.NetIncome = st.OperatingIncome
	return st
}

// BuildIncomeStatement assembles per-location statements and their sum.
// locations should already be ordered by name.
func BuildIncomeStatement(year, month int, from, to time.Time, locations []catalog.Location, sales []inventory.Sale, entries []inventory.Entry, containers []catalog.Container, expenses catalog.FixedExpenses) IncomeStatementReport {
	costs := avgCostIndex(entries)
	byID := containerIndex(containers)
	report := IncomeStatementReport{Year: year, Month: month, From: from, To: to, Locations: make([]Statement, 0, len(locations))}
	for _, loc := range locations {
		report.Locations = append(report.Locations, BuildStatement(loc, sales, costs[loc.ID], byID, expenses))
	}
	report.Company = SumStatements(report.Locations)
	return report
}

// SumStatements is the field-wise sum labelled as the company.
func SumStatements(statements []Statement) Statement {
	total := Statement{
		LocationName:      CompanyName,
		Revenue:           decimal.Zero,
		COGSIceCream:      decimal.Zero,
		COGSContainers:    decimal.Zero,
		COGSNapkins:       decimal.Zero,
		COGSTotal:         decimal.Zero,
		GrossProfit:       decimal.Zero,
		OperatingExpenses: decimal.Zero,
		OperatingIncome:   decimal.Zero,
		NetIncome:         decimal.Zero,
	}
	for _, st := range statements {
		total = total.Add(st)
	}
	return total
}

// BuildFlavorSales groups sales by location and flavor.
func BuildFlavorSales(locations []catalog.Location, flavors []catalog.Flavor, sales []inventory.Sale) []FlavorSalesRow {
	locNames := locationNames(locations)
	flavorNames := flavorNames(flavors)
	type pair struct{ loc, flavor int64 }
	totals := make(map[pair]int64)
	for _, sl := range sales {
		totals[pair{sl.LocationID, sl.FlavorID}] += sl.Ounces()
	}
	rows := make([]FlavorSalesRow, 0, len(totals))
	for k, oz := range totals {
		rows = append(rows, FlavorSalesRow{
			LocationID:       k.loc,
			LocationName:     locNames[k.loc],
			FlavorID:         k.flavor,
			FlavorName:       flavorNames[k.flavor],
			OuncesSold:       oz,
			ContainersApprox: ContainersApprox(oz),
		})
	}
	slices.SortFunc(rows, func(a, b FlavorSalesRow) int {
		return cmp.Or(
			cmp.Compare(a.LocationName, b.LocationName),
			cmp.Compare(a.FlavorName, b.FlavorName),
			cmp.Compare(a.FlavorID, b.FlavorID),
		)
	})
	return rows
}

// BuildInventoryLevels lists every ledger entry with names resolved.
func BuildInventoryLevels(locations []catalog.Location, flavors []catalog.Flavor, entries []inventory.Entry) []InventoryLevelRow {
	locNames := locationNames(locations)
	flavorNames := flavorNames(flavors)
	rows := make([]InventoryLevelRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, InventoryLevelRow{
			LocationID:       e.LocationID,
			LocationName:     locNames[e.LocationID],
			FlavorID:         e.FlavorID,
			FlavorName:       flavorNames[e.FlavorID],
			Ounces:           e.Ounces,
			ContainersApprox: ContainersApprox(e.Ounces),
			AvgCost:          e.AvgCost,
			Value:            e.Value(),
		})
	}
	slices.SortFunc(rows, func(a, b InventoryLevelRow) int {
		return cmp.Or(
			cmp.Compare(a.LocationName, b.LocationName),
			cmp.Compare(a.FlavorName, b.FlavorName),
		)
	})
	return rows
}

// BuildValuation sums ledger value per location.
func BuildValuation(locations []catalog.Location, entries []inventory.Entry) []LocationValuation {
	index := make(map[int64]int, len(locations))
	out := make([]LocationValuation, len(locations))
	for i, loc := range locations {
		index[loc.ID] = i
		out[i] = LocationValuation{LocationID: loc.ID, LocationName: loc.Name, Value: decimal.Zero}
	}
	for _, e := range entries {
		i, ok := index[e.LocationID]
		if !ok {
			continue
		}
		out[i].Ounces += e.Ounces
		out[i].Value = out[i].Value.Add(e.Value())
	}
	return out
}

// ContainersApprox converts ounces to containers rounded to 2 places.
func ContainersApprox(ounces int64) decimal.Decimal {
	return decimal.NewFromInt(ounces).Div(decimal.NewFromInt(catalog.OuncesPerContainer)).Round(2)
}

func avgCostIndex(entries []inventory.Entry) map[int64]map[int64]decimal.Decimal {
	out := make(map[int64]map[int64]decimal.Decimal)
	for _, e := range entries {
		if out[e.LocationID] == nil {
			out[e.LocationID] = make(map[int64]decimal.Decimal)
		}
		out[e.LocationID][e.FlavorID] = e.AvgCost
	}
	return out
}

func containerIndex(containers []catalog.Container) map[int64]catalog.Container {
	out := make(map[int64]catalog.Container, len(containers))
	for _, c := range containers {
		out[c.ID] = c
	}
	return out
}

func locationNames(locations []catalog.Location) map[int64]string {
	out := make(map[int64]string, len(locations))
	for _, l := range locations {
		out[l.ID] = l.Name
	}
	return out
}

func flavorNames(flavors []catalog.Flavor) map[int64]string {
	out := make(map[int64]string, len(flavors))
	for _, f := range flavors {
		out[f.ID] = f.Name
	}
	return out
}
