// Package reports aggregates the event log and the ledger into monthly
// income statements and sales/inventory summaries. It never mutates state.
package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

// Statement is one income statement column.
type Statement struct {
	LocationID        int64           `json:"location_id"`
	LocationName      string          `json:"location_name"`
	Revenue           decimal.Decimal `json:"revenue"`
	COGSIceCream      decimal.Decimal `json:"cogs_ice_cream"`
	COGSContainers    decimal.Decimal `json:"cogs_containers"`
	COGSNapkins       decimal.Decimal `json:"cogs_napkins"`
	COGSTotal         decimal.Decimal `json:"cogs_total"`
	GrossProfit       decimal.Decimal `json:"gross_profit"`
	OperatingExpenses decimal.Decimal `json:"operating_expenses"`
	OperatingIncome   decimal.Decimal `json:"operating_income"`
	NetIncome         decimal.Decimal `json:"net_income"`
}

// Add returns the field-wise sum of s and o. Identity fields come from s.
func (s Statement) Add(o Statement) Statement {
	s.Revenue = s.Revenue.Add(o.Revenue)
	s.COGSIceCream = s.COGSIceCream.Add(o.COGSIceCream)
	s.COGSContainers = s.COGSContainers.Add(o.COGSContainers)
	s.COGSNapkins = s.COGSNapkins.Add(o.COGSNapkins)
	s.COGSTotal = s.COGSTotal.Add(o.COGSTotal)
	s.GrossProfit = s.GrossProfit.Add(o.GrossProfit)
	s.OperatingExpenses = s.OperatingExpenses.Add(o.OperatingExpenses)
	s.OperatingIncome = s.OperatingIncome.Add(o.OperatingIncome)
	s.NetIncome = s.NetIncome.Add(o.NetIncome)
	return s
}

// IncomeStatementReport holds per-location statements ordered by location
// name and the company-wide total.
type IncomeStatementReport struct {
	Year      int         `json:"year"`
	Month     int         `json:"month"`
	From      time.Time   `json:"from"`
	To        time.Time   `json:"to"`
	Locations []Statement `json:"locations"`
	Company   Statement   `json:"company"`
}

// FlavorSalesRow is the volume of one flavor sold at one location.
type FlavorSalesRow struct {
	LocationID       int64           `json:"location_id"`
	LocationName     string          `json:"location_name"`
	FlavorID         int64           `json:"flavor_id"`
	FlavorName       string          `json:"flavor_name"`
	OuncesSold       int64           `json:"ounces_sold"`
	ContainersApprox decimal.Decimal `json:"containers_approx"`
}

// InventoryLevelRow is a snapshot of one ledger entry.
type InventoryLevelRow struct {
	LocationID       int64           `json:"location_id"`
	LocationName     string          `json:"location_name"`
	FlavorID         int64           `json:"flavor_id"`
	FlavorName       string          `json:"flavor_name"`
	Ounces           int64           `json:"ounces"`
	ContainersApprox decimal.Decimal `json:"containers_approx"`
	AvgCost          decimal.Decimal `json:"avg_cost"`
	Value            decimal.Decimal `json:"value"`
}

// LocationValuation is the carrying value of all stock at a location.
type LocationValuation struct {
	LocationID   int64           `json:"location_id"`
	LocationName string          `json:"location_name"`
	Ounces       int64           `json:"ounces"`
	Value        decimal.Decimal `json:"value"`
}

// CompanyName labels the company-wide statement.
const CompanyName = "Company"
