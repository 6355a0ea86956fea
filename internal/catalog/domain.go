// Package catalog holds the reference data of the shop: flavors, containers,
// locations and the fixed tables for serving sizes and monthly expenses.
package catalog

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/datascoop/datascoop/internal/shared"
)

// OuncesPerContainer is the volume of one bulk ice-cream container (5 gallons).
const OuncesPerContainer int64 = 640

// NapkinCostPerServing is $20 per 10,000 napkins, two napkins per serving.
var NapkinCostPerServing = decimal.RequireFromString("0.004")

// Flavor is an ice-cream flavor with its replenishment cost per container.
type Flavor struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	CostPerContainer decimal.Decimal `json:"cost_per_container"`
}

// Container is a serving container (cone, dish) bought in packs.
type Container struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	PricePerPack decimal.Decimal `json:"price_per_pack"`
	UnitsPerPack int64           `json:"units_per_pack"`
}

// UnitCost is the packaging cost of a single serving.
func (c Container) UnitCost() decimal.Decimal {
	if c.UnitsPerPack <= 0 {
		return decimal.Zero
	}
	return c.PricePerPack.Div(decimal.NewFromInt(c.UnitsPerPack))
}

// Location is a shop.
type Location struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Size enumerates the serving sizes on the menu.
type Size string

const (
	SizeKiddie Size = "Kiddie"
	SizeSmall  Size = "Small"
	SizeMedium Size = "Medium"
	SizeLarge  Size = "Large"
)

// Sizes lists every serving size in menu order.
var Sizes = []Size{SizeKiddie, SizeSmall, SizeMedium, SizeLarge}

// ParseSize resolves a size name case-insensitively.
func ParseSize(value string) (Size, error) {
	trimmed := strings.TrimSpace(value)
	for _, s := range Sizes {
		if strings.EqualFold(string(s), trimmed) {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: unknown size %q", shared.ErrInvalidArgument, value)
}

// Valid reports whether s is one of Sizes.
func (s Size) Valid() bool {
	return s.Ounces() > 0
}

// Ounces is the serving volume.
func (s Size) Ounces() int64 {
	switch s {
	case SizeKiddie:
		return 4
	case SizeSmall:
		return 8
	case SizeMedium:
		return 12
	case SizeLarge:
		return 16
	}
	return 0
}

// Price is the menu price, identical for every container type.
func (s Size) Price() decimal.Decimal {
	switch s {
	case SizeKiddie:
		return decimal.RequireFromString("3.00")
	case SizeSmall:
		return decimal.RequireFromString("3.50")
	case SizeMedium:
		return decimal.RequireFromString("4.00")
	case SizeLarge:
		return decimal.RequireFromString("4.50")
	}
	return decimal.Zero
}

// ExpenseCategory enumerates fixed monthly operating expenses.
type ExpenseCategory string

const (
	ExpenseRent           ExpenseCategory = "rent"
	ExpenseUtilities      ExpenseCategory = "utilities"
	ExpenseLabor          ExpenseCategory = "labor"
	ExpenseEquipmentLease ExpenseCategory = "equipment_lease"
)

// ExpenseCategories lists every category in reporting order.
var ExpenseCategories = []ExpenseCategory{ExpenseRent, ExpenseUtilities, ExpenseLabor, ExpenseEquipmentLease}

// FixedExpenses maps each category to its monthly amount per location.
type FixedExpenses map[ExpenseCategory]decimal.Decimal

// DefaultFixedExpenses returns the standard monthly budget.
func DefaultFixedExpenses() FixedExpenses {
	return FixedExpenses{
		ExpenseRent:           decimal.NewFromInt(1000),
		ExpenseUtilities:      decimal.NewFromInt(250),
		ExpenseLabor:          decimal.NewFromInt(15000),
		ExpenseEquipmentLease: decimal.NewFromInt(2000),
	}
}

// Amount returns the configured amount, zero when absent.
func (f FixedExpenses) Amount(c ExpenseCategory) decimal.Decimal {
	if v, ok := f[c]; ok {
		return v
	}
	return decimal.Zero
}

// Total sums every category.
func (f FixedExpenses) Total() decimal.Decimal {
	total := decimal.Zero
	for _, c := range ExpenseCategories {
		total = total.Add(f.Amount(c))
	}
	return total
}

// DefaultFlavors is the catalog seeded into an empty store.
func DefaultFlavors() []Flavor {
	return []Flavor{
		{Name: "Vanilla", CostPerContainer: decimal.RequireFromString("2.00")},
		{Name: "Chocolate", CostPerContainer: decimal.RequireFromString("2.00")},
		{Name: "Neapolitan", CostPerContainer: decimal.RequireFromString("2.50")},
		{Name: "Cookies & Cream", CostPerContainer: decimal.RequireFromString("3.00")},
		{Name: "Cookie Dough", CostPerContainer: decimal.RequireFromString("3.00")},
	}
}

// DefaultContainers is the container list seeded into an empty store.
func DefaultContainers() []Container {
	return []Container{
		{Name: "Standard Cone", PricePerPack: decimal.RequireFromString("5.00"), UnitsPerPack: 100},
		{Name: "Waffle Cone", PricePerPack: decimal.RequireFromString("6.00"), UnitsPerPack: 100},
		{Name: "Dish w/ Spoon", PricePerPack: decimal.RequireFromString("4.50"), UnitsPerPack: 100},
	}
}
