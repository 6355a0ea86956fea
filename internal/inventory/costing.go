package inventory

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/datascoop/datascoop/internal/catalog"
	"github.com/datascoop/datascoop/internal/shared"
)

// ApplyPurchase re-bases the weighted-average cost over the combined stock:
// new_avg = (old_qty*old_avg + containers*cost) / (old_qty + containers*640).
func ApplyPurchase(e Entry, containers int64, costPerContainer decimal.Decimal) (Entry, error) {
	if containers <= 0 {
		return e, fmt.Errorf("%w: containers must be positive, got %d", shared.ErrInvalidArgument, containers)
	}
	if costPerContainer.IsNegative() {
		return e, fmt.Errorf("%w: cost per container must be >= 0", shared.ErrInvalidArgument)
	}
	addedOunces := containers * catalog.OuncesPerContainer
	addedCost := costPerContainer.Mul(decimal.NewFromInt(containers))
	newOunces := e.Ounces + addedOunces

	avg := decimal.Zero
	if newOunces > 0 {
		avg = e.Value().Add(addedCost).Div(decimal.NewFromInt(newOunces))
	}
	e.Ounces = newOunces
	e.AvgCost = avg
	return e, nil
}

// ApplySale depletes stock for quantity servings of size. AvgCost is left
// untouched, including when the entry is drained to zero.
func ApplySale(e Entry, size catalog.Size, quantity int64) (Entry, error) {
	if !size.Valid() {
		return e, fmt.Errorf("%w: unknown size %q", shared.ErrInvalidArgument, size)
	}
	if quantity <= 0 {
		return e, fmt.Errorf("%w: quantity must be positive, got %d", shared.ErrInvalidArgument, quantity)
	}
	needed := size.Ounces() * quantity
	if e.Ounces < needed {
		return e, &InsufficientInventoryError{LocationID: e.LocationID, FlavorID: e.FlavorID, Needed: needed, OnHand: e.Ounces}
	}
	e.Ounces -= needed
	return e, nil
}
