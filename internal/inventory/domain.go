package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/datascoop/datascoop/internal/catalog"
	"github.com/datascoop/datascoop/internal/shared"
)

// Entry is the running ledger state of one flavor at one location.
// AvgCost is the weighted-average cost per ounce. It is zero until the first
// purchase and keeps its last value once stock runs out.
type Entry struct {
	LocationID int64           `json:"location_id"`
	FlavorID   int64           `json:"flavor_id"`
	Ounces     int64           `json:"ounces"`
	AvgCost    decimal.Decimal `json:"avg_cost"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Value is the carrying value of the stock on hand.
func (e Entry) Value() decimal.Decimal {
	return e.AvgCost.Mul(decimal.NewFromInt(e.Ounces))
}

// Purchase is an immutable restock event.
type Purchase struct {
	ID               int64           `json:"id"`
	Ref              uuid.UUID       `json:"ref"`
	LocationID       int64           `json:"location_id"`
	FlavorID         int64           `json:"flavor_id"`
	Date             time.Time       `json:"date"`
	Containers       int64           `json:"containers"`
	CostPerContainer decimal.Decimal `json:"cost_per_container"`
}

// Ounces is the volume added by the purchase.
func (p Purchase) Ounces() int64 {
	return p.Containers * catalog.OuncesPerContainer
}

// TotalCost is the amount paid for the purchase.
func (p Purchase) TotalCost() decimal.Decimal {
	return p.CostPerContainer.Mul(decimal.NewFromInt(p.Containers))
}

// Sale is an immutable sales line.
type Sale struct {
	ID          int64        `json:"id"`
	Ref         uuid.UUID    `json:"ref"`
	LocationID  int64        `json:"location_id"`
	FlavorID    int64        `json:"flavor_id"`
	Date        time.Time    `json:"date"`
	Size        catalog.Size `json:"size"`
	ContainerID int64        `json:"container_id"`
	Quantity    int64        `json:"quantity"`
}

// Ounces is the volume served.
func (s Sale) Ounces() int64 {
	return s.Size.Ounces() * s.Quantity
}

// Revenue is the menu price times quantity.
func (s Sale) Revenue() decimal.Decimal {
	return s.Size.Price().Mul(decimal.NewFromInt(s.Quantity))
}

// PurchaseInput describes a restock request. A nil Date means today.
type PurchaseInput struct {
	LocationID     int64
	FlavorID       int64
	Containers     int64
	Date           *time.Time
	IdempotencyKey string
}

// SaleInput describes a sales line. A nil Date means today.
type SaleInput struct {
	LocationID     int64
	FlavorID       int64
	Size           catalog.Size
	ContainerID    int64
	Quantity       int64
	Date           *time.Time
	IdempotencyKey string
}

// CheckoutResult reports which cart lines were committed. FailedLine is -1
// when every line went through.
type CheckoutResult struct {
	Sales      []Sale `json:"sales"`
	FailedLine int    `json:"failed_line"`
}

// InsufficientInventoryError is returned when a sale needs more ounces than
// the ledger holds. It matches shared.ErrInsufficientInventory.
type InsufficientInventoryError struct {
	LocationID int64
	FlavorID   int64
	Needed     int64
	OnHand     int64
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient inventory at location %d flavor %d: need %d oz, have %d oz", e.LocationID, e.FlavorID, e.Needed, e.OnHand)
}

// Is lets errors.Is match the shared sentinel.
func (e *InsufficientInventoryError) Is(target error) bool {
	return target == shared.ErrInsufficientInventory
}

// ErrEntryNotFound indicates a missing ledger row.
var ErrEntryNotFound = errors.New("inventory: ledger entry not found")
