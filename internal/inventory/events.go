package inventory

import "context"

// PurchaseRecordedEvent is emitted after a purchase commits.
type PurchaseRecordedEvent struct {
	Purchase Purchase
	Entry    Entry
}

// SaleRecordedEvent is emitted after a sale commits.
type SaleRecordedEvent struct {
	Sale  Sale
	Entry Entry
}

// SaleRejectedEvent is emitted when a sale fails validation or stock checks.
type SaleRejectedEvent struct {
	LocationID int64
	FlavorID   int64
	Err        error
}

// IntegrationHandler receives inventory events after commit.
type IntegrationHandler interface {
	HandlePurchaseRecorded(ctx context.Context, evt PurchaseRecordedEvent) error
	HandleSaleRecorded(ctx context.Context, evt SaleRecordedEvent) error
	HandleSaleRejected(ctx context.Context, evt SaleRejectedEvent)
}
