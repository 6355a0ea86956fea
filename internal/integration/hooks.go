// Package integration fans committed ledger events out to the report cache
// and the metrics registry.
package integration

import (
	"context"
	"errors"
	"log/slog"

	"github.com/datascoop/datascoop/internal/inventory"
	"github.com/datascoop/datascoop/internal/shared"
)

// Invalidator drops cached reports.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// InvalidatorFunc adapts a function to Invalidator.
type InvalidatorFunc func(ctx context.Context) error

// Invalidate calls f.
func (f InvalidatorFunc) Invalidate(ctx context.Context) error {
	return f(ctx)
}

// Recorder receives ledger counters.
type Recorder interface {
	ObservePurchase(locationID, ounces int64)
	ObserveSale(size string, ounces int64)
	ObserveRejectedSale(reason string)
}

// Hooks implements inventory.IntegrationHandler.
type Hooks struct {
	reports Invalidator
	metrics Recorder
	logger  *slog.Logger
}

// NewHooks constructs integration hooks. Either dependency may be nil.
func NewHooks(reports Invalidator, metrics Recorder, logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{reports: reports, metrics: metrics, logger: logger}
}

var _ inventory.IntegrationHandler = (*Hooks)(nil)

// HandlePurchaseRecorded invalidates reports and counts the purchase.
func (h *Hooks) HandlePurchaseRecorded(ctx context.Context, evt inventory.PurchaseRecordedEvent) error {
	if h.metrics != nil {
		h.metrics.ObservePurchase(evt.Purchase.LocationID, evt.Purchase.Ounces())
	}
	return h.invalidate(ctx)
}

// HandleSaleRecorded invalidates reports and counts the sale.
func (h *Hooks) HandleSaleRecorded(ctx context.Context, evt inventory.SaleRecordedEvent) error {
	if h.metrics != nil {
		h.metrics.ObserveSale(string(evt.Sale.Size), evt.Sale.Ounces())
	}
	return h.invalidate(ctx)
}

// HandleSaleRejected counts the rejection under a coarse reason label.
func (h *Hooks) HandleSaleRejected(ctx context.Context, evt inventory.SaleRejectedEvent) {
	if h.metrics == nil {
		return
	}
	h.metrics.ObserveRejectedSale(RejectionReason(evt.Err))
}

// HandleCatalogChanged invalidates reports after a catalog change.
func (h *Hooks) HandleCatalogChanged(ctx context.Context) error {
	return h.invalidate(ctx)
}

func (h *Hooks) invalidate(ctx context.Context) error {
	if h.reports == nil {
		return nil
	}
	if err := h.reports.Invalidate(ctx); err != nil {
		h.logger.Error("invalidate report cache", slog.Any("error", err))
		return err
	}
	return nil
}

// RejectionReason maps a sale error onto a metric label.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, shared.ErrInsufficientInventory):
		return "insufficient_inventory"
	case errors.Is(err, shared.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, shared.ErrNotFound):
		return "not_found"
	case errors.Is(err, shared.ErrIdempotencyConflict):
		return "duplicate"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
