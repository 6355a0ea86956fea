// Package api exposes the catalog, ledger and reports as a JSON HTTP API.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/datascoop/datascoop/internal/catalog"
	"github.com/datascoop/datascoop/internal/inventory"
	"github.com/datascoop/datascoop/internal/platform/httpx"
	"github.com/datascoop/datascoop/internal/reports"
	"github.com/datascoop/datascoop/internal/shared"
)

// CatalogService is the catalog surface used by the API.
type CatalogService interface {
	AddLocation(ctx context.Context, name string) (catalog.Location, error)
	AddFlavor(ctx context.Context, name string, cost decimal.Decimal) (catalog.Flavor, error)
	UpdateFlavorCost(ctx context.Context, id int64, cost decimal.Decimal) (catalog.Flavor, error)
	ListLocations(ctx context.Context) ([]catalog.Location, error)
	ListFlavors(ctx context.Context) ([]catalog.Flavor, error)
	ListContainers(ctx context.Context) ([]catalog.Container, error)
}

// InventoryService is the ledger surface used by the API.
type InventoryService interface {
	RecordPurchase(ctx context.Context, input inventory.PurchaseInput) (inventory.Purchase, error)
	RecordSale(ctx context.Context, input inventory.SaleInput) (inventory.Sale, error)
	Checkout(ctx context.Context, lines []inventory.SaleInput) (inventory.CheckoutResult, error)
	Entry(ctx context.Context, locationID, flavorID int64) (inventory.Entry, error)
}

// ReportService is the reporting surface used by the API.
type ReportService interface {
	IncomeStatement(ctx context.Context, year, month int) (reports.IncomeStatementReport, error)
	FlavorSales(ctx context.Context, year, month int) ([]reports.FlavorSalesRow, error)
	InventoryLevels(ctx context.Context) ([]reports.InventoryLevelRow, error)
}

// IdempotencyHeader carries a client-chosen retry key.
const IdempotencyHeader = "Idempotency-Key"

// Handler wires HTTP endpoints.
type Handler struct {
	logger    *slog.Logger
	catalog   CatalogService
	inventory InventoryService
	reports   ReportService
	validate  *validator.Validate
}

// NewHandler constructs the API handler.
func NewHandler(logger *slog.Logger, cat CatalogService, inv InventoryService, rep ReportService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, catalog: cat, inventory: inv, reports: rep, validate: validator.New()}
}

// MountRoutes registers API routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/locations", h.listLocations)
	r.Post("/locations", h.createLocation)
	r.Get("/flavors", h.listFlavors)
	r.Post("/flavors", h.createFlavor)
	r.Put("/flavors/{id}/cost", h.updateFlavorCost)
	r.Get("/containers", h.listContainers)

	r.Post("/purchases", h.recordPurchase)
	r.Post("/sales", h.recordSale)
	r.Post("/checkout", h.checkout)
	r.Get("/inventory/{locationID}/{flavorID}", h.getEntry)

	r.Route("/reports", func(r chi.Router) {
		r.Get("/income-statement", h.incomeStatement)
		r.Get("/flavor-sales", h.flavorSales)
		r.Get("/inventory", h.inventoryLevels)
	})
}

type locationRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

type flavorRequest struct {
	Name             string          `json:"name" validate:"required,max=120"`
	CostPerContainer decimal.Decimal `json:"cost_per_container"`
}

type costRequest struct {
	CostPerContainer decimal.Decimal `json:"cost_per_container"`
}

type purchaseRequest struct {
	LocationID int64  `json:"location_id" validate:"required,gt=0"`
	FlavorID   int64  `json:"flavor_id" validate:"required,gt=0"`
	Containers int64  `json:"containers" validate:"required,gt=0"`
	Date       string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type saleRequest struct {
	LocationID  int64  `json:"location_id" validate:"required,gt=0"`
	FlavorID    int64  `json:"flavor_id" validate:"required,gt=0"`
	Size        string `json:"size" validate:"required"`
	ContainerID int64  `json:"container_id" validate:"required,gt=0"`
	Quantity    int64  `json:"quantity" validate:"required,gt=0"`
	Date        string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type checkoutRequest struct {
	Lines []saleRequest `json:"lines" validate:"required,min=1,dive"`
}

type checkoutResponse struct {
	inventory.CheckoutResult
	Error string `json:"error,omitempty"`
}

func (h *Handler) listLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := h.catalog.ListLocations(r.Context())
	h.respond(w, r, http.StatusOK, locs, err)
}

func (h *Handler) createLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if !h.decode(w, r, &req) {
		return
	}
	loc, err := h.catalog.AddLocation(r.Context(), req.Name)
	h.respond(w, r, http.StatusCreated, loc, err)
}

func (h *Handler) listFlavors(w http.ResponseWriter, r *http.Request) {
	flavors, err := h.catalog.ListFlavors(r.Context())
	h.respond(w, r, http.StatusOK, flavors, err)
}

func (h *Handler) createFlavor(w http.ResponseWriter, r *http.Request) {
	var req flavorRequest
	if !h.decode(w, r, &req) {
		return
	}
	flavor, err := h.catalog.AddFlavor(r.Context(), req.Name, req.CostPerContainer)
	h.respond(w, r, http.StatusCreated, flavor, err)
}

func (h *Handler) updateFlavorCost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req costRequest
	if !h.decode(w, r, &req) {
		return
	}
	flavor, err := h.catalog.UpdateFlavorCost(r.Context(), id, req.CostPerContainer)
	h.respond(w, r, http.StatusOK, flavor, err)
}

func (h *Handler) listContainers(w http.ResponseWriter, r *http.Request) {
	containers, err := h.catalog.ListContainers(r.Context())
	h.respond(w, r, http.StatusOK, containers, err)
}

func (h *Handler) recordPurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, err := optionalDate(req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.inventory.RecordPurchase(r.Context(), inventory.PurchaseInput{
		LocationID:     req.LocationID,
		FlavorID:       req.FlavorID,
		Containers:     req.Containers,
		Date:           date,
		IdempotencyKey: r.Header.Get(IdempotencyHeader),
	})
	h.respond(w, r, http.StatusCreated, p, err)
}

func (h *Handler) recordSale(w http.ResponseWriter, r *http.Request) {
	var req saleRequest
	if !h.decode(w, r, &req) {
		return
	}
	input, err := req.toInput(r.Header.Get(IdempotencyHeader))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sale, err := h.inventory.RecordSale(r.Context(), input)
	h.respond(w, r, http.StatusCreated, sale, err)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !h.decode(w, r, &req) {
		return
	}
	key := r.Header.Get(IdempotencyHeader)
	lines := make([]inventory.SaleInput, 0, len(req.Lines))
	for i, line := range req.Lines {
		input, err := line.toInput(key)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("line %d: %w", i+1, err))
			return
		}
		lines = append(lines, input)
	}
	result, err := h.inventory.Checkout(r.Context(), lines)
	if err != nil && len(result.Sales) > 0 {
		// earlier lines are committed; report both halves
		httpx.JSON(w, httpx.StatusFor(err), checkoutResponse{CheckoutResult: result, Error: err.Error()})
		return
	}
	h.respond(w, r, http.StatusCreated, result, err)
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	locationID, err := pathID(r, "locationID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	flavorID, err := pathID(r, "flavorID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.inventory.Entry(r.Context(), locationID, flavorID)
	h.respond(w, r, http.StatusOK, entry, err)
}

func (h *Handler) incomeStatement(w http.ResponseWriter, r *http.Request) {
	year, month, err := periodQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.reports.IncomeStatement(r.Context(), year, month)
	h.respond(w, r, http.StatusOK, report, err)
}

func (h *Handler) flavorSales(w http.ResponseWriter, r *http.Request) {
	year, month, err := periodQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.reports.FlavorSales(r.Context(), year, month)
	h.respond(w, r, http.StatusOK, rows, err)
}

func (h *Handler) inventoryLevels(w http.ResponseWriter, r *http.Request) {
	rows, err := h.reports.InventoryLevels(r.Context())
	h.respond(w, r, http.StatusOK, rows, err)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			httpx.RespondError(w, fmt.Errorf("%w: %s", shared.ErrInvalidArgument, strings.Join(msgs, "; ")))
			return false
		}
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrBadRequest, err))
		return false
	}
	return true
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, body any, err error) {
	if err != nil {
		if httpx.StatusFor(err) == http.StatusInternalServerError {
			h.logger.Error("request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, status, body)
}

func (s saleRequest) toInput(key string) (inventory.SaleInput, error) {
	size, err := catalog.ParseSize(s.Size)
	if err != nil {
		return inventory.SaleInput{}, err
	}
	date, err := optionalDate(s.Date)
	if err != nil {
		return inventory.SaleInput{}, err
	}
	return inventory.SaleInput{
		LocationID:     s.LocationID,
		FlavorID:       s.FlavorID,
		Size:           size,
		ContainerID:    s.ContainerID,
		Quantity:       s.Quantity,
		Date:           date,
		IdempotencyKey: key,
	}, nil
}

func optionalDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	d, err := shared.ParseDate(value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", httpx.ErrBadRequest, name)
	}
	return id, nil
}

func periodQuery(r *http.Request) (int, int, error) {
	q := r.URL.Query()
	if p := q.Get("period"); p != "" {
		return shared.ParsePeriod(p)
	}
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: year query parameter required", shared.ErrInvalidArgument)
	}
	month, err := strconv.Atoi(q.Get("month"))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: month query parameter required", shared.ErrInvalidArgument)
	}
	return year, month, nil
}
