package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/datascoop/datascoop/internal/catalog"
	"github.com/datascoop/datascoop/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetEntry(ctx context.Context, locationID, flavorID int64) (Entry, error)
	ListEntries(ctx context.Context) ([]Entry, error)
	// ListPurchases and ListSales return events dated in [from, to). A zero
	// bound is open.
	ListPurchases(ctx context.Context, from, to time.Time) ([]Purchase, error)
	ListSales(ctx context.Context, from, to time.Time) ([]Sale, error)
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	GetEntryForUpdate(ctx context.Context, locationID, flavorID int64) (Entry, error)
	UpsertEntry(ctx context.Context, entry Entry) error
	InsertPurchase(ctx context.Context, p Purchase) (int64, error)
	InsertSale(ctx context.Context, s Sale) (int64, error)
}

// CatalogPort resolves the reference data a movement needs.
type CatalogPort interface {
	GetLocation(ctx context.Context, id int64) (catalog.Location, error)
	GetFlavor(ctx context.Context, id int64) (catalog.Flavor, error)
	GetContainer(ctx context.Context, id int64) (catalog.Container, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards retried requests.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service coordinates inventory operations.
type Service struct {
	repo        RepositoryPort
	catalog     CatalogPort
	audit       AuditPort
	idempotency IdempotencyPort
	integration IntegrationHandler
	locks       *shared.KeyedMutex
	logger      *slog.Logger
	now         func() time.Time
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	Logger *slog.Logger
	Clock  func() time.Time
}

// NewService builds Service. audit, idem and integration may be nil.
func NewService(repo RepositoryPort, cat CatalogPort, audit AuditPort, idem IdempotencyPort, cfg ServiceConfig, integration IntegrationHandler) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		repo:        repo,
		catalog:     cat,
		audit:       audit,
		idempotency: idem,
		integration: integration,
		locks:       shared.NewKeyedMutex(),
		logger:      logger,
		now:         clock,
	}
}

// RecordPurchase restocks containers of a flavor at a location and re-bases
// the weighted-average cost using the flavor's current cost per container.
func (s *Service) RecordPurchase(ctx context.Context, input PurchaseInput) (Purchase, error) {
	if input.Containers <= 0 {
		return Purchase{}, fmt.Errorf("inventory: record purchase: %w: containers must be positive", shared.ErrInvalidArgument)
	}
	date, err := s.resolveDate(input.Date)
	if err != nil {
		return Purchase{}, fmt.Errorf("inventory: record purchase: %w", err)
	}
	if _, err := s.catalog.GetLocation(ctx, input.LocationID); err != nil {
		return Purchase{}, fmt.Errorf("inventory: record purchase: %w", err)
	}
	flavor, err := s.catalog.GetFlavor(ctx, input.FlavorID)
	if err != nil {
		return Purchase{}, fmt.Errorf("inventory: record purchase: %w", err)
	}
	ref, key, err := s.claim(ctx, "purchase", input.IdempotencyKey)
	if err != nil {
		return Purchase{}, fmt.Errorf("inventory: record purchase: %w", err)
	}

	unlock := s.locks.Lock(shared.LedgerLockKey(input.LocationID, input.FlavorID))
	defer unlock()

	var (
		purchase Purchase
		entry    Entry
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := s.loadEntry(ctx, tx, input.LocationID, input.FlavorID)
		if err != nil {
			return err
		}
		next, err := ApplyPurchase(current, input.Containers, flavor.CostPerContainer)
		if err != nil {
			return err
		}
		p := Purchase{
			Ref:              ref,
			LocationID:       input.LocationID,
			FlavorID:         input.FlavorID,
			Date:             date,
			Containers:       input.Containers,
			CostPerContainer: flavor.CostPerContainer,
		}
		id, err := tx.InsertPurchase(ctx, p)
		if err != nil {
			return err
		}
		p.ID = id
		next.UpdatedAt = s.now().UTC()
		if err := tx.UpsertEntry(ctx, next); err != nil {
			return err
		}
		purchase, entry = p, next
		return nil
	})
	if err != nil {
		s.release(ctx, key)
		return Purchase{}, fmt.Errorf("inventory: record purchase: %w", err)
	}

	s.logger.Info("purchase recorded",
		slog.Int64("location_id", purchase.LocationID),
		slog.Int64("flavor_id", purchase.FlavorID),
		slog.Int64("containers", purchase.Containers),
		slog.String("avg_cost", entry.AvgCost.String()),
	)
	s.record(ctx, shared.AuditLog{
		Action:   "inventory:purchase",
		Entity:   "purchase",
		EntityID: purchase.Ref.String(),
		Meta: map[string]any{
			"location_id":        purchase.LocationID,
			"flavor_id":          purchase.FlavorID,
			"containers":         purchase.Containers,
			"cost_per_container": purchase.CostPerContainer.String(),
		},
	})
	if s.integration != nil {
		if err := s.integration.HandlePurchaseRecorded(ctx, PurchaseRecordedEvent{Purchase: purchase, Entry: entry}); err != nil {
			s.logger.Warn("purchase hook failed", slog.Any("error", err))
		}
	}
	return purchase, nil
}

// RecordSale depletes stock for one sales line. It fails with
// shared.ErrInsufficientInventory and leaves the ledger untouched when the
// location does not hold enough of the flavor.
func (s *Service) RecordSale(ctx context.Context, input SaleInput) (Sale, error) {
	sale, err := s.recordSale(ctx, input)
	if err != nil {
		if s.integration != nil {
			s.integration.HandleSaleRejected(ctx, SaleRejectedEvent{LocationID: input.LocationID, FlavorID: input.FlavorID, Err: err})
		}
		return Sale{}, fmt.Errorf("inventory: record sale: %w", err)
	}
	return sale, nil
}

func (s *Service) recordSale(ctx context.Context, input SaleInput) (Sale, error) {
	if !input.Size.Valid() {
		return Sale{}, fmt.Errorf("%w: unknown size %q", shared.ErrInvalidArgument, input.Size)
	}
	if input.Quantity <= 0 {
		return Sale{}, fmt.Errorf("%w: quantity must be positive", shared.ErrInvalidArgument)
	}
	date, err := s.resolveDate(input.Date)
	if err != nil {
		return Sale{}, err
	}
	if _, err := s.catalog.GetLocation(ctx, input.LocationID); err != nil {
		return Sale{}, err
	}
	if _, err := s.catalog.GetFlavor(ctx, input.FlavorID); err != nil {
		return Sale{}, err
	}
	if _, err := s.catalog.GetContainer(ctx, input.ContainerID); err != nil {
		return Sale{}, err
	}
	ref, key, err := s.claim(ctx, "sale", input.IdempotencyKey)
	if err != nil {
		return Sale{}, err
	}

	unlock := s.locks.Lock(shared.LedgerLockKey(input.LocationID, input.FlavorID))
	defer unlock()

	var (
		sale  Sale
		entry Entry
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := s.loadEntry(ctx, tx, input.LocationID, input.FlavorID)
		if err != nil {
			return err
		}
		next, err := ApplySale(current, input.Size, input.Quantity)
		if err != nil {
			return err
		}
		sl := Sale{
			Ref:         ref,
			LocationID:  input.LocationID,
			FlavorID:    input.FlavorID,
			Date:        date,
			Size:        input.Size,
			ContainerID: input.ContainerID,
			Quantity:    input.Quantity,
		}
		id, err := tx.InsertSale(ctx, sl)
		if err != nil {
			return err
		}
		sl.ID = id
		next.UpdatedAt = s.now().UTC()
		if err := tx.UpsertEntry(ctx, next); err != nil {
			return err
		}
		sale, entry = sl, next
		return nil
	})
	if err != nil {
		s.release(ctx, key)
		return Sale{}, err
	}

	s.logger.Info("sale recorded",
		slog.Int64("location_id", sale.LocationID),
		slog.Int64("flavor_id", sale.FlavorID),
		slog.String("size", string(sale.Size)),
		slog.Int64("quantity", sale.Quantity),
		slog.Int64("ounces_left", entry.Ounces),
	)
	s.record(ctx, shared.AuditLog{
		Action:   "inventory:sale",
		Entity:   "sale",
		EntityID: sale.Ref.String(),
		Meta: map[string]any{
			"location_id":  sale.LocationID,
			"flavor_id":    sale.FlavorID,
			"size":         string(sale.Size),
			"container_id": sale.ContainerID,
			"quantity":     sale.Quantity,
		},
	})
	if s.integration != nil {
		if err := s.integration.HandleSaleRecorded(ctx, SaleRecordedEvent{Sale: sale, Entry: entry}); err != nil {
			s.logger.Warn("sale hook failed", slog.Any("error", err))
		}
	}
	return sale, nil
}

// Checkout commits cart lines in order. Lines before the first failure stay
// committed; the failing line and everything after it are not applied.
func (s *Service) Checkout(ctx context.Context, lines []SaleInput) (CheckoutResult, error) {
	result := CheckoutResult{FailedLine: -1}
	if len(lines) == 0 {
		return result, fmt.Errorf("inventory: checkout: %w: empty cart", shared.ErrInvalidArgument)
	}
	for i, line := range lines {
		if line.IdempotencyKey != "" {
			line.IdempotencyKey = line.IdempotencyKey + ":" + strconv.Itoa(i)
		}
		sale, err := s.RecordSale(ctx, line)
		if err != nil {
			result.FailedLine = i
			return result, fmt.Errorf("inventory: checkout line %d: %w", i+1, err)
		}
		result.Sales = append(result.Sales, sale)
	}
	return result, nil
}

// Entry returns the ledger entry for a location and flavor.
func (s *Service) Entry(ctx context.Context, locationID, flavorID int64) (Entry, error) {
	entry, err := s.repo.GetEntry(ctx, locationID, flavorID)
	if errors.Is(err, ErrEntryNotFound) {
		return Entry{}, fmt.Errorf("inventory: entry %d/%d: %w", locationID, flavorID, shared.ErrNotFound)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("inventory: entry %d/%d: %w", locationID, flavorID, err)
	}
	return entry, nil
}

// Entries lists every ledger entry ordered by location then flavor.
func (s *Service) Entries(ctx context.Context) ([]Entry, error) {
	return s.repo.ListEntries(ctx)
}

// Purchases lists purchases dated in [from, to).
func (s *Service) Purchases(ctx context.Context, from, to time.Time) ([]Purchase, error) {
	return s.repo.ListPurchases(ctx, from, to)
}

// Sales lists sales dated in [from, to).
func (s *Service) Sales(ctx context.Context, from, to time.Time) ([]Sale, error) {
	return s.repo.ListSales(ctx, from, to)
}

func (s *Service) loadEntry(ctx context.Context, tx TxRepository, locationID, flavorID int64) (Entry, error) {
	entry, err := tx.GetEntryForUpdate(ctx, locationID, flavorID)
	if errors.Is(err, ErrEntryNotFound) {
		return Entry{LocationID: locationID, FlavorID: flavorID}, nil
	}
	return entry, err
}

func (s *Service) resolveDate(date *time.Time) (time.Time, error) {
	if date == nil {
		return shared.CalendarDate(s.now()), nil
	}
	if date.IsZero() {
		return time.Time{}, fmt.Errorf("%w: date required", shared.ErrInvalidArgument)
	}
	return shared.CalendarDate(*date), nil
}

// claim reserves an idempotency key and derives the event ref from it. An
// empty key yields a random ref and nothing to release.
func (s *Service) claim(ctx context.Context, kind, key string) (uuid.UUID, string, error) {
	if key == "" {
		return uuid.New(), "", nil
	}
	ref := uuid.NewSHA1(uuid.NameSpaceOID, []byte(kind+":"+key))
	if s.idempotency == nil {
		return ref, "", nil
	}
	full := kind + ":" + key
	if err := s.idempotency.CheckAndInsert(ctx, full, "inventory"); err != nil {
		return uuid.Nil, "", err
	}
	return ref, full, nil
}

func (s *Service) release(ctx context.Context, key string) {
	if key == "" || s.idempotency == nil {
		return
	}
	// the request ctx is often already cancelled when a write fails
	if err := s.idempotency.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, log shared.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", log.Action), slog.Any("error", err))
	}
}
