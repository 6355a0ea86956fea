package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/datascoop/datascoop/internal/shared"
)

// Repository abstracts catalog persistence.
type Repository interface {
	// CreateLocation inserts the location and a zero ledger entry for every
	// existing flavor in one transaction.
	CreateLocation(ctx context.Context, name string) (Location, error)
	// CreateFlavor inserts the flavor and a zero ledger entry for every
	// existing location in one transaction.
	CreateFlavor(ctx context.Context, name string, cost decimal.Decimal) (Flavor, error)
	UpdateFlavorCost(ctx context.Context, id int64, cost decimal.Decimal) (Flavor, error)
	CreateContainer(ctx context.Context, container Container) (Container, error)
	ListLocations(ctx context.Context) ([]Location, error)
	ListFlavors(ctx context.Context) ([]Flavor, error)
	ListContainers(ctx context.Context) ([]Container, error)
	GetLocation(ctx context.Context, id int64) (Location, error)
	GetFlavor(ctx context.Context, id int64) (Flavor, error)
	GetContainer(ctx context.Context, id int64) (Container, error)
}

// ChangeObserver is notified after catalog changes that affect reports.
type ChangeObserver interface {
	HandleCatalogChanged(ctx context.Context) error
}

// Service exposes catalog operations.
type Service struct {
	repo     Repository
	logger   *slog.Logger
	observer ChangeObserver
}

// NewService builds Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// WithObserver registers o for change notifications and returns s.
func (s *Service) WithObserver(o ChangeObserver) *Service {
	s.observer = o
	return s
}

func (s *Service) notify(ctx context.Context) {
	if s.observer == nil {
		return
	}
	if err := s.observer.HandleCatalogChanged(ctx); err != nil {
		s.logger.Warn("catalog observer failed", slog.Any("error", err))
	}
}

// AddLocation creates a location with an empty ledger for every current flavor.
func (s *Service) AddLocation(ctx context.Context, name string) (Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Location{}, fmt.Errorf("catalog: location name required: %w", shared.ErrInvalidArgument)
	}
	loc, err := s.repo.CreateLocation(ctx, name)
	if err != nil {
		return Location{}, fmt.Errorf("catalog: add location %q: %w", name, err)
	}
	s.logger.Info("location added", slog.Int64("location_id", loc.ID), slog.String("name", loc.Name))
	s.notify(ctx)
	return loc, nil
}

// AddFlavor creates a flavor with an empty ledger at every current location.
func (s *Service) AddFlavor(ctx context.Context, name string, cost decimal.Decimal) (Flavor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Flavor{}, fmt.Errorf("catalog: flavor name required: %w", shared.ErrInvalidArgument)
	}
	if cost.IsNegative() {
		return Flavor{}, fmt.Errorf("catalog: flavor cost must be >= 0: %w", shared.ErrInvalidArgument)
	}
	flavor, err := s.repo.CreateFlavor(ctx, name, cost)
	if err != nil {
		return Flavor{}, fmt.Errorf("catalog: add flavor %q: %w", name, err)
	}
	s.logger.Info("flavor added", slog.Int64("flavor_id", flavor.ID), slog.String("name", flavor.Name))
	s.notify(ctx)
	return flavor, nil
}

// UpdateFlavorCost changes the replenishment cost used by future purchases.
// Recorded purchases keep the cost they were booked at.
func (s *Service) UpdateFlavorCost(ctx context.Context, id int64, cost decimal.Decimal) (Flavor, error) {
	if id <= 0 {
		return Flavor{}, fmt.Errorf("catalog: flavor id required: %w", shared.ErrInvalidArgument)
	}
	if cost.IsNegative() {
		return Flavor{}, fmt.Errorf("catalog: flavor cost must be >= 0: %w", shared.ErrInvalidArgument)
	}
	flavor, err := s.repo.UpdateFlavorCost(ctx, id, cost)
	if err != nil {
		return Flavor{}, fmt.Errorf("catalog: update flavor %d cost: %w", id, err)
	}
	s.logger.Info("flavor cost updated", slog.Int64("flavor_id", id), slog.String("cost", cost.String()))
	return flavor, nil
}

// Seed installs the default flavors and containers when the catalog is empty.
func (s *Service) Seed(ctx context.Context) error {
	flavors, err := s.repo.ListFlavors(ctx)
	if err != nil {
		return fmt.Errorf("catalog: seed: %w", err)
	}
	if len(flavors) == 0 {
		for _, f := range DefaultFlavors() {
			if _, err := s.repo.CreateFlavor(ctx, f.Name, f.CostPerContainer); err != nil {
				return fmt.Errorf("catalog: seed flavor %q: %w", f.Name, err)
			}
		}
	}
	containers, err := s.repo.ListContainers(ctx)
	if err != nil {
		return fmt.Errorf("catalog: seed: %w", err)
	}
	if len(containers) == 0 {
		for _, c := range DefaultContainers() {
			if _, err := s.repo.CreateContainer(ctx, c); err != nil {
				return fmt.Errorf("catalog: seed container %q: %w", c.Name, err)
			}
		}
	}
	return nil
}

func (s *Service) ListLocations(ctx context.Context) ([]Location, error) {
	return s.repo.ListLocations(ctx)
}

func (s *Service) ListFlavors(ctx context.Context) ([]Flavor, error) {
	return s.repo.ListFlavors(ctx)
}

func (s *Service) ListContainers(ctx context.Context) ([]Container, error) {
	return s.repo.ListContainers(ctx)
}

// GetLocation looks a location up by id.
func (s *Service) GetLocation(ctx context.Context, id int64) (Location, error) {
	if id <= 0 {
		return Location{}, fmt.Errorf("catalog: location %d: %w", id, shared.ErrNotFound)
	}
	return s.repo.GetLocation(ctx, id)
}

// GetFlavor looks a flavor up by id.
func (s *Service) GetFlavor(ctx context.Context, id int64) (Flavor, error) {
	if id <= 0 {
		return Flavor{}, fmt.Errorf("catalog: flavor %d: %w", id, shared.ErrNotFound)
	}
	return s.repo.GetFlavor(ctx, id)
}

// GetContainer looks a container up by id.
func (s *Service) GetContainer(ctx context.Context, id int64) (Container, error) {
	if id <= 0 {
		return Container{}, fmt.Errorf("catalog: container %d: %w", id, shared.ErrNotFound)
	}
	return s.repo.GetContainer(ctx, id)
}
