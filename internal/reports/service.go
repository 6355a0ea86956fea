package reports

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/datascoop/datascoop/internal/catalog"
	"github.com/datascoop/datascoop/internal/inventory"
	"github.com/datascoop/datascoop/internal/shared"
)

// CatalogReader lists reference data.
type CatalogReader interface {
	ListLocations(ctx context.Context) ([]catalog.Location, error)
	ListFlavors(ctx context.Context) ([]catalog.Flavor, error)
	ListContainers(ctx context.Context) ([]catalog.Container, error)
}

// LedgerReader exposes the event log and the ledger snapshot.
type LedgerReader interface {
	Sales(ctx context.Context, from, to time.Time) ([]inventory.Sale, error)
	Entries(ctx context.Context) ([]inventory.Entry, error)
}

// Service builds reports.
type Service struct {
	catalog  CatalogReader
	ledger   LedgerReader
	expenses catalog.FixedExpenses
	cache    *Cache
	group    singleflight.Group
	logger   *slog.Logger
}

// NewService wires the reporting engine. cache may be nil.
func NewService(cat CatalogReader, ledger LedgerReader, expenses catalog.FixedExpenses, cache *Cache, logger *slog.Logger) *Service {
	if expenses == nil {
		expenses = catalog.DefaultFixedExpenses()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{catalog: cat, ledger: ledger, expenses: expenses, cache: cache, logger: logger}
}

// Expenses returns the fixed expense table applied per location.
func (s *Service) Expenses() catalog.FixedExpenses {
	return s.expenses
}

// IncomeStatement reports the month per location plus the company total.
// Ice-cream COGS is priced at the ledger's current average cost.
func (s *Service) IncomeStatement(ctx context.Context, year, month int) (IncomeStatementReport, error) {
	from, to, err := shared.MonthRange(year, month)
	if err != nil {
		return IncomeStatementReport{}, fmt.Errorf("reports: income statement: %w", err)
	}
	var report IncomeStatementReport
	err = s.cached(ctx, &report, func(ctx context.Context) (any, error) {
		return s.buildIncomeStatement(ctx, year, month, from, to)
	}, "reports", "income", periodLabel(year, month))
	if err != nil {
		return IncomeStatementReport{}, fmt.Errorf("reports: income statement %s: %w", periodLabel(year, month), err)
	}
	return report, nil
}

// FlavorSales reports ounces sold per location and flavor in the month.
func (s *Service) FlavorSales(ctx context.Context, year, month int) ([]FlavorSalesRow, error) {
	from, to, err := shared.MonthRange(year, month)
	if err != nil {
		return nil, fmt.Errorf("reports: flavor sales: %w", err)
	}
	rows := []FlavorSalesRow{}
	err = s.cached(ctx, &rows, func(ctx context.Context) (any, error) {
		var (
			locations []catalog.Location
			flavors   []catalog.Flavor
			sales     []inventory.Sale
		)
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) { locations, err = s.catalog.ListLocations(ctx); return })
		g.Go(func() (err error) { flavors, err = s.catalog.ListFlavors(ctx); return })
		g.Go(func() (err error) { sales, err = s.ledger.Sales(ctx, from, to); return })
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return BuildFlavorSales(locations, flavors, sales), nil
	}, "reports", "flavors", periodLabel(year, month))
	if err != nil {
		return nil, fmt.Errorf("reports: flavor sales %s: %w", periodLabel(year, month), err)
	}
	return rows, nil
}

// InventoryLevels snapshots every ledger entry. It is not cached.
func (s *Service) InventoryLevels(ctx context.Context) ([]InventoryLevelRow, error) {
	var (
		locations []catalog.Location
		flavors   []catalog.Flavor
		entries   []inventory.Entry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { locations, err = s.catalog.ListLocations(gctx); return })
	g.Go(func() (err error) { flavors, err = s.catalog.ListFlavors(gctx); return })
	g.Go(func() (err error) { entries, err = s.ledger.Entries(gctx); return })
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("reports: inventory levels: %w", err)
	}
	return BuildInventoryLevels(locations, flavors, entries), nil
}

// Valuation sums the carrying value of stock per location.
func (s *Service) Valuation(ctx context.Context) ([]LocationValuation, error) {
	var (
		locations []catalog.Location
		entries   []inventory.Entry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { locations, err = s.catalog.ListLocations(gctx); return })
	g.Go(func() (err error) { entries, err = s.ledger.Entries(gctx); return })
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("reports: valuation: %w", err)
	}
	return BuildValuation(locations, entries), nil
}

// Invalidate drops every cached report.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func (s *Service) buildIncomeStatement(ctx context.Context, year, month int, from, to time.Time) (IncomeStatementReport, error) {
	var (
		locations  []catalog.Location
		containers []catalog.Container
		sales      []inventory.Sale
		entries    []inventory.Entry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { locations, err = s.catalog.ListLocations(gctx); return })
	g.Go(func() (err error) { containers, err = s.catalog.ListContainers(gctx); return })
	g.Go(func() (err error) { sales, err = s.ledger.Sales(gctx, from, to); return })
	g.Go(func() (err error) { entries, err = s.ledger.Entries(gctx); return })
	if err := g.Wait(); err != nil {
		return IncomeStatementReport{}, err
	}

	costs := avgCostIndex(entries)
	byID := containerIndex(containers)
	statements := make([]Statement, len(locations))
	var build errgroup.Group
	for i, loc := range locations {
		build.Go(func() error {
			statements[i] = BuildStatement(loc, sales, costs[loc.ID], byID, s.expenses)
			return nil
		})
	}
	_ = build.Wait()

	report := IncomeStatementReport{Year: year, Month: month, From: from, To: to, Locations: statements}
	report.Company = SumStatements(statements)
	s.logger.Debug("income statement built",
		slog.String("period", periodLabel(year, month)),
		slog.Int("locations", len(statements)),
		slog.Int("sales", len(sales)),
	)
	return report, nil
}

// cached collapses concurrent identical requests and reads through Redis.
func (s *Service) cached(ctx context.Context, dest any, loader func(context.Context) (any, error), parts ...string) error {
	key, err := s.cache.BuildKey(ctx, parts...)
	if err != nil {
		s.logger.Warn("report cache unavailable", slog.Any("error", err))
		return fetchDirect(ctx, dest, loader)
	}
	ch := s.group.DoChan(key, func() (any, error) {
		var raw rawJSON
		if err := s.cache.FetchJSON(ctx, key, &raw, loader); err != nil {
			return nil, err
		}
		return raw, nil
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return res.Err
		}
		return res.Val.(rawJSON).decode(dest)
	}
}

func periodLabel(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}
