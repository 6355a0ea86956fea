package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/datascoop/datascoop/internal/catalog"
	"github.com/datascoop/datascoop/internal/integration"
	"github.com/datascoop/datascoop/internal/inventory"
	"github.com/datascoop/datascoop/internal/observability"
	"github.com/datascoop/datascoop/internal/platform/cache"
	"github.com/datascoop/datascoop/internal/platform/db"
	"github.com/datascoop/datascoop/internal/reports"
	"github.com/datascoop/datascoop/internal/shared"
	"github.com/datascoop/datascoop/internal/store/memory"
	"github.com/datascoop/datascoop/internal/transfer"
)

// Services holds the wired domain services shared by the server, the CLI
// and the worker.
type Services struct {
	Config    *Config
	Logger    *slog.Logger
	Pool      *pgxpool.Pool
	Redis     *redis.Client
	Metrics   *observability.Metrics
	Cache     *reports.Cache
	Catalog   *catalog.Service
	Inventory *inventory.Service
	Reports   *reports.Service
	Transfer  *transfer.Service
}

// NewServices connects the configured store and cache and wires the domain
// services on top. The report cache is disabled when redis is unreachable.
func NewServices(ctx context.Context, cfg *Config, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}
	svc := &Services{Config: cfg, Logger: logger, Metrics: observability.NewMetrics()}

	var (
		catalogRepo catalog.Repository
		ledgerRepo  inventory.RepositoryPort
		audit       inventory.AuditPort
		idempotency inventory.IdempotencyPort
	)
	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			return nil, err
		}
		svc.Pool = pool
		catalogRepo = catalog.NewRepository(pool)
		ledgerRepo = inventory.NewRepository(pool)
		audit = shared.NewAuditLogger(pool)
		idempotency = shared.NewIdempotencyStore(pool)
	case StoreDriverMemory:
		logger.Warn("memory store selected, data is lost on exit")
		store := memory.New()
		catalogRepo = store
		ledgerRepo = store
		audit = shared.NewLogAuditor(logger)
		idempotency = memory.NewIdempotency()
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	client, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, report cache disabled", slog.Any("error", err))
	}
	if client != nil {
		svc.Redis = client
		svc.Cache = reports.NewCache(client, cfg.ReportCacheTTL)
	}

	hooks := integration.NewHooks(integration.InvalidatorFunc(svc.Cache.Bump), svc.Metrics, logger)
	svc.Catalog = catalog.NewService(catalogRepo, logger).WithObserver(hooks)
	svc.Inventory = inventory.NewService(ledgerRepo, svc.Catalog, audit, idempotency, inventory.ServiceConfig{Logger: logger}, hooks)
	svc.Reports = reports.NewService(svc.Catalog, svc.Inventory, cfg.FixedExpenses(), svc.Cache, logger)
	svc.Transfer = transfer.NewService(svc.Inventory, svc.Inventory, svc.Catalog, logger)

	if cfg.SeedCatalog {
		if err := svc.Catalog.Seed(ctx); err != nil {
			svc.Close()
			return nil, err
		}
	}
	return svc, nil
}

// Close releases pooled connections.
func (s *Services) Close() {
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			s.Logger.Warn("redis close", slog.Any("error", err))
		}
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
}
