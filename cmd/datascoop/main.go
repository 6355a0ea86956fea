package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/text/language"

	"github.com/datascoop/datascoop/cmd/datascoop/cli"
	"github.com/datascoop/datascoop/internal/api"
	"github.com/datascoop/datascoop/internal/app"
	"github.com/datascoop/datascoop/internal/shared"
	"github.com/datascoop/datascoop/jobs"
)

const usage = `usage: datascoop [command] [args]

commands:
  serve                          run the HTTP API (default)
  migrate                        apply the database schema
  seed                           install the default flavors and containers
  import-purchases FILE          record purchases from CSV
  import-sales FILE              record sales from CSV
  export-purchases FILE          write purchases to CSV
  export-sales FILE              write sales to CSV
  export-locations FILE          write locations to CSV
  report income|flavors|inventory [YYYY-MM]
`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if err := run(ctx, cfg, logger, flag.Args(), os.Stdout); err != nil {
		logger.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string, out io.Writer) error {
	if logger == nil {
		logger = slog.Default()
	}
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	svc, err := app.NewServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	switch command {
	case "serve":
		return serve(ctx, svc)
	case "migrate":
		if svc.Pool == nil {
			logger.Info("memory store has no schema to migrate")
			return nil
		}
		logger.Info("schema migrated")
		return nil
	case "seed":
		if err := svc.Catalog.Seed(ctx); err != nil {
			return err
		}
		logger.Info("catalog seeded")
		return nil
	case "import-purchases", "import-sales":
		return importFile(ctx, svc, command, args, out)
	case "export-purchases", "export-sales", "export-locations":
		return exportFile(ctx, svc, command, args, out)
	case "report":
		return report(ctx, svc, args, out)
	default:
		return fmt.Errorf("%w: unknown command %q\n%s", shared.ErrInvalidArgument, command, usage)
	}
}

func serve(ctx context.Context, svc *app.Services) error {
	cfg, logger := svc.Config, svc.Logger

	if err := svc.Cache.ListenForInvalidation(ctx); err != nil {
		logger.Warn("report cache invalidation listener", slog.Any("error", err))
	}

	var jobHandler *jobs.Handler
	if cfg.RedisAddr != "" {
		inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:     logger,
		Config:     cfg,
		API:        api.NewHandler(logger, svc.Catalog, svc.Inventory, svc.Reports),
		JobHandler: jobHandler,
		Metrics:    svc.Metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func importFile(ctx context.Context, svc *app.Services, command string, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: %s needs a FILE argument", shared.ErrInvalidArgument, command)
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	importer := svc.Transfer.ImportPurchases
	if command == "import-sales" {
		importer = svc.Transfer.ImportSales
	}
	result, err := importer(ctx, f)
	if err != nil {
		return err
	}
	for _, failed := range result.Failed {
		fmt.Fprintf(out, "skipped %v\n", failed)
	}
	fmt.Fprintf(out, "imported %d rows, skipped %d\n", result.Imported, len(result.Failed))
	return nil
}

func exportFile(ctx context.Context, svc *app.Services, command string, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: %s needs a FILE argument", shared.ErrInvalidArgument, command)
	}
	f, err := os.Create(args[0])
	if err != nil {
		return err
	}

	exporter := svc.Transfer.ExportPurchases
	switch command {
	case "export-sales":
		exporter = svc.Transfer.ExportSales
	case "export-locations":
		exporter = svc.Transfer.ExportLocations
	}
	n, err := exporter(ctx, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "saved %d rows to %s\n", n, args[0])
	return nil
}

func report(ctx context.Context, svc *app.Services, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: report needs income, flavors or inventory", shared.ErrInvalidArgument)
	}
	now := time.Now()
	year, month := now.Year(), int(now.Month())
	if len(args) > 1 {
		var err error
		if year, month, err = shared.ParsePeriod(args[1]); err != nil {
			return err
		}
	}

	format := cli.NewFormatter(language.English)
	switch args[0] {
	case "income":
		statement, err := svc.Reports.IncomeStatement(ctx, year, month)
		if err != nil {
			return err
		}
		return format.IncomeStatement(out, statement)
	case "flavors":
		rows, err := svc.Reports.FlavorSales(ctx, year, month)
		if err != nil {
			return err
		}
		return format.FlavorSales(out, year, month, rows)
	case "inventory":
		rows, err := svc.Reports.InventoryLevels(ctx)
		if err != nil {
			return err
		}
		return format.InventoryLevels(out, rows)
	default:
		return fmt.Errorf("%w: unknown report %q", shared.ErrInvalidArgument, args[0])
	}
}
