package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/datascoop/datascoop/internal/app"
	"github.com/datascoop/datascoop/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	services, err := app.NewServices(ctx, cfg, logger)
	if err != nil {
		logger.Error("init services", slog.Any("error", err))
		os.Exit(1)
	}
	defer services.Close()

	jobMetrics := services.Metrics.Jobs()
	monthClose := jobs.NewMonthCloseJob(services.Reports, logger, jobMetrics)
	valuation := jobs.NewValuationJob(services.Reports, logger, jobMetrics)

	monthCloseTask, err := jobs.NewMonthCloseTask("")
	if err != nil {
		logger.Error("build month close task", slog.Any("error", err))
		os.Exit(1)
	}
	valuationTask, err := jobs.NewValuationTask(time.Time{})
	if err != nil {
		logger.Error("build valuation task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskReportMonthClose, Handler: monthClose.Handle},
			{Type: jobs.TaskInventoryValuation, Handler: valuation.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "15 0 1 * *", Task: monthCloseTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 1 * * *", Task: valuationTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
