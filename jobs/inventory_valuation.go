package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	jobmetrics "github.com/datascoop/datascoop/internal/jobs"
)

// ValuationJob logs and publishes the carrying value of stock per location.
type ValuationJob struct {
	Reports ReportSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewValuationJob wires dependencies for the valuation handler.
func NewValuationJob(src ReportSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *ValuationJob {
	return &ValuationJob{Reports: src, Logger: logger, Metrics: metrics}
}

// Handle processes valuation tasks.
func (j *ValuationJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reports == nil {
		return errors.New("valuation: handler not configured")
	}
	var payload ValuationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tracker := metrics.Track(TaskInventoryValuation)
	rows, err := j.Reports.Valuation(ctx)
	if err != nil {
		logger.Error("inventory valuation", slog.Any("error", err))
		return tracker.End(err)
	}
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Value)
		metrics.SetValuation(row.LocationName, row.Value.InexactFloat64())
		logger.Info("location valued",
			slog.String("location", row.LocationName),
			slog.Int64("ounces", row.Ounces),
			slog.String("value", row.Value.StringFixed(2)),
		)
	}
	logger.Info("inventory valuation complete",
		slog.String("scheduled_for", payload.ScheduledFor.Format(time.RFC3339)),
		slog.Int("locations", len(rows)),
		slog.String("total", total.StringFixed(2)),
	)
	return tracker.End(nil)
}
