package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/datascoop/datascoop/internal/jobs"
	"github.com/datascoop/datascoop/internal/reports"
	"github.com/datascoop/datascoop/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ReportSource is the slice of the reporting engine the jobs rely on.
type ReportSource interface {
	IncomeStatement(ctx context.Context, year, month int) (reports.IncomeStatementReport, error)
	Valuation(ctx context.Context) ([]reports.LocationValuation, error)
}

// MonthCloseJob builds a month's income statement so it is cached before
// anyone asks for it, and publishes per-location net income.
type MonthCloseJob struct {
	Reports ReportSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewMonthCloseJob wires dependencies for the month-close handler.
func NewMonthCloseJob(src ReportSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *MonthCloseJob {
	return &MonthCloseJob{
		Reports: src,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes month-close tasks.
func (j *MonthCloseJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Reports == nil {
		return errors.New("month close: handler not configured")
	}
	var payload MonthClosePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	year, month, err := j.period(payload.Period)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	tracker := j.metrics().Track(TaskReportMonthClose)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("period", fmt.Sprintf("%04d-%02d", year, month)))
	report, err := j.Reports.IncomeStatement(ctx, year, month)
	if err != nil {
		logger.Error("build income statement", slog.Any("error", err))
		return err
	}
	for _, st := range report.Locations {
		j.metrics().SetNetIncome(st.LocationName, st.NetIncome.InexactFloat64())
	}
	logger.Info("month closed",
		slog.Int("locations", len(report.Locations)),
		slog.String("revenue", report.Company.Revenue.StringFixed(2)),
		slog.String("cogs", report.Company.COGSTotal.StringFixed(2)),
		slog.String("net_income", report.Company.NetIncome.StringFixed(2)),
	)
	return nil
}

// period resolves the payload label, defaulting to the month before now.
func (j *MonthCloseJob) period(label string) (int, int, error) {
	if label != "" {
		return shared.ParsePeriod(label)
	}
	now := j.now()
	prev := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	return prev.Year(), int(prev.Month()), nil
}

func (j *MonthCloseJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *MonthCloseJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *MonthCloseJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
