package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/datascoop/datascoop/internal/jobs"
	"github.com/datascoop/datascoop/internal/reports"
)

type fakeReports struct {
	year, month int
	err         error
	valuation   []reports.LocationValuation
}

func (f *fakeReports) IncomeStatement(ctx context.Context, year, month int) (reports.IncomeStatementReport, error) {
	f.year, f.month = year, month
	if f.err != nil {
		return reports.IncomeStatementReport{}, f.err
	}
	main := reports.Statement{LocationID: 1, LocationName: "Main", NetIncome: decimal.NewFromInt(-100)}
	return reports.IncomeStatementReport{Year: year, Month: month, Locations: []reports.Statement{main}, Company: main}, nil
}

func (f *fakeReports) Valuation(ctx context.Context) ([]reports.LocationValuation, error) {
	return f.valuation, f.err
}

func newMetrics() *jobmetrics.Metrics {
	return jobmetrics.NewMetrics(prometheus.NewRegistry())
}

func TestMonthCloseDefaultsToPreviousMonth(t *testing.T) {
	src := &fakeReports{}
	job := NewMonthCloseJob(src, nil, newMetrics())
	job.clock = func() time.Time { return time.Date(2024, 1, 3, 2, 0, 0, 0, time.UTC) }

	task, err := NewMonthCloseTask("")
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 2023, src.year)
	require.Equal(t, 12, src.month)
}

func TestMonthCloseExplicitPeriod(t *testing.T) {
	src := &fakeReports{}
	job := NewMonthCloseJob(src, nil, newMetrics())

	task, err := NewMonthCloseTask("2024-07")
	require.NoError(t, err)
	require.Equal(t, TaskReportMonthClose, task.Type())
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 2024, src.year)
	require.Equal(t, 7, src.month)
}

func TestMonthCloseBadInputSkipsRetry(t *testing.T) {
	job := NewMonthCloseJob(&fakeReports{}, nil, newMetrics())

	err := job.Handle(context.Background(), asynq.NewTask(TaskReportMonthClose, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	task, err := NewMonthCloseTask("July")
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
}

func TestMonthClosePropagatesReportError(t *testing.T) {
	boom := errors.New("db down")
	job := NewMonthCloseJob(&fakeReports{err: boom}, nil, newMetrics())
	task, err := NewMonthCloseTask("2024-07")
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), task), boom)

	var unset *MonthCloseJob
	require.Error(t, unset.Handle(context.Background(), task))
}

func TestMonthCloseRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	src := &fakeReports{err: errors.New("db down")}
	job := NewMonthCloseJob(src, nil, jobmetrics.NewMetrics(reg))
	task, err := NewMonthCloseTask("2024-07")
	require.NoError(t, err)

	require.Error(t, job.Handle(context.Background(), task))
	src.err = nil
	require.NoError(t, job.Handle(context.Background(), task))

	families, err := reg.Gather()
	require.NoError(t, err)
	runs := map[string]float64{}
	var failures float64
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch mf.GetName() {
			case "datascoop_jobs_total":
				for _, lp := range m.GetLabel() {
					if lp.GetName() == "status" {
						runs[lp.GetValue()] += m.GetCounter().GetValue()
					}
				}
			case "datascoop_jobs_failures_total":
				failures += m.GetCounter().GetValue()
			}
		}
	}
	require.Equal(t, float64(1), runs["failure"])
	require.Equal(t, float64(1), runs["success"])
	require.Equal(t, float64(1), failures)
	require.Equal(t, 1, testutil.CollectAndCount(reg, "datascoop_job_duration_seconds"))
}

func TestValuationJob(t *testing.T) {
	src := &fakeReports{valuation: []reports.LocationValuation{
		{LocationID: 1, LocationName: "Main", Ounces: 1280, Value: decimal.RequireFromString("4.00")},
	}}
	job := NewValuationJob(src, nil, newMetrics())
	task, err := NewValuationTask(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	var payload ValuationPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, 2024, payload.ScheduledFor.Year())

	require.NoError(t, job.Handle(context.Background(), task))

	src.err = errors.New("timeout")
	require.Error(t, job.Handle(context.Background(), task))
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, nil).MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body queueHealth
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, QueueDefault, body.Queue)
	require.Zero(t, body.Pending)
}
