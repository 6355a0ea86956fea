package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReportMonthClose builds and caches the previous month's income statement.
	TaskReportMonthClose = "report:month-close"
	// TaskInventoryValuation values stock on hand per location.
	TaskInventoryValuation = "inventory:valuation"
)

// MonthClosePayload names the period to close. An empty Period means the
// month before the job runs.
type MonthClosePayload struct {
	Period string `json:"period,omitempty"`
}

// NewMonthCloseTask constructs an Asynq task for a month close.
func NewMonthCloseTask(period string) (*asynq.Task, error) {
	body, err := json.Marshal(MonthClosePayload{Period: period})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportMonthClose, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// ValuationPayload carries scheduling metadata.
type ValuationPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewValuationTask constructs an Asynq task for inventory valuation.
func NewValuationTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ValuationPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInventoryValuation, body, asynq.Queue(QueueDefault)), nil
}
