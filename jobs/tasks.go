package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskNearExpiryScan flags expired batches and reports those close to expiry.
	TaskNearExpiryScan = "stock:near_expiry_scan"
)

// NearExpiryScanPayload carries scan options. Zero WithinDays uses the
// worker's configured warning window.
type NearExpiryScanPayload struct {
	WithinDays   int       `json:"within_days,omitempty"`
	MarkExpired  bool      `json:"mark_expired"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewNearExpiryScanTask constructs an Asynq task for the expiry scan.
func NewNearExpiryScanTask(payload NearExpiryScanPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNearExpiryScan, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}
