package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/inventory"
	jobmetrics "github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ExpiryLedger is the part of the stock ledger the scan needs.
type ExpiryLedger interface {
	NearExpiry(ctx context.Context, withinDays int, locationIDs []int64) ([]inventory.Batch, error)
	UpdateQuality(ctx context.Context, batchID int64, in inventory.QualityInput) (inventory.Batch, error)
}

// NearExpiryScanJob reports batches with stock inside the expiry warning
// window and optionally flags batches already past expiry as Expired.
type NearExpiryScanJob struct {
	Ledger      ExpiryLedger
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
	WarningDays int
	clock       func() time.Time
}

// NewNearExpiryScanJob initialises the scan handler.
func NewNearExpiryScanJob(ledger ExpiryLedger, logger *slog.Logger, metrics *jobmetrics.Metrics, warningDays int) *NearExpiryScanJob {
	return &NearExpiryScanJob{
		Ledger:      ledger,
		Logger:      logger,
		Metrics:     metrics,
		WarningDays: warningDays,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// ScanResult summarises one run.
type ScanResult struct {
	Expiring      int
	MarkedExpired int
	PerLocation   map[int64]int
}

// Handle executes the scan for an asynq task.
func (j *NearExpiryScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Ledger == nil {
		return errors.New("near expiry scan: handler not configured")
	}
	var payload NearExpiryScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	_, err := j.Run(ctx, payload)
	return err
}

// Run performs the scan.
func (j *NearExpiryScanJob) Run(ctx context.Context, payload NearExpiryScanPayload) (result ScanResult, err error) {
	tracker := j.metrics().Track(TaskNearExpiryScan)
	defer func() {
		err = tracker.End(err)
	}()

	days := payload.WithinDays
	if days <= 0 {
		days = j.WarningDays
	}
	logger := j.logger().With(slog.Int("within_days", days), slog.Bool("mark_expired", payload.MarkExpired))
	logger.Info("starting near expiry scan")

	batches, err := j.Ledger.NearExpiry(ctx, days, nil)
	if err != nil {
		logger.Error("near expiry query failed", slog.Any("error", err))
		return ScanResult{}, fmt.Errorf("near expiry scan: %w", err)
	}

	today := j.now().Truncate(24 * time.Hour)
	result = ScanResult{PerLocation: map[int64]int{}}
	var failures []error
	for _, b := range batches {
		if payload.MarkExpired && b.QualityStatus == inventory.QualityOK && b.ExpiryDate.Before(today) {
			if _, err := j.Ledger.UpdateQuality(ctx, b.ID, inventory.QualityInput{
				Status: inventory.QualityExpired,
				Note:   "expiry scan",
			}); err != nil {
				logger.Error("flag expired batch", slog.Int64("batch_id", b.ID), slog.Any("error", err))
				failures = append(failures, err)
				continue
			}
			result.MarkedExpired++
			continue
		}
		result.Expiring++
		result.PerLocation[b.LocationID]++
	}

	j.metrics().ResetExpiring()
	locationIDs := make([]int64, 0, len(result.PerLocation))
	for id := range result.PerLocation {
		locationIDs = append(locationIDs, id)
	}
	sort.Slice(locationIDs, func(a, b int) bool { return locationIDs[a] < locationIDs[b] })
	for _, id := range locationIDs {
		count := result.PerLocation[id]
		j.metrics().SetExpiring(id, count)
		logger.Warn("batches nearing expiry", slog.Int64("location_id", id), slog.Int("batches", count))
	}

	logger.Info("near expiry scan finished",
		slog.Int("expiring", result.Expiring),
		slog.Int("marked_expired", result.MarkedExpired))
	if len(failures) > 0 {
		return result, fmt.Errorf("near expiry scan: %w", errors.Join(failures...))
	}
	return result, nil
}

func (j *NearExpiryScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskNearExpiryScan))
	}
	return slog.Default().With(slog.String("job", TaskNearExpiryScan))
}

func (j *NearExpiryScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *NearExpiryScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
