package jobs

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/inventory"
	jobmetrics "github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/jobs"
)

type fakeLedger struct {
	batches    []inventory.Batch
	gotDays    int
	qualityFor []int64
}

func (f *fakeLedger) NearExpiry(ctx context.Context, withinDays int, locationIDs []int64) ([]inventory.Batch, error) {
	f.gotDays = withinDays
	return f.batches, nil
}

func (f *fakeLedger) UpdateQuality(ctx context.Context, batchID int64, in inventory.QualityInput) (inventory.Batch, error) {
	f.qualityFor = append(f.qualityFor, batchID)
	return inventory.Batch{ID: batchID, QualityStatus: in.Status}, nil
}

func newScanJob(ledger *fakeLedger) *NearExpiryScanJob {
	job := NewNearExpiryScanJob(ledger, slog.New(slog.NewTextHandler(io.Discard, nil)), jobmetrics.NewMetrics(prometheus.NewRegistry()), 60)
	job.clock = func() time.Time { return time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC) }
	return job
}

func TestNearExpiryScanGroupsByLocation(t *testing.T) {
	ledger := &fakeLedger{batches: []inventory.Batch{
		{ID: 1, LocationID: 2, QualityStatus: inventory.QualityOK, ExpiryDate: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)},
		{ID: 2, LocationID: 2, QualityStatus: inventory.QualityOK, ExpiryDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)},
		{ID: 3, LocationID: 4, QualityStatus: inventory.QualityQuarantine, ExpiryDate: time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)},
		{ID: 4, LocationID: 4, QualityStatus: inventory.QualityOK, ExpiryDate: time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)},
	}}
	job := newScanJob(ledger)

	result, err := job.Run(context.Background(), NearExpiryScanPayload{MarkExpired: true})
	require.NoError(t, err)
	require.Equal(t, 60, ledger.gotDays)
	require.Equal(t, []int64{1}, ledger.qualityFor)
	require.Equal(t, 1, result.MarkedExpired)
	require.Equal(t, 3, result.Expiring)
	require.Equal(t, map[int64]int{2: 1, 4: 2}, result.PerLocation)
}

func TestNearExpiryScanHandleTask(t *testing.T) {
	ledger := &fakeLedger{}
	job := newScanJob(ledger)

	task, err := NewNearExpiryScanTask(NearExpiryScanPayload{WithinDays: 7})
	require.NoError(t, err)
	require.Equal(t, TaskNearExpiryScan, task.Type())
	var payload NearExpiryScanPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, 7, payload.WithinDays)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 7, ledger.gotDays)
	require.Empty(t, ledger.qualityFor)

	err = job.Handle(context.Background(), asynq.NewTask(TaskNearExpiryScan, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
