package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/jobs"
)

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
}

// AsynqQueue wraps an Asynq client and inspector.
type AsynqQueue struct {
	client    *jobs.Client
	inspector *asynq.Inspector
}

// NewAsynqQueue connects to the queue behind opts.
func NewAsynqQueue(opts asynq.RedisClientOpt) (*AsynqQueue, error) {
	client, err := jobs.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &AsynqQueue{client: client, inspector: asynq.NewInspector(opts)}, nil
}

// Close releases underlying resources.
func (q *AsynqQueue) Close() error {
	return errors.Join(q.inspector.Close(), q.client.Close())
}

// EnqueueNearExpiryScan submits an expiry scan.
func (q *AsynqQueue) EnqueueNearExpiryScan(ctx context.Context, payload jobs.NearExpiryScanPayload) (*asynq.TaskInfo, error) {
	return q.client.EnqueueNearExpiryScan(ctx, payload)
}

// InspectQueue reports the queue metrics for the default queue.
func (q *AsynqQueue) InspectQueue(ctx context.Context) (QueueStats, error) {
	info, err := q.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
	}
	return stats, nil
}

func newJobsCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs",
	}

	var (
		withinDays  int
		markExpired bool
	)
	scan := &cobra.Command{
		Use:   "near-expiry-scan",
		Short: "Enqueue a near-expiry scan",
		RunE: func(cmd *cobra.Command, args []string) error {
			if withinDays < 0 {
				return errors.New("jobs: --within-days must be >= 0")
			}
			queue, release, err := deps.Jobs(cmd.Context())
			if err != nil {
				return fmt.Errorf("jobs: %w", err)
			}
			defer release()
			info, err := queue.EnqueueNearExpiryScan(cmd.Context(), jobs.NearExpiryScanPayload{
				WithinDays:   withinDays,
				MarkExpired:  markExpired,
				ScheduledFor: deps.now().UTC(),
			})
			if err != nil {
				return fmt.Errorf("jobs: enqueue: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s on %s\n", info.ID, info.Queue)
			return nil
		},
	}
	scan.Flags().IntVar(&withinDays, "within-days", 0, "warning window in days (0 uses the worker default)")
	scan.Flags().BoolVar(&markExpired, "mark-expired", false, "flag batches past expiry as Expired")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show default queue counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			queue, release, err := deps.Jobs(ctx)
			if err != nil {
				return fmt.Errorf("jobs: %w", err)
			}
			defer release()
			s, err := queue.InspectQueue(ctx)
			if err != nil {
				return fmt.Errorf("jobs: inspect: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
				s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry)
			return nil
		},
	}

	cmd.AddCommand(scan, stats)
	return cmd
}
