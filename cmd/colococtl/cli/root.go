// Package cli implements the colococtl operator commands.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/fx"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/pricing"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/jobs"
)

// RateStore is the slice of fx.Resolver used by the fx commands.
type RateStore interface {
	Lookup(ctx context.Context, from, to string, asOf time.Time) (fx.ExchangeRate, error)
	Upsert(ctx context.Context, in fx.UpsertInput) (fx.ExchangeRate, error)
}

// JobQueue is the slice of the job client and inspector used by jobs commands.
type JobQueue interface {
	EnqueueNearExpiryScan(ctx context.Context, payload jobs.NearExpiryScanPayload) (*asynq.TaskInfo, error)
	InspectQueue(ctx context.Context) (QueueStats, error)
}

// Deps opens backing services on demand so commands that need none (price
// compute) run without a database. Each opener returns a release func.
type Deps struct {
	Rates    func(ctx context.Context) (RateStore, func(), error)
	Jobs     func(ctx context.Context) (JobQueue, func(), error)
	Rounding pricing.RoundingPolicy
	Now      func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// NewRootCommand assembles the command tree.
func NewRootCommand(deps Deps, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "colococtl",
		Short:         "Operational helpers for the coloco inventory service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.AddCommand(newFXCommand(deps), newPriceCommand(deps), newJobsCommand(deps))
	return root
}
