package store

import (
	"context"

	"github.com/nhle/oohrelay/internal/model"
)

// Ledger records what each run did and which calls it relayed.
type Ledger interface {
	// StartRun inserts a run in the running state. An empty ID is
	// replaced with a new UUID, which is returned.
	StartRun(ctx context.Context, run model.Run) (string, error)

	// FinishRun stores the final counts and outcome of a run.
	FinishRun(ctx context.Context, run model.Run) error

	// RecordDispatches stores sent calls in one transaction.
	RecordDispatches(ctx context.Context, ds []model.Dispatch) error

	// RecentRuns returns up to limit runs, newest first.
	RecentRuns(ctx context.Context, limit int) ([]model.Run, error)

	// DispatchesForRun returns a run's dispatches in send order.
	DispatchesForRun(ctx context.Context, runID string) ([]model.Dispatch, error)

	// DispatchedReferences returns the references sent on runDate, for
	// spotting duplicate relays.
	DispatchedReferences(ctx context.Context, runDate string) ([]string, error)

	Close() error
}
