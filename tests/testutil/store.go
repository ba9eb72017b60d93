package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/nhle/oohrelay/internal/model"
	"github.com/nhle/oohrelay/internal/store"
)

// NewTestStore creates an in-memory ledger with all migrations applied.
// It is closed when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// SeedRun records a finished run that relayed one call per reference and
// returns its ID. Zero fields of run take values that suit a successful
// run: outcome sent, counts equal to len(refs).
func SeedRun(t *testing.T, l store.Ledger, run model.Run, refs ...string) string {
	t.Helper()
	ctx := context.Background()

	if run.Outcome == "" {
		run.Outcome = model.OutcomeSent
	}
	if run.CallCount == 0 {
		run.CallCount = len(refs)
	}
	if run.SentCount == 0 {
		run.SentCount = len(refs)
	}

	id, err := l.StartRun(ctx, run)
	if err != nil {
		t.Fatalf("seeding run: %v", err)
	}
	run.ID = id

	if len(refs) > 0 {
		ds := make([]model.Dispatch, 0, len(refs))
		for _, ref := range refs {
			ds = append(ds, model.Dispatch{
				RunID:     id,
				Reference: ref,
				Status:    "Pending",
				Subject:   "Watchman call " + ref,
				Recipient: "servicedesk@example.org",
				SentAt:    time.Now(),
			})
		}
		if err := l.RecordDispatches(ctx, ds); err != nil {
			t.Fatalf("seeding dispatches: %v", err)
		}
	}

	if err := l.FinishRun(ctx, run); err != nil {
		t.Fatalf("finishing seeded run: %v", err)
	}
	return id
}
