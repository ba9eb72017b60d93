package relay

import (
	"context"
	"time"

	"github.com/nhle/oohrelay/internal/model"
)

// The ledger is an audit trail; failures to write it are logged and
// never change a run's outcome.

func (r *Runner) startLedger(ctx context.Context, report *Report) {
	if r.deps.Ledger == nil {
		return
	}
	id, err := r.deps.Ledger.StartRun(ctx, model.Run{
		RunDate:   r.today.Format(time.DateOnly),
		StartedAt: time.Now(),
	})
	if err != nil {
		r.logger.Warn("ledger: starting run", "error", err)
		return
	}
	report.RunID = id
}

func (r *Runner) finishLedger(ctx context.Context, report *Report, runErr error) {
	if r.deps.Ledger == nil || report.RunID == "" {
		return
	}
	run := model.Run{
		ID:         report.RunID,
		Attachment: report.Attachment,
		CallCount:  report.Calls,
		SentCount:  report.Sent,
		Outcome:    report.Outcome,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := r.deps.Ledger.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		r.logger.Warn("ledger: finishing run", "error", err)
	}
}

func (r *Runner) recordDispatches(
	ctx context.Context, runID string, sent []model.RenderedMessage,
) {
	if r.deps.Ledger == nil || runID == "" || len(sent) == 0 {
		return
	}
	now := time.Now()
	ds := make([]model.Dispatch, 0, len(sent))
	for _, m := range sent {
		ds = append(ds, model.Dispatch{
			RunID:     runID,
			Reference: m.Reference,
			Status:    m.Status,
			Subject:   m.Subject,
			Recipient: r.cfg.Target(),
			SentAt:    now,
		})
	}
	if err := r.deps.Ledger.RecordDispatches(context.WithoutCancel(ctx), ds); err != nil {
		r.logger.Warn("ledger: recording dispatches", "error", err)
	}
}

// warnDuplicates flags calls already relayed earlier the same day, which
// happens when the marker was removed by hand. They are still sent.
func (r *Runner) warnDuplicates(ctx context.Context, msgs []model.RenderedMessage) {
	if r.deps.Ledger == nil {
		return
	}
	refs, err := r.deps.Ledger.DispatchedReferences(ctx, r.today.Format(time.DateOnly))
	if err != nil {
		r.logger.Warn("ledger: reading earlier dispatches", "error", err)
		return
	}
	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		seen[ref] = true
	}
	for _, m := range msgs {
		if seen[m.Reference] {
			r.logger.Warn("call already relayed today", "callref", m.Reference)
		}
	}
}
