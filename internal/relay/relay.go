// Package relay runs the daily out-of-hours batch: fetch the export,
// extract its calls, record the count and relay each call by mail.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nhle/oohrelay/internal/catalog"
	"github.com/nhle/oohrelay/internal/marker"
	"github.com/nhle/oohrelay/internal/model"
	"github.com/nhle/oohrelay/internal/pipeline"
	"github.com/nhle/oohrelay/internal/source"
	"github.com/nhle/oohrelay/internal/stats"
	"github.com/nhle/oohrelay/internal/store"
)

// Display names on relayed mail.
const (
	SenderName    = "Watchman"
	RecipientName = "Servicedesk"
)

// Deps are the collaborators a Runner talks to. Ledger may be nil.
type Deps struct {
	Fetcher source.Fetcher
	Sender  source.Sender
	Ledger  store.Ledger
}

// Report summarises one run.
type Report struct {
	RunID      string
	Date       string
	Outcome    string
	Attachment string
	Calls      int
	Sent       int

	// Skipped holds references of calls whose rendering failed.
	Skipped []string
}

// Runner holds everything one invocation needs. Build a new one per run.
type Runner struct {
	cfg    *model.AppConfig
	deps   Deps
	logger *slog.Logger
	today  time.Time

	locator   *pipeline.Locator
	extractor *pipeline.Extractor
	renderer  *pipeline.Renderer
	stats     *stats.Log
	marker    *marker.Marker
}

// New builds a Runner for the day containing today.
func New(
	cfg *model.AppConfig, deps Deps, logger *slog.Logger, today time.Time,
) (*Runner, error) {
	renderer, err := pipeline.NewRenderer(cfg.Template)
	if err != nil {
		return nil, err
	}

	return &Runner{
		cfg:       cfg,
		deps:      deps,
		logger:    logger,
		today:     today,
		locator:   pipeline.NewLocator(cfg.AttachmentDir, cfg.AttachmentExtensions, logger),
		extractor: pipeline.NewExtractor(catalog.Default(), today.Location(), logger),
		renderer:  renderer,
		stats:     stats.NewLog(cfg.StatsFile),
		marker:    marker.New(cfg.MarkerDir, cfg.MarkerPrefix),
	}, nil
}

func withTimeout(ctx context.Context, secs int) (context.Context, context.CancelFunc) {
	if secs <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(secs)*time.Second)
}

// Run executes the batch once. "Nothing to do" outcomes (already ran
// today, no attachment yet, no calls) return a Report and a nil error.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{Date: pipeline.FormatDate(r.today)}

	r.logger.Info("starting up", "today", report.Date)
	r.startLedger(ctx, report)

	err := r.run(ctx, report)
	if err != nil {
		report.Outcome = model.OutcomeFailed
	}
	r.finishLedger(ctx, report, err)
	return report, err
}

func (r *Runner) run(ctx context.Context, report *Report) error {
	date := report.Date

	done, err := r.marker.Exists(date)
	if err != nil {
		return err
	}
	if done {
		r.logger.Warn("successfully ran earlier, terminating")
		report.Outcome = model.OutcomeAlreadyRan
		return nil
	}

	fetchCtx, cancel := withTimeout(ctx, r.cfg.Timeouts.FetchSec)
	msgs, err := r.deps.Fetcher.FetchAllMessages(fetchCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("retrieving mail: %w", err)
	}

	located := r.locator.Locate(msgs, date)
	switch located.State {
	case pipeline.StateNotFound:
		r.logger.Warn("no xml retrieved, terminating")
		report.Outcome = model.OutcomeNoAttachment
		return nil
	case pipeline.StateFailed:
		return located.Err
	}
	report.Attachment = located.Value

	calls, err := r.extractor.ExtractFile(r.locator.Path(located.Value))
	if err != nil {
		return err
	}
	report.Calls = len(calls)

	if err := r.stats.Record(r.today, len(calls)); err != nil {
		return fmt.Errorf("recording stats: %w", err)
	}

	if len(calls) == 0 {
		r.logger.Warn("no calls for today, terminating")
		report.Outcome = model.OutcomeNoCalls
		return r.marker.Mark(date)
	}

	rendered, skipped, err := r.renderAll(calls)
	report.Skipped = skipped
	if err != nil {
		return err
	}

	r.warnDuplicates(ctx, rendered)

	sent, err := r.send(ctx, rendered)
	report.Sent = sent
	r.recordDispatches(ctx, report.RunID, rendered[:sent])
	if err != nil {
		return err
	}

	if err := r.marker.Mark(date); err != nil {
		return err
	}

	report.Outcome = model.OutcomeSent
	r.logger.Info("calls logged today, process complete", "count", sent)
	return nil
}

// renderAll renders every call in order. Under the skip policy a failed
// call is logged and left out; under abort the first failure stops the
// batch before anything is sent. Either way a batch in which no call
// renders fails, so the day is not marked done.
func (r *Runner) renderAll(
	calls []model.Call,
) ([]model.RenderedMessage, []string, error) {
	r.logger.Debug("converting calls to emails")

	out := make([]model.RenderedMessage, 0, len(calls))
	var skipped []string
	var firstErr error
	for i, c := range calls {
		r.logger.Debug("converting call",
			"n", i+1, "of", len(calls), "user", c.Requester)

		msg, err := r.renderer.Render(c)
		if err != nil {
			if r.cfg.TemplateErrorPolicy == model.PolicyAbort {
				return nil, skipped, err
			}
			r.logger.Error("skipping call", "callref", c.Reference, "error", err)
			skipped = append(skipped, c.Reference)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out = append(out, msg)
	}

	if len(out) == 0 && firstErr != nil {
		return nil, skipped, fmt.Errorf("none of %d calls rendered: %w", len(calls), firstErr)
	}
	return out, skipped, nil
}

func (r *Runner) send(ctx context.Context, msgs []model.RenderedMessage) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}

	target := r.cfg.Target()
	r.logger.Info("preparing calls", "count", len(msgs), "target", target)

	from := model.Address{Name: SenderName, Address: r.cfg.Account.Address}
	to := model.Address{Name: RecipientName, Address: target}

	sendCtx, cancel := withTimeout(ctx, r.cfg.Timeouts.SendSec)
	defer cancel()

	sent, err := r.deps.Sender.SendMessages(sendCtx, from, to, msgs)
	if sent > len(msgs) {
		sent = len(msgs)
	}
	if err != nil {
		return sent, fmt.Errorf("sending calls (%d of %d sent): %w", sent, len(msgs), err)
	}
	return sent, nil
}

// RenderFile extracts and renders an export without sending anything.
// Render failures are returned alongside the messages that succeeded.
func (r *Runner) RenderFile(path string) ([]model.RenderedMessage, error) {
	calls, err := r.extractor.ExtractFile(path)
	if err != nil {
		return nil, err
	}

	var errs []error
	out := make([]model.RenderedMessage, 0, len(calls))
	for _, c := range calls {
		msg, err := r.renderer.Render(c)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, msg)
	}
	return out, errors.Join(errs...)
}
