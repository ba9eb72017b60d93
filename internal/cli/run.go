package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/oohrelay/internal/credential"
	"github.com/nhle/oohrelay/internal/logging"
	"github.com/nhle/oohrelay/internal/model"
	"github.com/nhle/oohrelay/internal/relay"
	"github.com/nhle/oohrelay/internal/source/email"
	"github.com/nhle/oohrelay/internal/store"
	"github.com/nhle/oohrelay/internal/theme"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Relay today's out-of-hours calls",
	Long: `Fetch the mailbox, locate today's export, record the call count and
send every call to the service desk.

Exits successfully without sending anything when today's run already
succeeded, when no export for today has arrived yet, or when the export
holds no calls.`,
	Args: cobra.NoArgs,
	RunE: runRelay,
}

func runRelay(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closer, err := logging.New(cfg.Log, cfg.Debug, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("opening log: %w", err)
	}
	defer closer.Close()

	password, err := credential.ResolvePassword(cfg.Account.Password, cfg.Account.Username)
	if err != nil {
		return fmt.Errorf("resolving mailbox password: %w", err)
	}

	deps := relay.Deps{
		Fetcher: email.NewIMAPClient(cfg.IMAP, cfg.Account.Username, password, logger),
		Sender:  email.NewSMTPSender(cfg.SMTP, cfg.Account.Username, password, logger),
	}
	if ledger, err := openLedger(cfg); err != nil {
		logger.Warn("run ledger unavailable", "path", cfg.LedgerDB, "error", err)
	} else {
		defer ledger.Close()
		deps.Ledger = ledger
	}

	runner, err := relay.New(cfg, deps, logger, time.Now())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := runner.Run(ctx)
	if err != nil {
		logger.Error("run failed", "error", err)
		return err
	}

	printReport(cmd, report, logger)
	return nil
}

func openLedger(cfg *model.AppConfig) (*store.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.LedgerDB), 0o755); err != nil {
		return nil, err
	}
	return store.NewSQLiteStore(cfg.LedgerDB)
}

func printReport(cmd *cobra.Command, r *relay.Report, logger *slog.Logger) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s: %d of %d calls sent\n",
		r.Date, theme.OutcomeStyle(r.Outcome).Render(r.Outcome), r.Sent, r.Calls)
	if len(r.Skipped) > 0 {
		logger.Warn("calls skipped", "callrefs", r.Skipped)
		fmt.Fprintln(out, theme.HelpStyle.Render(fmt.Sprintf("skipped: %v", r.Skipped)))
	}
}
