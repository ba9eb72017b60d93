package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/oohrelay/internal/logging"
	"github.com/nhle/oohrelay/internal/relay"
	"github.com/nhle/oohrelay/internal/theme"
)

var previewCmd = &cobra.Command{
	Use:   "preview <export.xml>",
	Short: "Render an export without sending anything",
	Long: `Parse a saved export with the configured template and print each
message as it would be relayed. No mail is fetched or sent, and neither
the stats log nor the daily marker is touched.`,
	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

func runPreview(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logging.Level(cfg.Debug),
	}))

	runner, err := relay.New(cfg, relay.Deps{}, logger, time.Now())
	if err != nil {
		return err
	}

	msgs, renderErr := runner.RenderFile(args[0])

	out := cmd.OutOrStdout()
	for i, m := range msgs {
		fmt.Fprintf(out, "%s %s\n", theme.HeaderStyle.Render(fmt.Sprintf("%d/%d", i+1, len(msgs))), m.Subject)
		fmt.Fprintln(out, theme.PreviewStyle.Render(m.Body))
	}
	fmt.Fprintln(out, theme.HelpStyle.Render(fmt.Sprintf("%d messages", len(msgs))))

	return renderErr
}
