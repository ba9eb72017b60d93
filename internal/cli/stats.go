package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/nhle/oohrelay/internal/model"
	"github.com/nhle/oohrelay/internal/stats"
	"github.com/nhle/oohrelay/internal/theme"
)

var (
	statsDays int
	statsRuns int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show daily call counts and recent runs",
	Long: `Print the most recent lines of the stats log followed by the latest
runs recorded in the run ledger.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().IntVar(&statsDays, "days", 14, "number of stats log lines to show (0 for all)")
	statsCmd.Flags().IntVar(&statsRuns, "runs", 10, "number of ledger runs to show (0 to skip)")
}

func runStats(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	daily, err := stats.NewLog(cfg.StatsFile).Read()
	if err != nil {
		return err
	}
	if statsDays > 0 && len(daily) > statsDays {
		daily = daily[len(daily)-statsDays:]
	}

	fmt.Fprintln(out, theme.HeaderStyle.Render("Daily calls"))
	if len(daily) == 0 {
		fmt.Fprintln(out, theme.HelpStyle.Render("no runs recorded in "+cfg.StatsFile))
	} else {
		writeTable(out, []string{"Date", "Calls"}, dailyRows(daily))
	}

	if statsRuns <= 0 {
		return nil
	}

	ledger, err := openLedger(cfg)
	if err != nil {
		return fmt.Errorf("opening run ledger: %w", err)
	}
	defer ledger.Close()

	runs, err := ledger.RecentRuns(commandContext(cmd), statsRuns)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, theme.HeaderStyle.Render("Recent runs"))
	if len(runs) == 0 {
		fmt.Fprintln(out, theme.HelpStyle.Render("ledger is empty"))
		return nil
	}
	writeTable(out, []string{"Started", "Outcome", "Calls", "Sent", "Attachment", "Error"}, runRows(runs))
	return nil
}

func dailyRows(daily []model.DailyStat) [][]string {
	rows := make([][]string, 0, len(daily))
	for _, d := range daily {
		rows = append(rows, []string{d.Date.Format(time.DateOnly), strconv.Itoa(d.Count)})
	}
	return rows
}

func runRows(runs []model.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.StartedAt.Local().Format(time.DateTime),
			theme.OutcomeStyle(r.Outcome).Render(r.Outcome),
			strconv.Itoa(r.CallCount),
			strconv.Itoa(r.SentCount),
			r.Attachment,
			r.Error,
		})
	}
	return rows
}

func writeTable(w io.Writer, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return theme.TableHeaderStyle
			}
			return theme.CellStyle
		}).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(w, t.Render())
}
