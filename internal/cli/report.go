package cli

import (
	"fmt"

	"github.com/energynexus/nexus-cli/internal/filter"
	"github.com/spf13/cobra"
)

var (
	reportView   viewFlags
	reportValues bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the current system report",
	Long: `Fetches the full report once and prints system statistics, the AI insight
and the recent readings, filtered by the view flags.

Examples:
  nexus report
  nexus report --attr hvac --value On
  nexus report --attr temperature --min 20 --max 24 --search monday
  nexus report --attr dayOfWeek --values`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

var weeklyCmd = &cobra.Command{
	Use:   "weekly",
	Short: "Show average consumption per weekday",
	Args:  cobra.NoArgs,
	RunE:  runWeekly,
}

func init() {
	reportView.register(reportCmd, 0)
	reportCmd.Flags().BoolVar(&reportValues, "values", false, "List the values --attr takes in the current readings and exit")
}

func runReport(cmd *cobra.Command, args []string) error {
	sel, err := reportView.selection()
	if err != nil {
		return err
	}
	if reportValues && reportView.attr == "" {
		return fmt.Errorf("--values requires --attr")
	}

	a := newApp()
	defer a.close()
	if _, err := a.requireSession(); err != nil {
		return err
	}

	m := a.newMonitor()
	defer m.Close()
	if _, err := m.FetchReport(cmd.Context()); err != nil {
		return a.sessionError(fmt.Errorf("failed to fetch report: %w", err))
	}
	if err := m.SyncStatus(cmd.Context()); err != nil {
		return a.sessionError(fmt.Errorf("failed to read simulation status: %w", err))
	}

	snap := m.Snapshot()
	ui := NewUI(cmd.OutOrStdout(), globalOpts.NoColor)
	if reportValues {
		values, err := attributeValues(snap.Readings, reportView.attr)
		if err != nil {
			return err
		}
		for _, v := range values {
			ui.Printf("%s\n", v)
		}
		return nil
	}
	ui.Printf("Status: %s\n\n", ui.status(snap.Status))
	ui.Stats(snap.Stats)
	ui.Printf("\n")
	ui.Insight(snap.Insight)
	ui.Printf("\n")

	view := sel.Apply(snap.Readings)
	ui.Summary(filter.Summarize(view), len(snap.Readings))
	ui.Readings(truncate(view, reportView.limit))
	return nil
}

func runWeekly(cmd *cobra.Command, args []string) error {
	a := newApp()
	defer a.close()
	if _, err := a.requireSession(); err != nil {
		return err
	}

	m := a.newMonitor()
	defer m.Close()
	stats, err := m.FetchWeekly(cmd.Context())
	if err != nil {
		return a.sessionError(fmt.Errorf("failed to fetch weekly stats: %w", err))
	}
	NewUI(cmd.OutOrStdout(), globalOpts.NoColor).Weekly(stats)
	return nil
}
