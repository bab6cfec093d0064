package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/energynexus/nexus-cli/internal/filter"
	"github.com/energynexus/nexus-cli/internal/models"
	"github.com/energynexus/nexus-cli/internal/monitor"
)

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiClear  = "\033[H\033[2J"
)

// UI renders command output
type UI struct {
	out     io.Writer
	noColor bool
}

// NewUI creates a UI writing to out
func NewUI(out io.Writer, noColor bool) *UI {
	return &UI{out: out, noColor: noColor}
}

func (u *UI) Printf(format string, args ...any) {
	fmt.Fprintf(u.out, format, args...)
}

func (u *UI) paint(code, s string) string {
	if u.noColor {
		return s
	}
	return code + s + ansiReset
}

func (u *UI) bold(s string) string   { return u.paint(ansiBold, s) }
func (u *UI) red(s string) string    { return u.paint(ansiRed, s) }
func (u *UI) green(s string) string  { return u.paint(ansiGreen, s) }
func (u *UI) yellow(s string) string { return u.paint(ansiYellow, s) }

// clear moves to the top of the terminal and erases it
func (u *UI) clear() {
	if !u.noColor {
		fmt.Fprint(u.out, ansiClear)
	}
}

func (u *UI) status(s models.SystemStatus) string {
	switch s {
	case models.StatusStreaming:
		return u.green(string(s))
	case models.StatusProcessing:
		return u.yellow(string(s))
	case models.StatusError:
		return u.red(string(s))
	case "":
		return "UNKNOWN"
	}
	return string(s)
}

func (u *UI) Stats(s models.Stats) {
	u.Printf("%s\n", u.bold("System"))
	u.Printf("  Avg temperature:   %.1f °C\n", s.AverageTemperature)
	u.Printf("  Total consumption: %.2f kWh\n", s.TotalEnergyConsumption)
	u.Printf("  Peak load:         %.2f kWh\n", s.PeakLoad)
	u.Printf("  Records:           %d\n", s.TotalRecords)
}

func (u *UI) Insight(in models.AIInsight) {
	u.Printf("%s\n", u.bold("Insight"))
	if in.AnomalyDetected {
		u.Printf("  %s  deviation %.1f%%\n", u.red("ANOMALY"), in.DeviationPercent)
	} else {
		u.Printf("  %s  deviation %.1f%%\n", u.green("normal"), in.DeviationPercent)
	}
	u.Printf("  Expected %.2f kWh, actual %.2f kWh\n", in.ExpectedValue, in.ActualValue)
	if in.OptimizationSuggestion != "" {
		u.Printf("  %s\n", in.OptimizationSuggestion)
	}
}

// Readings prints a table of readings, newest first as given
func (u *UI) Readings(readings []models.Reading) {
	if len(readings) == 0 {
		u.Printf("No readings match.\n")
		return
	}
	tw := tabwriter.NewWriter(u.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIMESTAMP\tTEMP\tHUM\tAREA\tOCC\tHVAC\tLIGHT\tRENEW\tDAY\tHOLIDAY\tENERGY")
	for _, r := range readings {
		fmt.Fprintf(tw, "%s\t%s\t%.1f\t%.1f\t%s\t%d\t%s\t%s\t%.2f\t%s\t%s\t%.2f\n",
			r.ID,
			models.FormatTimestamp(r.Timestamp),
			r.Temperature,
			r.Humidity,
			models.FormatFloat(r.SquareFootage),
			r.Occupancy,
			models.OnOff(r.HVACOn),
			models.OnOff(r.LightingOn),
			r.RenewableEnergy,
			r.DayOfWeek,
			models.YesNo(r.Holiday),
			r.EnergyConsumption,
		)
	}
	tw.Flush()
}

func (u *UI) Summary(s filter.Summary, total int) {
	u.Printf("%s %d of %d readings", u.bold("View:"), s.Count, total)
	if s.Count > 0 {
		u.Printf("  mean %.1f °C  total %.2f kWh  peak %.2f  median %.2f  p95 %.2f",
			s.MeanTemperature, s.TotalConsumption, s.PeakConsumption, s.MedianConsumption, s.P95Consumption)
	}
	u.Printf("\n")
}

// Weekly prints a bar chart of average consumption per weekday
func (u *UI) Weekly(stats []models.WeeklyStat) {
	if len(stats) == 0 {
		u.Printf("No weekly statistics yet.\n")
		return
	}
	peak := 0.0
	for _, s := range stats {
		peak = max(peak, s.AvgConsumption)
		if s.ExpectedConsumption != nil {
			peak = max(peak, *s.ExpectedConsumption)
		}
	}
	tw := tabwriter.NewWriter(u.out, 0, 0, 2, ' ', 0)
	for _, s := range stats {
		score := 0.0
		if peak > 0 {
			score = s.AvgConsumption / peak
		}
		line := fmt.Sprintf("%s\t%s\t%.2f", s.Day, renderBar(score, 30), s.AvgConsumption)
		if s.ExpectedConsumption != nil {
			line += fmt.Sprintf("\texpected %.2f", *s.ExpectedConsumption)
		}
		if s.RenewableContribution != nil {
			line += fmt.Sprintf("\trenewable %.2f", *s.RenewableContribution)
		}
		fmt.Fprintln(tw, line)
	}
	tw.Flush()
}

func (u *UI) Users(users []models.User) {
	tw := tabwriter.NewWriter(u.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tEMAIL\tROLE")
	for _, usr := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", usr.ID, usr.Username, usr.Email, usr.Role)
	}
	tw.Flush()
}

// Dashboard renders the live view of a monitor snapshot
func (u *UI) Dashboard(snap monitor.Snapshot, sel *filter.Selection, limit int) {
	u.clear()
	live := u.green("live")
	if !snap.Live {
		live = u.yellow("offline")
	}
	u.Printf("%s  status %s  stream %s  updated %s\n",
		u.bold("Nexus"), u.status(snap.Status), live, snap.UpdatedAt.Format("15:04:05"))
	if snap.LastError != nil {
		u.Printf("%s %v\n", u.red("error:"), snap.LastError)
	}
	if snap.StreamError != nil {
		u.Printf("%s %v\n", u.red("stream:"), snap.StreamError)
	}
	u.Printf("\n")
	u.Stats(snap.Stats)
	u.Printf("\n")
	u.Insight(snap.Insight)
	u.Printf("\n")

	view := sel.Apply(snap.Readings)
	u.Summary(filter.Summarize(view), len(snap.Readings))
	u.Readings(truncate(view, limit))
	if len(snap.Weekly) > 0 {
		u.Printf("\n%s\n", u.bold("Weekly average"))
		u.Weekly(snap.Weekly)
	}
}

func truncate(readings []models.Reading, limit int) []models.Reading {
	if limit > 0 && len(readings) > limit {
		return readings[:limit]
	}
	return readings
}

func renderBar(score float64, width int) string {
	filled := int(score * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
