package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/energynexus/nexus-cli/internal/export"
	"github.com/energynexus/nexus-cli/internal/models"
	"github.com/spf13/cobra"
)

var (
	exportView   viewFlags
	exportOut    string
	exportFormat string
	exportPrint  bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the filtered readings",
	Long: `Fetches the current report and exports the readings that match the view
flags. Without --out the export is written to stdout.

Formats: csv (UTF-8 with BOM), json, ndjson, xlsx. The format is inferred
from the --out extension when --format is not given.

Examples:
  nexus export --out readings.csv
  nexus export --attr holiday --value Yes --out holidays.xlsx
  nexus export --format ndjson --search friday`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportView.register(exportCmd, 0)
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Output file (stdout if not set)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "Output format: csv|json|ndjson|xlsx")
	exportCmd.Flags().BoolVar(&exportPrint, "print", false, "Also print to stdout when writing a file")
}

func runExport(cmd *cobra.Command, args []string) error {
	sel, err := exportView.selection()
	if err != nil {
		return err
	}
	var format export.Format
	if exportFormat != "" {
		if format, err = export.ParseFormat(exportFormat); err != nil {
			return err
		}
	}

	var writers []export.Writer
	if exportOut != "" {
		fw, err := export.NewFileWriter(exportOut, format)
		if err != nil {
			return fmt.Errorf("failed to create file writer: %w", err)
		}
		writers = append(writers, fw)
	}
	if exportOut == "" || exportPrint {
		if format == "" {
			format = export.FormatCSV
		}
		if format == export.FormatXLSX && exportOut == "" {
			return fmt.Errorf("xlsx output needs --out")
		}
		writers = append(writers, export.NewStreamWriter(cmd.OutOrStdout(), format))
	}
	writer := export.NewMultiWriter(writers...)
	defer writer.Close()

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

	view := truncate(sel.Apply(m.Snapshot().Readings), exportView.limit)
	written, err := writeExport(writer, view, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if written && exportOut != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d readings to %s\n", len(view), exportOut)
	}
	return nil
}

// writeExport writes view and reports whether anything was written. An empty
// view only prints a notice.
func writeExport(w export.Writer, view []models.Reading, notice io.Writer) (bool, error) {
	if err := w.Write(view); err != nil {
		if errors.Is(err, export.ErrNoData) {
			fmt.Fprintln(notice, "Nothing to export: no readings match the current view")
			return false, nil
		}
		return false, fmt.Errorf("failed to export: %w", err)
	}
	return true, nil
}
