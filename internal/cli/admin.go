package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/energynexus/nexus-cli/internal/models"
	"github.com/energynexus/nexus-cli/internal/monitor"
	"github.com/spf13/cobra"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrative commands (ADMIN role)",
	Long: `Commands that drive the backend simulation and manage data and users.
The backend is asked for the simulation status after every command; purge and
upload are refused while the simulation is streaming.`,
}

var adminStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the simulation status",
	Args:  cobra.NoArgs,
	RunE:  runAdminStatus,
}

var adminStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start streaming the ingested dataset",
	Args:  cobra.NoArgs,
	RunE:  runAdminStart,
}

var adminStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the simulation",
	Args:  cobra.NoArgs,
	RunE:  runAdminStop,
}

var adminPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every stored reading",
	Args:  cobra.NoArgs,
	RunE:  runAdminPurge,
}

var adminUploadCmd = &cobra.Command{
	Use:   "upload <file.csv>",
	Short: "Ingest a CSV dataset",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdminUpload,
}

var adminUsersCmd = &cobra.Command{
	Use:   "users",
	Short: "List accounts",
	Args:  cobra.NoArgs,
	RunE:  runAdminUsers,
}

var adminSetRoleCmd = &cobra.Command{
	Use:   "set-role <email> <USER|ADMIN>",
	Short: "Change an account's role",
	Args:  cobra.ExactArgs(2),
	RunE:  runAdminSetRole,
}

func init() {
	adminCmd.AddCommand(adminStatusCmd)
	adminCmd.AddCommand(adminStartCmd)
	adminCmd.AddCommand(adminStopCmd)
	adminCmd.AddCommand(adminPurgeCmd)
	adminCmd.AddCommand(adminUploadCmd)
	adminCmd.AddCommand(adminUsersCmd)
	adminCmd.AddCommand(adminSetRoleCmd)
}

// newAdminApp restores the session and checks the ADMIN role locally; the
// backend enforces it again.
func newAdminApp() (*app, error) {
	a := newApp()
	if a.store.Current() == nil {
		a.close()
		return nil, errNotLoggedIn
	}
	if _, err := a.store.RequireAdmin(); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func printStatus(cmd *cobra.Command, m *monitor.Monitor) {
	ui := NewUI(cmd.OutOrStdout(), globalOpts.NoColor)
	snap := m.Snapshot()
	ui.Printf("Status:  %s\n", ui.status(snap.Status))
	ui.Printf("Records: %d\n", snap.Stats.TotalRecords)
}

func runAdminStatus(cmd *cobra.Command, args []string) error {
	a, err := newAdminApp()
	if err != nil {
		return err
	}
	defer a.close()

	m := a.newMonitor()
	defer m.Close()
	if err := m.SyncStatus(cmd.Context()); err != nil {
		return a.sessionError(fmt.Errorf("failed to read simulation status: %w", err))
	}
	if _, err := m.FetchReport(cmd.Context()); err != nil {
		return a.sessionError(fmt.Errorf("failed to fetch report: %w", err))
	}
	printStatus(cmd, m)
	return nil
}

func runAdminStart(cmd *cobra.Command, args []string) error {
	return runAdminCommand(cmd, func(m *monitor.Monitor) (string, error) {
		return m.StartSimulation(cmd.Context())
	})
}

func runAdminStop(cmd *cobra.Command, args []string) error {
	return runAdminCommand(cmd, func(m *monitor.Monitor) (string, error) {
		return m.StopSimulation(cmd.Context())
	})
}

func runAdminPurge(cmd *cobra.Command, args []string) error {
	return runAdminCommand(cmd, func(m *monitor.Monitor) (string, error) {
		return m.Purge(cmd.Context())
	})
}

func runAdminUpload(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	return runAdminCommand(cmd, func(m *monitor.Monitor) (string, error) {
		return m.Upload(cmd.Context(), filepath.Base(args[0]), f)
	})
}

// runAdminCommand sends one command and prints the re-synced status
func runAdminCommand(cmd *cobra.Command, send func(*monitor.Monitor) (string, error)) error {
	a, err := newAdminApp()
	if err != nil {
		return err
	}
	defer a.close()

	m := a.newMonitor()
	defer m.Close()

	msg, err := send(m)
	if errors.Is(err, monitor.ErrStreaming) {
		return err
	}
	if msg != "" {
		fmt.Fprintln(cmd.OutOrStdout(), msg)
	}
	if err != nil {
		return a.sessionError(err)
	}
	printStatus(cmd, m)
	return nil
}

func runAdminUsers(cmd *cobra.Command, args []string) error {
	a, err := newAdminApp()
	if err != nil {
		return err
	}
	defer a.close()

	users, err := a.client.Users(cmd.Context())
	if err != nil {
		return a.sessionError(fmt.Errorf("failed to list users: %w", err))
	}
	NewUI(cmd.OutOrStdout(), globalOpts.NoColor).Users(users)
	return nil
}

func runAdminSetRole(cmd *cobra.Command, args []string) error {
	email := args[0]
	if err := models.ValidateEmail(email); err != nil {
		return err
	}
	role, ok := models.ParseRole(args[1])
	if !ok {
		return fmt.Errorf("unknown role %q (expected USER or ADMIN)", args[1])
	}

	a, err := newAdminApp()
	if err != nil {
		return err
	}
	defer a.close()

	msg, err := a.client.ChangeRole(cmd.Context(), email, role)
	if err != nil {
		return a.sessionError(fmt.Errorf("failed to change role: %w", err))
	}
	if msg == "" {
		msg = fmt.Sprintf("%s is now %s", email, role)
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}
