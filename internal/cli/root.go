package cli

import (
	"fmt"
	"os"

	"github.com/energynexus/nexus-cli/internal/config"
	"github.com/energynexus/nexus-cli/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "nexus",
	Short: "Nexus CLI - live building-energy telemetry client",
	Long: `Nexus CLI connects to the building-energy telemetry service, keeps a live
view of readings, statistics and anomaly insights, and exports what you see.

Administrators can also drive the backend simulation, ingest datasets
and manage user roles. 'nexus mock serve' runs a local backend for development.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadGlobals,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalOpts.ConfigPath, "config", "", "Config file (default $NEXUS_CONFIG or user config dir)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.APIURL, "api-url", "", "Backend API base URL")
	rootCmd.PersistentFlags().StringVar(&globalOpts.LogLevel, "log-level", "", "Log level: debug|info|warn|error")
	rootCmd.PersistentFlags().BoolVar(&globalOpts.NoColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(weeklyCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(adminCmd)
	rootCmd.AddCommand(mockCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadGlobals resolves configuration and installs the logger before any command runs
func loadGlobals(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(globalOpts.ConfigPath)
	if err != nil {
		return err
	}
	if globalOpts.APIURL != "" {
		cfg.API.URL = globalOpts.APIURL
	}
	if globalOpts.LogLevel != "" {
		cfg.Log.Level = globalOpts.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, err := logging.Setup(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}
	globalOpts.Config = cfg
	return nil
}
