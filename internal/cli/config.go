package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/energynexus/nexus-cli/internal/config"
	"github.com/spf13/cobra"
)

// GlobalOptions are shared flags that apply across commands.
type GlobalOptions struct {
	ConfigPath string
	APIURL     string
	LogLevel   string
	NoColor    bool

	// Config is the resolved configuration, set before any command runs
	Config *config.Config
}

var globalOpts = GlobalOptions{}

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the configuration file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long:  `Prints the configuration after the file, .env, environment and flags are applied. Secrets are masked.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

func configPath() string {
	if globalOpts.ConfigPath != "" {
		return globalOpts.ConfigPath
	}
	return config.DefaultPath()
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	data, err := globalOpts.Config.Marshal()
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", configPath(), data)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath()
	if _, err := os.Stat(path); err == nil && !configInitForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to check %s: %w", path, err)
	}
	if err := config.Default().Write(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
