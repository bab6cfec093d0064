package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/energynexus/nexus-cli/internal/config"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, session and backend reachability",
	Long:  `Validates the local environment, checks that the backend answers and reports the stored session.`,
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ui := NewUI(cmd.OutOrStdout(), globalOpts.NoColor)
	cfg := globalOpts.Config
	ok := ui.green("OK  ")
	warn := ui.yellow("WARN")
	fail := ui.red("FAIL")

	ui.Printf("%s\n", ui.bold("Nexus Environment Check"))
	ui.Printf("Go Version:        %s\n", runtime.Version())
	ui.Printf("OS/Arch:           %s/%s\n\n", runtime.GOOS, runtime.GOARCH)

	path := configPath()
	if _, err := os.Stat(path); err == nil {
		ui.Printf("%s config file %s\n", ok, path)
	} else {
		ui.Printf("%s no config file at %s (defaults in use, 'nexus config init' writes one)\n", warn, path)
	}
	ui.Printf("     api %s, timeout %s\n", cfg.API.URL, cfg.API.Timeout)

	a := newApp()
	defer a.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	backendUp := true
	if err := a.client.Ping(ctx); err != nil {
		backendUp = false
		ui.Printf("%s backend unreachable: %v\n", fail, err)
	} else {
		ui.Printf("%s backend answers at %s\n", ok, a.client.BaseURL())
	}

	if sess := a.store.Current(); sess != nil {
		ui.Printf("%s logged in as %s (%s), expires %s\n", ok, displayName(sess.Identity), sess.Identity.Role, sess.Expiry.Local().Format(time.RFC1123))
	} else {
		ui.Printf("%s no stored session (%s)\n", warn, cfg.Session.File)
	}

	if isPortAvailable(cfg.Mock.Host, cfg.Mock.Port) {
		ui.Printf("%s mock backend port %d is free ('nexus mock serve')\n", ok, cfg.Mock.Port)
	} else if !backendUp {
		ui.Printf("%s port %d is in use but does not answer as a backend\n", warn, cfg.Mock.Port)
	}
	ui.Printf("     config dir %s\n\n", config.Dir())

	if !backendUp {
		return fmt.Errorf("backend check failed")
	}
	ui.Printf("Environment check complete\n")
	return nil
}
