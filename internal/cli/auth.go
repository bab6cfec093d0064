package cli

import (
	"fmt"
	"time"

	"github.com/energynexus/nexus-cli/internal/api"
	"github.com/energynexus/nexus-cli/internal/models"
	"github.com/spf13/cobra"
)

var (
	loginEmail    string
	loginPassword string

	registerUsername string
	registerEmail    string
	registerPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session",
	Long: `Authenticates against the backend and stores the session so later
commands can reuse it until it expires.

Examples:
  nexus login --email admin@nexus.local
  NEXUS_PASSWORD=secret nexus login --email user@nexus.local`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	Long:  `Creates a USER account. Registration does not log you in.`,
	Args:  cobra.NoArgs,
	RunE:  runRegister,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the stored session",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the stored identity",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email (required)")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Password (prompted when omitted)")
	loginCmd.MarkFlagRequired("email")

	registerCmd.Flags().StringVar(&registerUsername, "username", "", "Username, 2 to 50 characters (required)")
	registerCmd.Flags().StringVar(&registerEmail, "email", "", "Account email (required)")
	registerCmd.Flags().StringVar(&registerPassword, "password", "", "Password, 6 to 100 characters (prompted when omitted)")
	registerCmd.MarkFlagRequired("username")
	registerCmd.MarkFlagRequired("email")
}

func runLogin(cmd *cobra.Command, args []string) error {
	if err := models.ValidateEmail(loginEmail); err != nil {
		return err
	}
	password, err := readPassword(cmd, loginPassword)
	if err != nil {
		return err
	}

	a := newApp()
	defer a.close()

	sess, err := a.store.Login(cmd.Context(), loginEmail, password)
	if err != nil {
		if api.HasCode(err, api.CodeInvalidCredentials) {
			return fmt.Errorf("invalid email or password")
		}
		return fmt.Errorf("login failed: %w", err)
	}

	ui := NewUI(cmd.OutOrStdout(), globalOpts.NoColor)
	ui.Printf("Logged in as %s (%s), session valid until %s\n",
		ui.bold(displayName(sess.Identity)), sess.Identity.Role, sess.Expiry.Local().Format(time.RFC1123))
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	password, err := readPassword(cmd, registerPassword)
	if err != nil {
		return err
	}
	reg := models.Registration{
		Username: registerUsername,
		Email:    registerEmail,
		Password: password,
	}
	if err := reg.Validate(); err != nil {
		return err
	}

	a := newApp()
	defer a.close()

	if err := a.store.Register(cmd.Context(), reg); err != nil {
		switch {
		case api.HasCode(err, api.CodeEmailTaken):
			return fmt.Errorf("email %s is already registered", reg.Email)
		case api.HasCode(err, api.CodeUsernameTaken):
			return fmt.Errorf("username %s is already taken", reg.Username)
		}
		return fmt.Errorf("registration failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Registered %s. Log in with 'nexus login --email %s'.\n", reg.Username, reg.Email)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	a := newApp()
	defer a.close()

	sess := a.store.Current()
	if sess == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
		return nil
	}
	if err := a.store.Logout(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged out %s.\n", displayName(sess.Identity))
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	a := newApp()
	defer a.close()

	sess, err := a.requireSession()
	if err != nil {
		return err
	}
	ui := NewUI(cmd.OutOrStdout(), globalOpts.NoColor)
	ui.Printf("User:     %s\n", displayName(sess.Identity))
	ui.Printf("Email:    %s\n", sess.Identity.Email)
	ui.Printf("Role:     %s\n", sess.Identity.Role)
	ui.Printf("Expires:  %s (in %s)\n", sess.Expiry.Local().Format(time.RFC1123), time.Until(sess.Expiry).Round(time.Minute))
	ui.Printf("Backend:  %s\n", a.client.BaseURL())
	return nil
}

func displayName(u models.User) string {
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}
