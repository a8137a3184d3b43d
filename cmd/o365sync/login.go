package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/beekhof/o365sync/internal/auth"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to Microsoft 365 and store the session",
	Long: `Login opens a browser window on the Microsoft 365 sign-in page, fills in the
account address and password, and waits for the login (including any MFA
prompt) to complete. The resulting session is stored under the credentials
directory and reused by 'o365sync sync' until it expires.`,
	RunE: runLogin,
}

func runLogin(cmd *cobra.Command, _ []string) error {
	if cfg.O365Email == "" {
		return fmt.Errorf("no Microsoft 365 account configured, pass --o365-email or set o365_email in the config file")
	}

	password, err := promptPassword(cfg.O365Email)
	if err != nil {
		return err
	}

	login := auth.NewBrowserLogin(cfg.O365Email, password,
		time.Duration(cfg.LoginTimeoutSeconds)*time.Second, logger)
	session, err := login.Obtain(cmd.Context())
	if err != nil {
		return err
	}

	if err := cfg.EnsureCredentialsDir(); err != nil {
		return err
	}
	if err := auth.NewSessionStore(cfg.O365SessionPath()).Save(session); err != nil {
		return err
	}
	logger.Info("stored Microsoft 365 session",
		zap.String("account", cfg.O365Email),
		zap.String("path", cfg.O365SessionPath()))
	return nil
}

func promptPassword(account string) (string, error) {
	fmt.Printf("Password for %s: ", account)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}
