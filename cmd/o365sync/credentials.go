package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/beekhof/o365sync/internal/secrets"
)

var credentialsCmd = &cobra.Command{
	Use:   "save-credentials",
	Short: "Store the account email addresses in the system keychain",
	Long: `Save-credentials writes the Google and Microsoft 365 account addresses to
the operating system keychain. Later runs pick them up automatically, so
they do not need to live in the config file or on the command line.

Example:
  o365sync save-credentials --gmail-email alice@gmail.com --o365-email alice@example.com`,
	RunE: runSaveCredentials,
}

func runSaveCredentials(_ *cobra.Command, _ []string) error {
	if cfg.GmailEmail == "" || cfg.O365Email == "" {
		return fmt.Errorf("both --gmail-email and --o365-email are required")
	}
	if err := secrets.NewStore().SaveAccounts(cfg.GmailEmail, cfg.O365Email); err != nil {
		return err
	}
	fmt.Println("Credentials saved.")
	return nil
}
