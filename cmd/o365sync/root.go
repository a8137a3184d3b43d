package main

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/beekhof/o365sync/internal/config"
	"github.com/beekhof/o365sync/internal/secrets"
)

var (
	cfgFile               string
	verbose               bool
	gmailEmail            string
	o365Email             string
	credentialsDir        string
	googleCredentialsPath string
	windowDays            int

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "o365sync",
	Short: "One-way sync from Google Calendar to a Microsoft 365 calendar",
	Long: `o365sync copies upcoming events from a Google Calendar into a Microsoft 365
calendar. Events already present are updated in place when their title, time
or location changed, and left alone otherwise. The destination is never read
back into Google, and events created by hand in Microsoft 365 are not touched.

Run 'o365sync login' once to store a Microsoft 365 session, then 'o365sync sync'
as often as you like, for example from cron.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.json", "path to JSON config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&gmailEmail, "gmail-email", "", "Google account to sync from (overrides config and GMAIL_EMAIL)")
	rootCmd.PersistentFlags().StringVar(&o365Email, "o365-email", "", "Microsoft 365 account to sync to (overrides config and O365_EMAIL)")
	rootCmd.PersistentFlags().StringVar(&credentialsDir, "credentials-dir", "", "directory for stored tokens and sessions (overrides config and CREDENTIALS_DIR)")
	rootCmd.PersistentFlags().StringVar(&googleCredentialsPath, "google-credentials", "", "path to Google OAuth client secrets JSON (overrides config and GOOGLE_CREDENTIALS_PATH)")
	rootCmd.PersistentFlags().IntVar(&windowDays, "window-days", 0, "how many days ahead to sync (overrides config and SYNC_WINDOW_DAYS)")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(credentialsCmd)
}

// setup loads configuration and builds the logger every command shares.
// A broken config file is logged and ignored so a bad edit cannot take the
// sync down.
func setup(_ *cobra.Command, _ []string) error {
	overrides := config.Overrides{
		GmailEmail:            gmailEmail,
		O365Email:             o365Email,
		CredentialsDir:        credentialsDir,
		GoogleCredentialsPath: googleCredentialsPath,
		SyncWindowDays:        windowDays,
	}

	var cfgErr error
	cfg, cfgErr = config.LoadConfig(cfgFile, overrides)
	if cfgErr != nil && !errors.Is(cfgErr, config.ErrConfigFile) {
		return cfgErr
	}

	var err error
	logger, err = newLogger(verbose, cfg.LogPath)
	if err != nil {
		return err
	}
	if cfgErr != nil {
		logger.Warn("config file unreadable, using defaults", zap.Error(cfgErr))
	}

	fillAccountsFromKeychain()
	return nil
}

// fillAccountsFromKeychain backfills account addresses saved with
// 'save-credentials' when neither flags, env nor config provided them.
func fillAccountsFromKeychain() {
	if cfg.GmailEmail != "" && cfg.O365Email != "" {
		return
	}
	storedGmail, storedO365, err := secrets.NewStore().Accounts()
	if err != nil {
		logger.Debug("keychain unavailable", zap.Error(err))
		return
	}
	if cfg.GmailEmail == "" {
		cfg.GmailEmail = storedGmail
	}
	if cfg.O365Email == "" {
		cfg.O365Email = storedO365
	}
}
