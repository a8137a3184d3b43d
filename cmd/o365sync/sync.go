package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/beekhof/o365sync/internal/auth"
	"github.com/beekhof/o365sync/internal/calendar"
	"github.com/beekhof/o365sync/internal/config"
	"github.com/beekhof/o365sync/internal/ics"
	"github.com/beekhof/o365sync/internal/sync"
)

var (
	dryRun  bool
	icsPath string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one synchronization pass",
	Long: `Sync reads the upcoming events from the Google Calendar, compares them with
what is already in the Microsoft 365 calendar, and creates or updates events
as needed. Nothing is ever deleted.

The --ics flag exports the planned creates and updates as an iCalendar file.
It is usually combined with --dry-run to review a plan, but also works on a
real run to keep a record of what was written.

Examples:
  o365sync sync                     # sync the next 30 days
  o365sync sync --window-days 7     # sync one week only
  o365sync sync --dry-run           # show what would change, write nothing
  o365sync sync --dry-run --ics plan.ics  # export the plan as iCalendar
  o365sync sync --ics applied.ics   # sync and record the applied changes`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&dryRun, "dry-run", false, "plan only, write nothing to the destination")
	syncCmd.Flags().StringVar(&icsPath, "ics", "", "write the planned changes to this file in iCalendar format (with or without --dry-run)")
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	source, err := newSourceClient(ctx)
	if err != nil {
		return err
	}

	session, err := auth.NewSessionStore(cfg.O365SessionPath()).Load()
	if err != nil {
		return err
	}
	target, err := calendar.NewOutlookClient(session)
	if err != nil {
		return err
	}

	syncer := sync.NewSyncer(source, target, cfg.SyncWindowDays, logger)
	actions, err := syncer.Plan(ctx)
	if err != nil {
		return describeSyncError(err)
	}

	if icsPath != "" {
		if err := writePlanFile(icsPath, actions); err != nil {
			return err
		}
		logger.Info("wrote plan", zap.String("path", icsPath), zap.Int("actions", len(actions)))
	}

	if dryRun {
		for _, action := range actions {
			fmt.Printf("%-6s  %s  %s\n", action.Action, action.Payload.Start.DateTime, action.Payload.Subject)
		}
		return nil
	}

	summary, err := syncer.Apply(ctx, actions)
	if err != nil {
		return describeSyncError(err)
	}
	fmt.Println(summary)
	return nil
}

// describeSyncError turns a Graph or Google 401 into an actionable message.
func describeSyncError(err error) error {
	var remoteErr *calendar.RemoteError
	if errors.As(err, &remoteErr) && remoteErr.IsAuth() {
		return fmt.Errorf("authentication failed, run 'o365sync login' again or delete the stored Google token to re-authorize: %w", err)
	}
	return err
}

// newSourceClient authenticates against Google and returns the calendar
// client. The OAuth token is cached under the credentials directory; the
// first run walks the user through the consent flow.
func newSourceClient(ctx context.Context) (*calendar.GoogleClient, error) {
	clientID, clientSecret, err := config.LoadGoogleCredentials(cfg.GoogleCredentialsPath)
	if err != nil {
		return nil, err
	}

	oauthConfig := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  "http://127.0.0.1:8080", // Will be updated dynamically by auth flow
		Scopes: []string{
			"https://www.googleapis.com/auth/calendar.readonly",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
	}

	if err := cfg.EnsureCredentialsDir(); err != nil {
		return nil, err
	}
	tokenStore := auth.NewFileTokenStore(cfg.GmailTokenPath())
	httpClient, err := auth.GetAuthenticatedClient(ctx, oauthConfig, tokenStore)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate Google account: %w", err)
	}
	return calendar.NewGoogleClient(ctx, httpClient)
}

func writePlanFile(path string, actions []sync.PlannedAction) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create plan file: %w", err)
	}
	defer f.Close()
	return ics.WritePlan(f, actions)
}
