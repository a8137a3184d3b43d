package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ErrLoginTimeout indicates that the interactive Microsoft 365 login did not
// complete within its wait budget.
var ErrLoginTimeout = errors.New("Microsoft 365 login timed out")

const (
	o365CalendarURL = "https://outlook.office365.com/calendar/view/month"

	emailFieldSelector    = `input[name="loginfmt"]`
	passwordFieldSelector = `input[name="passwd"]`
	submitButtonSelector  = `#idSIButton9`
)

// BrowserLogin obtains a Microsoft 365 calendar credential by driving a real
// browser through the sign-in pages. The login may block for an extended
// period while the user answers an MFA prompt; Timeout bounds the whole
// operation.
type BrowserLogin struct {
	Email    string
	Password string

	// Timeout bounds the entire login sequence. Zero means DefaultLoginTimeout.
	Timeout time.Duration

	// SettleDelay is how long to wait after the final sign-in click before
	// harvesting cookies, giving the MFA prompt time to clear.
	SettleDelay time.Duration

	logger *zap.Logger
}

// DefaultLoginTimeout is the wait budget for the interactive login.
const DefaultLoginTimeout = 2 * time.Minute

// NewBrowserLogin creates a BrowserLogin for the given account.
func NewBrowserLogin(email, password string, timeout time.Duration, logger *zap.Logger) *BrowserLogin {
	if timeout <= 0 {
		timeout = DefaultLoginTimeout
	}
	return &BrowserLogin{
		Email:       email,
		Password:    password,
		Timeout:     timeout,
		SettleDelay: 2 * time.Second,
		logger:      logger,
	}
}

// Obtain signs the user in to Microsoft 365 and returns the resulting
// Session: the bearer token exposed by the Outlook web client plus the
// browser's session cookies. Returns ErrLoginTimeout when the wait budget is
// exceeded (typically an unanswered MFA prompt).
func (b *BrowserLogin) Obtain(ctx context.Context) (*Session, error) {
	b.logger.Info("starting Microsoft 365 sign-in", zap.String("account", b.Email))

	// The browser must be visible: the user may need to approve an MFA prompt.
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", false),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, b.Timeout)
	defer cancelRun()

	var rawCookies []*network.Cookie
	var bearerToken string

	tasks := chromedp.Tasks{
		chromedp.Navigate(o365CalendarURL),
		chromedp.WaitVisible(emailFieldSelector, chromedp.ByQuery),
		chromedp.SendKeys(emailFieldSelector, b.Email, chromedp.ByQuery),
		chromedp.Click(submitButtonSelector, chromedp.ByQuery),
		chromedp.WaitVisible(passwordFieldSelector, chromedp.ByQuery),
		// The password field rejects input while its entry animation runs.
		chromedp.Sleep(time.Second),
		chromedp.SendKeys(passwordFieldSelector, b.Password, chromedp.ByQuery),
		chromedp.Click(submitButtonSelector, chromedp.ByQuery),
		chromedp.Sleep(b.SettleDelay),
		chromedp.ActionFunc(func(ctx context.Context) error {
			cookies, err := storage.GetCookies().Do(ctx)
			if err != nil {
				return err
			}
			rawCookies = cookies
			return nil
		}),
		chromedp.Evaluate(`window.localStorage.getItem("accessToken") || ""`, &bearerToken),
	}

	if err := chromedp.Run(runCtx, tasks); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrLoginTimeout
		}
		return nil, fmt.Errorf("browser login failed: %w", err)
	}

	session := &Session{
		Email:       b.Email,
		BearerToken: bearerToken,
		Cookies:     make([]Cookie, 0, len(rawCookies)),
		ObtainedAt:  time.Now(),
	}
	for _, c := range rawCookies {
		session.Cookies = append(session.Cookies, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		})
	}

	b.logger.Info("Microsoft 365 sign-in complete",
		zap.Int("cookies", len(session.Cookies)),
		zap.Bool("bearer_token", session.BearerToken != ""))

	return session, nil
}
