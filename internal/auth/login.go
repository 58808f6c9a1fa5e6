// internal/auth/login.go
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bogdanrbucur/pal-e3/internal/browser"
	"github.com/bogdanrbucur/pal-e3/internal/config"
	"github.com/bogdanrbucur/pal-e3/internal/metrics"
	"github.com/bogdanrbucur/pal-e3/internal/observability"
	"github.com/bogdanrbucur/pal-e3/internal/palerr"
)

// Login page markup.
const (
	LoginPath        = "/palweblogin/Home/Login"
	UserNameSelector = "#UserName"
	PasswordSelector = "#Password"
	SubmitSelector   = "#btnSubmit"
)

// Flow performs the browser driven login and yields the session cookie.
type Flow struct {
	launcher browser.Launcher
	vendor   config.VendorConfig
	browser  config.BrowserConfig
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// Option configures a Flow.
type Option func(*Flow)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Flow) { f.logger = logger.Named("login") }
}

// WithMetrics records flow outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Flow) { f.metrics = m }
}

// NewFlow creates a login flow for the credentials in vendor.
func NewFlow(launcher browser.Launcher, vendor config.VendorConfig, browserCfg config.BrowserConfig, opts ...Option) *Flow {
	f := &Flow{
		launcher: launcher,
		vendor:   vendor,
		browser:  browserCfg,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Login launches a browser, signs in and returns the validated session
// cookie. The browser is closed on every path, including cancellation.
func (f *Flow) Login(ctx context.Context) (token string, err error) {
	start := time.Now()
	defer func() { f.metrics.ObserveFlow("login", outcome(err), time.Since(start)) }()

	page, err := f.launcher.Launch(ctx)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	defer f.closePage(ctx, page)

	token, err = f.Authenticate(ctx, page)
	if err != nil {
		return "", err
	}
	if err := f.Validate(token); err != nil {
		return "", err
	}
	f.logger.Info("Logged in.", zap.String("user", f.vendor.Username), observability.Secret("cookie", token))
	return token, nil
}

// OpenSession signs in and hands back the still open, authenticated page for
// further navigation. On failure the page is already closed.
func (f *Flow) OpenSession(ctx context.Context) (page browser.Page, err error) {
	start := time.Now()
	defer func() { f.metrics.ObserveFlow("login", outcome(err), time.Since(start)) }()

	page, err = f.launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	token, err := f.Authenticate(ctx, page)
	if err == nil {
		err = f.Validate(token)
	}
	if err != nil {
		f.closePage(ctx, page)
		return nil, err
	}
	return page, nil
}

// Authenticate drives the login form on page and returns the session cookie
// without validating it.
func (f *Flow) Authenticate(ctx context.Context, page browser.Page) (string, error) {
	logger := f.logger.With(zap.String("session_id", page.ID()))
	loginURL := strings.TrimRight(f.vendor.URL, "/") + LoginPath

	if err := page.Goto(ctx, loginURL); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("login: %w", err)
		}
		return "", palerr.NewAuthenticationError("login page unreachable", err)
	}

	if err := page.WaitForSelector(ctx, UserNameSelector, f.browser.NavigationTimeout); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("login: %w", err)
		}
		return "", palerr.NewAuthenticationError("login form not found", err)
	}
	if err := page.TypeInto(ctx, UserNameSelector, f.vendor.Username); err != nil {
		return "", fmt.Errorf("login: enter username: %w", err)
	}
	if err := page.TypeInto(ctx, PasswordSelector, f.vendor.Password); err != nil {
		return "", fmt.Errorf("login: enter password: %w", err)
	}
	if err := page.Click(ctx, SubmitSelector); err != nil {
		return "", fmt.Errorf("login: submit: %w", err)
	}

	if err := f.awaitDashboard(ctx, page, logger); err != nil {
		return "", fmt.Errorf("login: %w", err)
	}

	cookies, err := page.Cookies(ctx)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	return SelectCookie(cookies, f.vendor.CookieName), nil
}

// awaitDashboard waits for the login form to go away after submit. When that
// never happens within the settle timeout it falls back to the fixed delay.
func (f *Flow) awaitDashboard(ctx context.Context, page browser.Page, logger *zap.Logger) error {
	interval := f.browser.SettlePollInterval
	attempts := 0
	if interval > 0 {
		attempts = int(f.browser.SettleTimeout / interval)
	}
	if attempts > 0 {
		res, err := browser.Poller{Sleep: page.Sleep}.Until(ctx, interval, attempts, func(ctx context.Context) (bool, error) {
			present, err := page.Exists(ctx, UserNameSelector)
			if err != nil {
				if ctx.Err() != nil {
					return false, ctx.Err()
				}
				// Redirects tear down the execution context; keep polling.
				return false, nil
			}
			return !present, nil
		})
		if err != nil {
			return err
		}
		if !res.TimedOut {
			logger.Debug("Dashboard ready.", zap.Int("attempts", res.Attempts))
			return nil
		}
	}
	logger.Debug("No readiness signal after submit, using fixed settle delay.", zap.Duration("delay", f.browser.SettleDelay))
	return page.Sleep(ctx, f.browser.SettleDelay)
}

// Validate rejects cookies that do not have the expected length.
func (f *Flow) Validate(token string) error {
	if len(token) != f.vendor.CookieLength {
		return palerr.NewAuthenticationError(
			fmt.Sprintf("session cookie has length %d, want %d", len(token), f.vendor.CookieLength),
			palerr.ErrInvalidCredentials,
		)
	}
	return nil
}

func (f *Flow) closePage(ctx context.Context, page browser.Page) {
	if err := page.Close(browser.Detach(ctx)); err != nil {
		f.logger.Warn("Failed to close login browser.", zap.String("session_id", page.ID()), zap.Error(err))
	}
}

// SelectCookie returns the value of the cookie called name, or of the first
// cookie when none has that name.
func SelectCookie(cookies []browser.Cookie, name string) string {
	for _, c := range cookies {
		if name != "" && c.Name == name {
			return c.Value
		}
	}
	if len(cookies) > 0 {
		return cookies[0].Value
	}
	return ""
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
