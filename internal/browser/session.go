// internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/bogdanrbucur/pal-e3/internal/config"
	"github.com/bogdanrbucur/pal-e3/internal/metrics"
	"github.com/bogdanrbucur/pal-e3/internal/palerr"
)

// Session is a Page backed by a dedicated Chrome process.
type Session struct {
	id      string
	cfg     config.BrowserConfig
	logger  *zap.Logger
	metrics *metrics.Metrics

	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

var _ Page = (*Session)(nil)

func (s *Session) ID() string { return s.id }

// run executes actions on the tab, bounded by both the caller's ctx and timeout.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := CombineContext(s.tabCtx, ctx)
	defer cancel()
	runCtx, cancelTimeout := withTimeout(runCtx, timeout)
	defer cancelTimeout()
	return chromedp.Run(runCtx, actions...)
}

// shapeError converts a timeout on an element lookup into an
// UnexpectedPageShapeError, unless the caller itself gave up.
func (s *Session) shapeError(ctx context.Context, step, selector string, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return palerr.NewUnexpectedPageShapeError(step, selector, err)
	}
	return fmt.Errorf("%s %q: %w", step, selector, err)
}

func (s *Session) Goto(ctx context.Context, url string) error {
	s.logger.Debug("Navigating", zap.String("url", url))
	if err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.Navigate(url)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (s *Session) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	err := s.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
	return s.shapeError(ctx, "wait", selector, err)
}

func (s *Session) Exists(ctx context.Context, selector string) (bool, error) {
	var nodes []string
	js := fmt.Sprintf(`Array.from(document.querySelectorAll(%q)).map(n => n.tagName)`, selector)
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Evaluate(js, &nodes)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		return false, fmt.Errorf("query %q: %w", selector, err)
	}
	return len(nodes) > 0, nil
}

func (s *Session) TypeInto(ctx context.Context, selector, text string) error {
	err := s.run(ctx, s.cfg.ActionTimeout, chromedp.SendKeys(selector, text, chromedp.ByQuery))
	return s.shapeError(ctx, "type", selector, err)
}

func (s *Session) Click(ctx context.Context, selector string) error {
	err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Click(selector, chromedp.ByQuery))
	return s.shapeError(ctx, "click", selector, err)
}

func (s *Session) PressKeys(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.KeyEvent(k)); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("press key %q: %w", k, err)
		}
		if err := s.Sleep(ctx, s.cfg.KeyDelay); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) TypeText(ctx context.Context, text string) error {
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.KeyEvent(text)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("type text: %w", err)
	}
	return nil
}

func (s *Session) Text(ctx context.Context, selector string) (string, error) {
	var text string
	err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Text(selector, &text, chromedp.ByQuery))
	if err != nil {
		return "", s.shapeError(ctx, "read text", selector, err)
	}
	return text, nil
}

func (s *Session) Snapshot(ctx context.Context, selector string) (string, error) {
	var html string
	err := s.run(ctx, s.cfg.ActionTimeout, chromedp.OuterHTML(selector, &html, chromedp.ByQuery))
	if err != nil {
		return "", s.shapeError(ctx, "snapshot", selector, err)
	}
	return html, nil
}

func (s *Session) Cookies(ctx context.Context) ([]Cookie, error) {
	var raw []*network.Cookie
	err := s.run(ctx, s.cfg.ActionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	cookies := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain, Path: c.Path})
	}
	return cookies, nil
}

func (s *Session) Sleep(ctx context.Context, d time.Duration) error {
	return RealSleep(ctx, d)
}

// Close asks Chrome to exit and then kills the process if it has not exited
// within the close timeout. Subsequent calls return the first result.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		closeCtx, cancel := withTimeout(Detach(ctx), s.cfg.CloseTimeout)
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- chromedp.Cancel(s.tabCtx) }()

		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				s.closeErr = fmt.Errorf("close browser: %w", err)
			}
		case <-closeCtx.Done():
			s.logger.Warn("Browser did not exit in time, killing it.", zap.Duration("timeout", s.cfg.CloseTimeout))
		}

		// Cancelling the allocator kills the process if it is still alive and
		// waits for it to exit.
		s.tabCancel()
		s.allocCancel()
		s.metrics.BrowserClosed()
		s.logger.Debug("Browser closed.")
	})
	return s.closeErr
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
