// internal/browser/page.go
package browser

import (
	"context"
	"time"
)

// Cookie is a browser cookie as seen from the page's cookie jar.
type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string
}

// Page is one rendered tab driven on behalf of a single flow. All methods are
// bounded by ctx and by the session's own action timeout.
type Page interface {
	// ID identifies the page in logs and metrics.
	ID() string
	// Goto navigates to url and waits for the load event.
	Goto(ctx context.Context, url string) error
	// WaitForSelector blocks until selector is visible or timeout elapses.
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	// Exists reports whether selector currently matches at least one node.
	Exists(ctx context.Context, selector string) (bool, error)
	// TypeInto focuses selector and types text into it.
	TypeInto(ctx context.Context, selector, text string) error
	// Click clicks the first node matching selector.
	Click(ctx context.Context, selector string) error
	// PressKeys sends key events (see chromedp/kb) to the focused element.
	PressKeys(ctx context.Context, keys ...string) error
	// TypeText types text into whichever element has focus.
	TypeText(ctx context.Context, text string) error
	// Text returns the visible text of selector.
	Text(ctx context.Context, selector string) (string, error)
	// Snapshot returns the outer HTML of selector.
	Snapshot(ctx context.Context, selector string) (string, error)
	// Cookies returns the cookies visible to the current page.
	Cookies(ctx context.Context) ([]Cookie, error)
	// Sleep pauses for d unless ctx ends first.
	Sleep(ctx context.Context, d time.Duration) error
	// Close tears the browser down. It is idempotent and still runs when ctx
	// is already canceled.
	Close(ctx context.Context) error
}

// Launcher starts a fresh browser with one page.
type Launcher interface {
	Launch(ctx context.Context) (Page, error)
}

// LauncherFunc adapts a function to the Launcher interface.
type LauncherFunc func(ctx context.Context) (Page, error)

// Launch calls f(ctx).
func (f LauncherFunc) Launch(ctx context.Context) (Page, error) { return f(ctx) }
