// internal/mocks/browser.go
package mocks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/chromedp/kb"
	"github.com/google/uuid"

	"github.com/bogdanrbucur/pal-e3/internal/browser"
	"github.com/bogdanrbucur/pal-e3/internal/palerr"
)

// FakePage is a scriptable browser.Page that records every call and never
// sleeps. Configure it before handing it to the code under test.
type FakePage struct {
	mu sync.Mutex

	id string
	// Texts maps a selector to the texts successive reads return; the last
	// entry repeats.
	Texts map[string][]string
	// Present maps a selector to successive Exists answers; the last repeats.
	// Selectors not listed exist.
	Present map[string][]bool
	// Snapshots maps a selector to its outer HTML.
	Snapshots map[string]string
	// Jar is what Cookies returns.
	Jar []browser.Cookie
	// Missing selectors fail every element action with UnexpectedPageShapeError.
	Missing map[string]bool
	// Fail maps an operation name ("goto", "cookies", ...) to an error it returns.
	Fail map[string]error
	// OnAction runs at the start of every recorded call; used to cancel a
	// context mid-flow.
	OnAction func(call string)

	calls   []string
	reads   map[string]int
	checks  map[string]int
	slept   time.Duration
	closed  int
	onClose func()
}

var _ browser.Page = (*FakePage)(nil)

// NewFakePage creates an empty fake page.
func NewFakePage() *FakePage {
	return &FakePage{
		id:        uuid.NewString(),
		Texts:     map[string][]string{},
		Present:   map[string][]bool{},
		Snapshots: map[string]string{},
		Missing:   map[string]bool{},
		Fail:      map[string]error{},
		reads:     map[string]int{},
		checks:    map[string]int{},
	}
}

func (p *FakePage) record(ctx context.Context, op, call string) error {
	if p.OnAction != nil {
		p.OnAction(call)
	}
	p.mu.Lock()
	p.calls = append(p.calls, call)
	err := p.Fail[op]
	p.mu.Unlock()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (p *FakePage) element(ctx context.Context, op, selector, call string) error {
	if err := p.record(ctx, op, call); err != nil {
		return err
	}
	p.mu.Lock()
	missing := p.Missing[selector]
	p.mu.Unlock()
	if missing {
		return palerr.NewUnexpectedPageShapeError(op, selector, context.DeadlineExceeded)
	}
	return nil
}

func (p *FakePage) ID() string { return p.id }

func (p *FakePage) Goto(ctx context.Context, url string) error {
	return p.record(ctx, "goto", "goto "+url)
}

func (p *FakePage) WaitForSelector(ctx context.Context, selector string, _ time.Duration) error {
	return p.element(ctx, "wait", selector, "wait "+selector)
}

func (p *FakePage) Exists(ctx context.Context, selector string) (bool, error) {
	if err := p.record(ctx, "exists", "exists "+selector); err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	seq, ok := p.Present[selector]
	if !ok || len(seq) == 0 {
		return true, nil
	}
	i := p.checks[selector]
	p.checks[selector]++
	if i >= len(seq) {
		i = len(seq) - 1
	}
	return seq[i], nil
}

func (p *FakePage) TypeInto(ctx context.Context, selector, text string) error {
	return p.element(ctx, "type", selector, fmt.Sprintf("type %s=%s", selector, text))
}

func (p *FakePage) Click(ctx context.Context, selector string) error {
	return p.element(ctx, "click", selector, "click "+selector)
}

func (p *FakePage) PressKeys(ctx context.Context, keys ...string) error {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = keyName(k)
	}
	return p.record(ctx, "keys", "keys "+strings.Join(names, ","))
}

func (p *FakePage) TypeText(ctx context.Context, text string) error {
	return p.record(ctx, "typetext", "typetext "+text)
}

func (p *FakePage) Text(ctx context.Context, selector string) (string, error) {
	if err := p.element(ctx, "text", selector, "text "+selector); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	seq := p.Texts[selector]
	if len(seq) == 0 {
		return "", nil
	}
	i := p.reads[selector]
	p.reads[selector]++
	if i >= len(seq) {
		i = len(seq) - 1
	}
	return seq[i], nil
}

func (p *FakePage) Snapshot(ctx context.Context, selector string) (string, error) {
	if err := p.element(ctx, "snapshot", selector, "snapshot "+selector); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	html, ok := p.Snapshots[selector]
	if !ok {
		return "", palerr.NewUnexpectedPageShapeError("snapshot", selector, context.DeadlineExceeded)
	}
	return html, nil
}

func (p *FakePage) Cookies(ctx context.Context) ([]browser.Cookie, error) {
	if err := p.record(ctx, "cookies", "cookies"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]browser.Cookie(nil), p.Jar...), nil
}

// Sleep advances simulated time only.
func (p *FakePage) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.slept += d
	p.mu.Unlock()
	return nil
}

func (p *FakePage) Close(context.Context) error {
	p.mu.Lock()
	p.closed++
	first := p.closed == 1
	onClose := p.onClose
	p.mu.Unlock()
	if first && onClose != nil {
		onClose()
	}
	return nil
}

// Calls returns the recorded calls in order.
func (p *FakePage) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Closed reports whether Close ran at least once.
func (p *FakePage) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed > 0
}

// Slept returns the simulated time spent in Sleep.
func (p *FakePage) Slept() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slept
}

// FakeLauncher hands out FakePages and tracks how many are still open.
type FakeLauncher struct {
	// NewPage configures each launched page; nil yields empty pages.
	NewPage func() *FakePage
	// Err fails every launch.
	Err error

	mu       sync.Mutex
	pages    []*FakePage
	launched atomic.Int32
	open     atomic.Int32
}

var _ browser.Launcher = (*FakeLauncher)(nil)

func (l *FakeLauncher) Launch(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.Err != nil {
		return nil, l.Err
	}
	page := NewFakePage()
	if l.NewPage != nil {
		page = l.NewPage()
	}
	page.onClose = func() { l.open.Add(-1) }
	l.launched.Add(1)
	l.open.Add(1)

	l.mu.Lock()
	l.pages = append(l.pages, page)
	l.mu.Unlock()
	return page, nil
}

// Launched returns how many pages were launched.
func (l *FakeLauncher) Launched() int { return int(l.launched.Load()) }

// Open returns how many launched pages have not been closed.
func (l *FakeLauncher) Open() int { return int(l.open.Load()) }

// Pages returns every launched page.
func (l *FakeLauncher) Pages() []*FakePage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*FakePage(nil), l.pages...)
}

func keyName(k string) string {
	switch k {
	case kb.ArrowDown:
		return "ArrowDown"
	case kb.ArrowRight:
		return "ArrowRight"
	case kb.Enter:
		return "Enter"
	case kb.Tab:
		return "Tab"
	default:
		return k
	}
}
