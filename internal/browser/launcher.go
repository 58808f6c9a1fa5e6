// internal/browser/launcher.go
package browser

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bogdanrbucur/pal-e3/internal/config"
	"github.com/bogdanrbucur/pal-e3/internal/metrics"
)

// ChromeLauncher starts one headless Chrome process per Launch call.
type ChromeLauncher struct {
	cfg       config.BrowserConfig
	userAgent string
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

var _ Launcher = (*ChromeLauncher)(nil)

// NewLauncher creates a launcher. m may be nil.
func NewLauncher(cfg config.BrowserConfig, userAgent string, logger *zap.Logger, m *metrics.Metrics) *ChromeLauncher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromeLauncher{
		cfg:       cfg,
		userAgent: userAgent,
		logger:    logger.Named("browser"),
		metrics:   m,
	}
}

// Launch starts a browser and returns its only page. If ctx is canceled while
// the process is starting, the process is killed before Launch returns.
func (l *ChromeLauncher) Launch(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	logger := l.logger.With(zap.String("session_id", id))

	// The process must outlive ctx so pooled pages can serve later calls;
	// Session.Close owns its lifetime.
	allocCtx, allocCancel := chromedp.NewExecAllocator(Detach(ctx), l.buildAllocatorOptions()...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Sugar().Debugf),
		chromedp.WithErrorf(logger.Sugar().Debugf),
	)

	teardown := func() {
		tabCancel()
		allocCancel()
	}

	startCtx, cancelStart := withTimeout(ctx, l.cfg.LaunchTimeout)
	defer cancelStart()

	// The first Run allocates the browser and must use the tab context
	// itself, otherwise the process dies with the derived context.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(tabCtx) }()

	select {
	case err := <-started:
		if err != nil {
			teardown()
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
	case <-startCtx.Done():
		teardown()
		<-started
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("browser did not start within %s: %w", l.cfg.LaunchTimeout, startCtx.Err())
	}

	s := &Session{
		id:          id,
		cfg:         l.cfg,
		logger:      logger,
		metrics:     l.metrics,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
	}
	l.metrics.BrowserOpened()

	if w, h := l.cfg.ViewportWidth, l.cfg.ViewportHeight; w > 0 && h > 0 {
		if err := s.run(ctx, l.cfg.ActionTimeout, chromedp.EmulateViewport(int64(w), int64(h))); err != nil {
			_ = s.Close(ctx)
			return nil, fmt.Errorf("failed to set viewport: %w", err)
		}
	}

	logger.Debug("Browser launched.", zap.Bool("headless", l.cfg.Headless))
	return s, nil
}

// buildAllocatorOptions assembles the Chrome flags from configuration.
func (l *ChromeLauncher) buildAllocatorOptions() []chromedp.ExecAllocatorOption {
	var opts []chromedp.ExecAllocatorOption
	for _, opt := range chromedp.DefaultExecAllocatorOptions {
		opts = append(opts, opt)
	}

	opts = append(opts,
		chromedp.Flag("headless", l.cfg.Headless),
		chromedp.Flag("disable-gpu", l.cfg.Headless),
		chromedp.Flag("disable-extensions", true),
	)
	if l.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.userAgent))
	}
	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}
	if w, h := l.cfg.ViewportWidth, l.cfg.ViewportHeight; w > 0 && h > 0 {
		opts = append(opts, chromedp.WindowSize(w, h))
	}

	for _, arg := range l.cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if len(parts) == 2 {
			opts = append(opts, chromedp.Flag(name, parts[1]))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}

	// Containers on Linux need these.
	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
	}
	return opts
}
