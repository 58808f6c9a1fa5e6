// pkg/pale3/session.go
package pale3

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/bogdanrbucur/pal-e3/internal/auth"
	"github.com/bogdanrbucur/pal-e3/internal/browser"
	"github.com/bogdanrbucur/pal-e3/internal/client"
	"github.com/bogdanrbucur/pal-e3/internal/config"
	"github.com/bogdanrbucur/pal-e3/internal/crewing"
	"github.com/bogdanrbucur/pal-e3/internal/lookup"
	"github.com/bogdanrbucur/pal-e3/internal/metrics"
	"github.com/bogdanrbucur/pal-e3/internal/palerr"
	"github.com/bogdanrbucur/pal-e3/internal/pool"
	"github.com/bogdanrbucur/pal-e3/internal/purchase"
	"github.com/bogdanrbucur/pal-e3/internal/qdms"
	"github.com/bogdanrbucur/pal-e3/internal/qhse"
	"github.com/bogdanrbucur/pal-e3/internal/reports"
	"github.com/bogdanrbucur/pal-e3/internal/voyage"
)

// minSweepInterval bounds how often an owned pool is swept.
const minSweepInterval = time.Second

// Session is one authenticated connection to a PAL e3 tenant. Every vendor
// operation requires a successful Login first.
type Session struct {
	cfg      config.Interface
	logger   *zap.Logger
	metrics  *metrics.Metrics
	launcher browser.Launcher

	flow      *auth.Flow
	client    *client.Client
	cache     *lookup.Cache
	extractor *reports.Extractor

	pool      *pool.Pool
	ownsPool  bool
	stopSweep context.CancelFunc
	sweepDone chan struct{}

	purchase *purchase.Service
	crewing  *crewing.Service
	voyage   *voyage.Service
	qhse     *qhse.Service
	qdms     *qdms.Service

	mu       sync.RWMutex
	loggedIn bool
	closed   bool
}

// Option configures a Session.
type Option func(*sessionOptions)

type sessionOptions struct {
	launcher   browser.Launcher
	logger     *zap.Logger
	pool       *pool.Pool
	registerer prometheus.Registerer
}

// WithLauncher replaces the Chrome launcher, mainly for tests.
func WithLauncher(l browser.Launcher) Option {
	return func(o *sessionOptions) { o.launcher = l }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *sessionOptions) { o.logger = logger }
}

// WithPool shares an existing page pool between sessions. The session does
// not close a pool it was given.
func WithPool(p *pool.Pool) Option {
	return func(o *sessionOptions) { o.pool = p }
}

// WithRegisterer enables metrics and registers the collectors with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *sessionOptions) { o.registerer = reg }
}

// New builds a session from cfg. Nothing touches the vendor until Login.
func New(cfg config.Interface, opts ...Option) (*Session, error) {
	var o sessionOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	vendor := cfg.Vendor()
	if err := vendor.Validate(); err != nil {
		return nil, fmt.Errorf("invalid vendor configuration: %w", err)
	}
	reportCfg := cfg.Report()
	if err := reportCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	s := &Session{cfg: cfg, logger: o.logger.Named("pale3")}

	if o.registerer != nil {
		s.metrics = metrics.New(cfg.Metrics().Namespace)
		if err := s.metrics.Register(o.registerer); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	s.launcher = o.launcher
	if s.launcher == nil {
		s.launcher = browser.NewLauncher(cfg.Browser(), vendor.UserAgent, o.logger, s.metrics)
	}
	s.flow = auth.NewFlow(s.launcher, vendor, cfg.Browser(), auth.WithLogger(o.logger), auth.WithMetrics(s.metrics))
	s.client = client.New(vendor, client.WithLogger(o.logger), client.WithMetrics(s.metrics))
	s.cache = lookup.NewCache(&lookup.VendorSource{Poster: s.client, CompanyID: vendor.CompanyID}, o.logger, s.metrics)

	source, err := s.pageSource(o.pool, vendor)
	if err != nil {
		return nil, err
	}
	s.extractor = reports.NewExtractor(source, vendor.URL, cfg.Browser(), reportCfg,
		reports.WithLogger(o.logger), reports.WithMetrics(s.metrics))

	s.purchase = purchase.New(s.client, s.cache, o.logger)
	s.crewing = crewing.New(s.client, s.cache, vendor.CompanyID, o.logger)
	s.voyage = voyage.New(s.client, s.cache, o.logger)
	s.qhse = qhse.New(s.client, s.cache, o.logger)
	s.qdms = qdms.New(s.client, o.logger)
	return s, nil
}

// pageSource picks where report flows get their browsers: the shared or
// configured pool, or a fresh login per call.
func (s *Session) pageSource(shared *pool.Pool, vendor config.VendorConfig) (reports.PageSource, error) {
	poolCfg := s.cfg.Pool()
	switch {
	case shared != nil:
		s.pool = shared
	case poolCfg.Enabled:
		p, err := pool.New(poolCfg, pool.WithLogger(s.logger), pool.WithMetrics(s.metrics))
		if err != nil {
			return nil, fmt.Errorf("create session pool: %w", err)
		}
		s.pool, s.ownsPool = p, true
		s.startSweeper(poolCfg)
	default:
		return &reports.PerCall{Flow: s.flow, Logger: s.logger}, nil
	}
	return &pool.Source{
		Pool:       s.pool,
		Credential: pool.Credential{Host: vendor.URL, Username: vendor.Username, Password: vendor.Password},
		Open:       s.flow.OpenSession,
	}, nil
}

func (s *Session) startSweeper(cfg config.PoolConfig) {
	interval := min(cfg.IdleTTL, cfg.MaxAge) / 2
	if interval < minSweepInterval {
		interval = minSweepInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.stopSweep = cancel
	s.sweepDone = make(chan struct{})
	go func() {
		defer close(s.sweepDone)
		s.pool.Run(ctx, interval)
	}()
}

// Login signs in through the browser and keeps the session cookie for every
// later vendor request. Calling it again refreshes the cookie.
func (s *Session) Login(ctx context.Context) error {
	if err := s.usable(); err != nil {
		return err
	}
	token, err := s.flow.Login(ctx)
	if err != nil {
		return err
	}
	s.client.SetToken(token)
	s.cache.Invalidate()

	s.mu.Lock()
	s.loggedIn = true
	s.mu.Unlock()
	return nil
}

// Cookie returns the session cookie value, or "" before Login.
func (s *Session) Cookie() string {
	return s.client.Token()
}

// ready returns ErrNotLoggedIn until Login has succeeded.
func (s *Session) ready() error {
	if err := s.usable(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loggedIn {
		return palerr.ErrNotLoggedIn
	}
	return nil
}

func (s *Session) usable() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.New("session is closed")
	}
	return nil
}

// Vessels returns the cached vessel directory.
func (s *Session) Vessels(ctx context.Context) ([]lookup.Vessel, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.cache.Vessels(ctx)
}

// Users returns the cached user directory.
func (s *Session) Users(ctx context.Context) ([]lookup.User, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.cache.Users(ctx)
}

// ResolveUsers turns name fragments into user ids and names.
func (s *Session) ResolveUsers(ctx context.Context, names []string) (lookup.ResolvedUsers, error) {
	if err := s.ready(); err != nil {
		return lookup.ResolvedUsers{}, err
	}
	return s.cache.ResolveUsers(ctx, names)
}

// Purchase returns the purchase wrappers.
func (s *Session) Purchase() *purchase.Service { return s.purchase }

// Crewing returns the crewing wrappers.
func (s *Session) Crewing() *crewing.Service { return s.crewing }

// Voyage returns the voyage wrappers.
func (s *Session) Voyage() *voyage.Service { return s.voyage }

// QHSE returns the compliance wrappers.
func (s *Session) QHSE() *qhse.Service { return s.qhse }

// QDMS returns the document library wrappers.
func (s *Session) QDMS() *qdms.Service { return s.qdms }

// Close stops the pool sweeper and closes an owned pool, waiting for its
// browsers within ctx. It is safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.stopSweep != nil {
		s.stopSweep()
		<-s.sweepDone
	}
	if s.ownsPool {
		return s.pool.Close(ctx)
	}
	return nil
}
