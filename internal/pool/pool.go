// internal/pool/pool.go
package pool

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/bogdanrbucur/pal-e3/internal/browser"
	"github.com/bogdanrbucur/pal-e3/internal/config"
	"github.com/bogdanrbucur/pal-e3/internal/metrics"
)

// ErrClosed is returned by Acquire once the pool has been closed.
var ErrClosed = errors.New("session pool is closed")

// Credential identifies whose login a pooled page carries.
type Credential struct {
	Host     string
	Username string
	Password string
}

// Key returns the pool key for c. The password only enters it hashed.
func (c Credential) Key() string {
	sum := sha256.Sum256([]byte(c.Password))
	return strings.ToLower(strings.TrimRight(c.Host, "/")) + "|" + c.Username + "|" + hex.EncodeToString(sum[:])
}

// Opener produces a freshly authenticated page.
type Opener func(ctx context.Context) (browser.Page, error)

type member struct {
	page     browser.Page
	lease    string
	created  time.Time
	lastUsed time.Time
}

type slot struct {
	idle []*member
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Credentials int
	Idle        int
	Leased      int
}

// Pool keeps logged-in pages per credential so consecutive report calls
// skip the login. Pages idle longer than IdleTTL or older than MaxAge are
// closed rather than reused.
type Pool struct {
	cfg     config.PoolConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu     sync.Mutex
	slots  *lru.Cache[string, *slot]
	leased int
	closed bool

	closing sync.WaitGroup
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pool) { p.logger = logger.Named("pool") }
}

// WithMetrics records pool events.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pool) { p.metrics = m }
}

// WithClock replaces time.Now; used by tests to age members.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}

// New creates a pool. Credentials beyond MaxCredentials evict the least
// recently used credential and close its idle pages.
func New(cfg config.PoolConfig, opts ...Option) (*Pool, error) {
	if cfg.MaxCredentials <= 0 {
		return nil, fmt.Errorf("pool max_credentials must be positive, got %d", cfg.MaxCredentials)
	}
	if cfg.MaxIdlePerCredential <= 0 {
		return nil, fmt.Errorf("pool max_idle_per_credential must be positive, got %d", cfg.MaxIdlePerCredential)
	}

	p := &Pool{
		cfg:    cfg,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	slots, err := lru.NewWithEvict(cfg.MaxCredentials, func(_ string, s *slot) {
		for _, m := range s.idle {
			p.discard(m, "evicted")
		}
		s.idle = nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create credential cache: %w", err)
	}
	p.slots = slots
	return p, nil
}

// Acquire returns an idle page for cred or opens a new one. release must be
// called exactly once; healthy=false closes the page instead of pooling it.
func (p *Pool) Acquire(ctx context.Context, cred Credential, open Opener) (browser.Page, func(healthy bool), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	key := cred.Key()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, nil, ErrClosed
	}
	var (
		taken *member
		stale []*member
	)
	if s, ok := p.slots.Get(key); ok {
		now := p.now()
		for len(s.idle) > 0 && taken == nil {
			m := s.idle[len(s.idle)-1]
			s.idle = s.idle[:len(s.idle)-1]
			if p.expired(m, now) {
				stale = append(stale, m)
				continue
			}
			taken = m
		}
	}
	if taken != nil {
		p.leased++
	}
	p.mu.Unlock()

	for _, m := range stale {
		p.discard(m, "expired")
	}

	if taken != nil {
		p.metrics.PoolEvent("hit")
		p.logger.Debug("Reusing pooled session.", zap.String("lease", taken.lease), zap.String("session_id", taken.page.ID()))
		return taken.page, p.releaser(key, taken), nil
	}

	p.metrics.PoolEvent("miss")
	page, err := open(ctx)
	if err != nil {
		return nil, nil, err
	}
	now := p.now()
	m := &member{page: page, lease: uuid.NewString(), created: now, lastUsed: now}

	p.mu.Lock()
	p.leased++
	p.mu.Unlock()
	p.logger.Debug("Opened new pooled session.", zap.String("lease", m.lease), zap.String("session_id", page.ID()))
	return page, p.releaser(key, m), nil
}

func (p *Pool) releaser(key string, m *member) func(bool) {
	var once sync.Once
	return func(healthy bool) {
		once.Do(func() { p.release(key, m, healthy) })
	}
}

func (p *Pool) release(key string, m *member, healthy bool) {
	p.mu.Lock()
	p.leased--
	now := p.now()
	m.lastUsed = now

	reason := ""
	switch {
	case p.closed:
		reason = "closed"
	case !healthy:
		reason = "unhealthy"
	case !m.created.IsZero() && p.cfg.MaxAge > 0 && now.Sub(m.created) >= p.cfg.MaxAge:
		reason = "expired"
	}
	if reason == "" {
		s, ok := p.slots.Get(key)
		if !ok {
			s = &slot{}
			p.slots.Add(key, s)
		}
		if len(s.idle) >= p.cfg.MaxIdlePerCredential {
			reason = "full"
		} else {
			s.idle = append(s.idle, m)
		}
	}
	p.mu.Unlock()

	if reason != "" {
		p.discard(m, reason)
		return
	}
	p.metrics.PoolEvent("returned")
}

func (p *Pool) expired(m *member, now time.Time) bool {
	if p.cfg.MaxAge > 0 && now.Sub(m.created) >= p.cfg.MaxAge {
		return true
	}
	return p.cfg.IdleTTL > 0 && now.Sub(m.lastUsed) >= p.cfg.IdleTTL
}

// discard closes m in the background. Close waits for every discard.
func (p *Pool) discard(m *member, reason string) {
	p.metrics.PoolEvent(reason)
	p.logger.Debug("Closing pooled session.", zap.String("lease", m.lease), zap.String("reason", reason))
	p.closing.Add(1)
	go func() {
		defer p.closing.Done()
		if err := m.page.Close(context.Background()); err != nil {
			p.logger.Warn("Failed to close pooled session.", zap.String("lease", m.lease), zap.Error(err))
		}
	}()
}

// Sweep closes idle pages past their TTL or max age and returns how many it
// closed.
func (p *Pool) Sweep() int {
	var stale []*member

	p.mu.Lock()
	now := p.now()
	for _, key := range p.slots.Keys() {
		s, ok := p.slots.Peek(key)
		if !ok {
			continue
		}
		kept := s.idle[:0]
		for _, m := range s.idle {
			if p.expired(m, now) {
				stale = append(stale, m)
			} else {
				kept = append(kept, m)
			}
		}
		s.idle = kept
		if len(s.idle) == 0 {
			p.slots.Remove(key)
		}
	}
	p.mu.Unlock()

	for _, m := range stale {
		p.discard(m, "expired")
	}
	return len(stale)
}

// Run sweeps every interval until ctx is done.
func (p *Pool) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := p.Sweep(); n > 0 {
				p.logger.Debug("Swept idle sessions.", zap.Int("closed", n))
			}
		}
	}
}

// Stats reports the current pool occupancy.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := Stats{Credentials: p.slots.Len(), Leased: p.leased}
	for _, s := range p.slots.Values() {
		st.Idle += len(s.idle)
	}
	return st
}

// Close closes every idle page and waits for all pending closes, bounded by
// ctx. Leased pages are closed when they are released.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		p.slots.Purge()
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.closing.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for pooled sessions to close: %w", ctx.Err())
	}
}

// Source binds a credential and its login to the pool, satisfying the
// report extractor's page source.
type Source struct {
	Pool       *Pool
	Credential Credential
	Open       Opener
}

func (s *Source) Acquire(ctx context.Context) (browser.Page, func(bool), error) {
	return s.Pool.Acquire(ctx, s.Credential, s.Open)
}
