// internal/pool/pool_test.go
package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/bogdanrbucur/pal-e3/internal/browser"
	"github.com/bogdanrbucur/pal-e3/internal/config"
	"github.com/bogdanrbucur/pal-e3/internal/mocks"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type opener struct {
	mu    sync.Mutex
	pages []*mocks.FakePage
	err   error
}

func (o *opener) Open(ctx context.Context) (browser.Page, error) {
	if o.err != nil {
		return nil, o.err
	}
	p := mocks.NewFakePage()
	o.mu.Lock()
	o.pages = append(o.pages, p)
	o.mu.Unlock()
	return p, nil
}

func (o *opener) Opened() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pages)
}

var captain = Credential{Host: "https://pal.example.com", Username: "captain", Password: "s3cret"}

func newPool(t *testing.T, mutate func(*config.PoolConfig)) (*Pool, *clock) {
	t.Helper()
	cfg := config.NewDefaultConfig().Pool()
	cfg.Enabled = true
	if mutate != nil {
		mutate(&cfg)
	}
	clk := &clock{now: time.Date(2023, 3, 1, 8, 0, 0, 0, time.UTC)}
	p, err := New(cfg, WithLogger(zaptest.NewLogger(t)), WithClock(clk.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p, clk
}

func TestCredential_Key(t *testing.T) {
	other := captain
	other.Password = "different"

	assert.Equal(t, captain.Key(), Credential{Host: "https://PAL.example.com/", Username: "captain", Password: "s3cret"}.Key())
	assert.NotEqual(t, captain.Key(), other.Key())
	assert.NotContains(t, captain.Key(), "s3cret")
}

func TestNew_RejectsBadSizes(t *testing.T) {
	_, err := New(config.PoolConfig{MaxCredentials: 0, MaxIdlePerCredential: 1})
	assert.Error(t, err)
	_, err = New(config.PoolConfig{MaxCredentials: 1, MaxIdlePerCredential: 0})
	assert.Error(t, err)
}

func TestAcquire_ReusesHealthyPage(t *testing.T) {
	p, _ := newPool(t, nil)
	o := &opener{}
	ctx := context.Background()

	page, release, err := p.Acquire(ctx, captain, o.Open)
	require.NoError(t, err)
	assert.Equal(t, Stats{Credentials: 0, Idle: 0, Leased: 1}, p.Stats())
	release(true)
	release(true) // second call is a no-op

	again, release2, err := p.Acquire(ctx, captain, o.Open)
	require.NoError(t, err)
	assert.Same(t, page, again)
	assert.Equal(t, 1, o.Opened())
	release2(true)

	assert.Equal(t, Stats{Credentials: 1, Idle: 1, Leased: 0}, p.Stats())
	assert.False(t, o.pages[0].Closed())
}

func TestAcquire_UnhealthyPageIsClosed(t *testing.T) {
	p, _ := newPool(t, nil)
	o := &opener{}

	_, release, err := p.Acquire(context.Background(), captain, o.Open)
	require.NoError(t, err)
	release(false)
	require.NoError(t, p.Close(context.Background()))

	assert.True(t, o.pages[0].Closed())
	assert.Equal(t, 0, p.Stats().Idle)
}

func TestAcquire_SeparatesCredentials(t *testing.T) {
	p, _ := newPool(t, nil)
	o := &opener{}
	ctx := context.Background()
	officer := Credential{Host: captain.Host, Username: "officer", Password: "pw"}

	_, r1, err := p.Acquire(ctx, captain, o.Open)
	require.NoError(t, err)
	r1(true)
	_, r2, err := p.Acquire(ctx, officer, o.Open)
	require.NoError(t, err)
	r2(true)

	assert.Equal(t, 2, o.Opened())
	assert.Equal(t, 2, p.Stats().Credentials)
}

func TestAcquire_IdleTTLAndMaxAge(t *testing.T) {
	testCases := []struct {
		name    string
		advance []time.Duration
	}{
		{"idle ttl", []time.Duration{11 * time.Minute}},
		{"max age", []time.Duration{9 * time.Minute, 9 * time.Minute, 9 * time.Minute, 9 * time.Minute, 9 * time.Minute, 9 * time.Minute, 9 * time.Minute}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, clk := newPool(t, func(c *config.PoolConfig) {
				c.IdleTTL = 10 * time.Minute
				c.MaxAge = time.Hour
			})
			o := &opener{}
			ctx := context.Background()

			first, release, err := p.Acquire(ctx, captain, o.Open)
			require.NoError(t, err)
			release(true)

			// Keep the page busy so only max age can retire it.
			var last browser.Page
			for _, d := range tc.advance {
				clk.Advance(d)
				page, r, err := p.Acquire(ctx, captain, o.Open)
				require.NoError(t, err)
				last = page
				r(true)
			}
			assert.NotSame(t, first, last)
			require.NoError(t, p.Close(context.Background()))
			assert.True(t, o.pages[0].Closed())
		})
	}
}

func TestRelease_RespectsIdleCap(t *testing.T) {
	p, _ := newPool(t, func(c *config.PoolConfig) { c.MaxIdlePerCredential = 1 })
	o := &opener{}
	ctx := context.Background()

	_, r1, err := p.Acquire(ctx, captain, o.Open)
	require.NoError(t, err)
	_, r2, err := p.Acquire(ctx, captain, o.Open)
	require.NoError(t, err)
	r1(true)
	r2(true)

	assert.Equal(t, 2, o.Opened())
	assert.Equal(t, Stats{Credentials: 1, Idle: 1}, p.Stats(), "the surplus page is closed on release")

	again, r3, err := p.Acquire(ctx, captain, o.Open)
	require.NoError(t, err)
	assert.Same(t, o.pages[0], again)
	r3(true)
}

func TestLRU_EvictsLeastRecentCredential(t *testing.T) {
	p, _ := newPool(t, func(c *config.PoolConfig) { c.MaxCredentials = 1 })
	o := &opener{}
	ctx := context.Background()

	_, r1, err := p.Acquire(ctx, captain, o.Open)
	require.NoError(t, err)
	r1(true)
	_, r2, err := p.Acquire(ctx, Credential{Host: captain.Host, Username: "officer"}, o.Open)
	require.NoError(t, err)
	r2(true)

	assert.Equal(t, 1, p.Stats().Credentials)
	require.NoError(t, p.Close(context.Background()))
	assert.True(t, o.pages[0].Closed())
}

func TestSweep(t *testing.T) {
	p, clk := newPool(t, func(c *config.PoolConfig) { c.IdleTTL = time.Minute })
	o := &opener{}

	_, release, err := p.Acquire(context.Background(), captain, o.Open)
	require.NoError(t, err)
	release(true)

	assert.Equal(t, 0, p.Sweep())
	clk.Advance(2 * time.Minute)
	assert.Equal(t, 1, p.Sweep())
	assert.Equal(t, Stats{}, p.Stats())

	require.NoError(t, p.Close(context.Background()))
	assert.True(t, o.pages[0].Closed())
}

func TestRun_StopsWithContext(t *testing.T) {
	p, _ := newPool(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx, time.Millisecond)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	<-done
}

func TestClose(t *testing.T) {
	p, _ := newPool(t, nil)
	o := &opener{}
	ctx := context.Background()

	_, idle, err := p.Acquire(ctx, captain, o.Open)
	require.NoError(t, err)
	idle(true)
	_, leased, err := p.Acquire(ctx, Credential{Host: captain.Host, Username: "officer"}, o.Open)
	require.NoError(t, err)

	require.NoError(t, p.Close(ctx))
	assert.True(t, o.pages[0].Closed())
	assert.False(t, o.pages[1].Closed())

	leased(true)
	require.NoError(t, p.Close(ctx))
	assert.True(t, o.pages[1].Closed(), "pages released after Close are closed")

	_, _, err = p.Acquire(ctx, captain, o.Open)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestAcquire_Errors(t *testing.T) {
	p, _ := newPool(t, nil)

	boom := errors.New("login failed")
	_, _, err := p.Acquire(context.Background(), captain, (&opener{err: boom}).Open)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, p.Stats().Leased)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = p.Acquire(ctx, captain, (&opener{}).Open)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSource_ConcurrentAcquire(t *testing.T) {
	p, _ := newPool(t, func(c *config.PoolConfig) { c.MaxIdlePerCredential = 4 })
	o := &opener{}
	src := &Source{Pool: p, Credential: captain, Open: o.Open}

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, release, err := src.Acquire(context.Background())
			if err != nil {
				failures.Add(1)
				return
			}
			release(true)
		}()
	}
	wg.Wait()

	assert.Zero(t, failures.Load())
	st := p.Stats()
	assert.Zero(t, st.Leased)
	assert.LessOrEqual(t, st.Idle, 4)
	assert.LessOrEqual(t, o.Opened(), 8)
}
