// internal/client/client.go
package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/bogdanrbucur/pal-e3/internal/config"
	"github.com/bogdanrbucur/pal-e3/internal/metrics"
	"github.com/bogdanrbucur/pal-e3/internal/palerr"
)

// Request describes one vendor POST.
type Request struct {
	// Path is relative to the vendor host, e.g. "/palpurchase/PurchasePAL/...".
	Path     string
	Encoding Encoding
	// Form carries the fields for Multipart and URLEncoded requests.
	Form *Form
	// Body is marshalled for JSON requests.
	Body any
}

// Poster is the contract every vendor wrapper depends on.
type Poster interface {
	Post(ctx context.Context, req Request) (*Response, error)
}

// Client issues cookie-authenticated POST requests to the vendor host.
// It never retries; callers decide whether a failure is worth repeating.
type Client struct {
	http       *resty.Client
	logger     *zap.Logger
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
	cookieName string

	mu    sync.RWMutex
	token string
}

// Ensure Client implements Poster.
var _ Poster = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger.Named("client") }
}

// WithMetrics records request counts and latencies.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithToken sets the initial session cookie value.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a client for the vendor described by cfg.
func New(cfg config.VendorConfig, opts ...Option) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(cfg.RequestTimeout).
		SetHeader("Accept", "*/*").
		SetHeader("User-Agent", cfg.UserAgent).
		SetRetryCount(0)

	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = ".SessionAuthCookie"
	}

	c := &Client{
		http:       httpClient,
		logger:     zap.NewNop(),
		limiter:    rate.NewLimiter(limit, burst),
		cookieName: cookieName,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the session cookie, e.g. after a fresh login.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the current session cookie value.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Post sends req and returns the vendor response. Transport failures and
// vendor populated Errors come back as *palerr.VendorRequestError.
func (c *Client) Post(ctx context.Context, req Request) (*Response, error) {
	token := c.Token()
	if token == "" {
		return nil, fmt.Errorf("vendor request %s: %w", req.Path, palerr.ErrNotLoggedIn)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("vendor request %s: rate limiter: %w", req.Path, err)
	}

	r := c.http.R().
		SetContext(ctx).
		SetHeader("Cookie", fmt.Sprintf("%s=%s", c.cookieName, token))

	if err := c.setBody(r, req); err != nil {
		return nil, &palerr.VendorRequestError{Endpoint: req.Path, Err: err}
	}

	start := time.Now()
	res, err := r.Post(req.Path)
	elapsed := time.Since(start)

	if err != nil {
		c.metrics.ObserveVendorRequest(req.Path, "transport_error", elapsed)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("vendor request %s: %w", req.Path, ctxErr)
		}
		c.logger.Warn("Vendor request failed in transport", zap.String("endpoint", req.Path), zap.Error(err))
		return nil, &palerr.VendorRequestError{
			Endpoint: req.Path,
			Err:      fmt.Errorf("%w: %v", palerr.ErrConnectivity, err),
		}
	}

	resp := &Response{Endpoint: req.Path, StatusCode: res.StatusCode(), Body: res.Body()}
	c.logger.Debug("Vendor request completed",
		zap.String("endpoint", req.Path),
		zap.Stringer("encoding", req.Encoding),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(resp.Body)),
		zap.Duration("elapsed", elapsed),
	)

	if msg, ok := vendorError(resp.Body); ok {
		c.metrics.ObserveVendorRequest(req.Path, "vendor_error", elapsed)
		return nil, &palerr.VendorRequestError{Endpoint: req.Path, StatusCode: resp.StatusCode, Message: msg}
	}
	if res.IsError() {
		c.metrics.ObserveVendorRequest(req.Path, "http_error", elapsed)
		return nil, &palerr.VendorRequestError{Endpoint: req.Path, StatusCode: resp.StatusCode}
	}

	c.metrics.ObserveVendorRequest(req.Path, "ok", elapsed)
	return resp, nil
}

func (c *Client) setBody(r *resty.Request, req Request) error {
	switch req.Encoding {
	case Multipart:
		form := req.Form
		if form == nil {
			form = NewForm()
		}
		r.SetMultipartFormData(form.Map())
	case URLEncoded:
		form := req.Form
		if form == nil {
			form = NewForm()
		}
		r.SetHeader("Content-Type", "application/x-www-form-urlencoded").
			SetBody(form.Encode())
	case JSON:
		body, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("marshal JSON body: %w", err)
		}
		r.SetHeader("Content-Type", "application/json").
			SetBody(body)
	default:
		return errors.New("unknown request encoding " + req.Encoding.String())
	}
	return nil
}
