// internal/metrics/metrics.go
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics bundles the collectors used across the client. A nil *Metrics is
// valid and records nothing, so components never need to check for it.
type Metrics struct {
	VendorRequests       *prometheus.CounterVec
	VendorRequestSeconds *prometheus.HistogramVec
	FlowRuns             *prometheus.CounterVec
	FlowSeconds          *prometheus.HistogramVec
	BrowsersOpen         prometheus.Gauge
	PoolEvents           *prometheus.CounterVec
	CacheEvents          *prometheus.CounterVec
}

// New creates the collectors under the given namespace without registering them.
func New(namespace string) *Metrics {
	return &Metrics{
		VendorRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "vendor_requests_total",
				Help:      "Total number of authenticated vendor HTTP requests",
			},
			[]string{"endpoint", "outcome"},
		),
		VendorRequestSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "vendor_request_duration_seconds",
				Help:      "Vendor HTTP request duration in seconds",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"endpoint"},
		),
		FlowRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "browser_flows_total",
				Help:      "Browser driven flow executions by flow and outcome",
			},
			[]string{"flow", "outcome"},
		),
		FlowSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "browser_flow_duration_seconds",
				Help:      "Browser driven flow duration in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 240},
			},
			[]string{"flow"},
		),
		BrowsersOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "browsers_open",
				Help:      "Number of headless browser processes currently running",
			},
		),
		PoolEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_pool_events_total",
				Help:      "Session pool hits, misses and evictions",
			},
			[]string{"event"},
		),
		CacheEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lookup_cache_events_total",
				Help:      "Lookup cache hits and misses by list",
			},
			[]string{"list", "event"},
		),
	}
}

// Register registers every collector with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.VendorRequests, m.VendorRequestSeconds, m.FlowRuns, m.FlowSeconds,
		m.BrowsersOpen, m.PoolEvents, m.CacheEvents,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveVendorRequest records one vendor call.
func (m *Metrics) ObserveVendorRequest(endpoint, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.VendorRequests.WithLabelValues(endpoint, outcome).Inc()
	m.VendorRequestSeconds.WithLabelValues(endpoint).Observe(d.Seconds())
}

// ObserveFlow records one login or report flow.
func (m *Metrics) ObserveFlow(flow, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.FlowRuns.WithLabelValues(flow, outcome).Inc()
	m.FlowSeconds.WithLabelValues(flow).Observe(d.Seconds())
}

// BrowserOpened increments the open browser gauge.
func (m *Metrics) BrowserOpened() {
	if m == nil {
		return
	}
	m.BrowsersOpen.Inc()
}

// BrowserClosed decrements the open browser gauge.
func (m *Metrics) BrowserClosed() {
	if m == nil {
		return
	}
	m.BrowsersOpen.Dec()
}

// PoolEvent counts a pool hit, miss, eviction or expiry.
func (m *Metrics) PoolEvent(event string) {
	if m == nil {
		return
	}
	m.PoolEvents.WithLabelValues(event).Inc()
}

// CacheEvent counts a lookup cache hit or miss.
func (m *Metrics) CacheEvent(list, event string) {
	if m == nil {
		return
	}
	m.CacheEvents.WithLabelValues(list, event).Inc()
}

// Server exposes /metrics and /health over HTTP.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// NewServer creates a metrics server for the collectors gathered by g.
func NewServer(addr string, g prometheus.Gatherer, logger *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.Named("metrics"),
	}
}

// Start serves in the background until Stop is called.
func (s *Server) Start() {
	s.logger.Info("Starting metrics server", zap.String("addr", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Metrics server error", zap.Error(err))
		}
	}()
}

// Stop shuts the server down, waiting for in-flight scrapes until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping metrics server")
	return s.server.Shutdown(ctx)
}
