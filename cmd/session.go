// cmd/session.go
package cmd

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bogdanrbucur/pal-e3/internal/browser"
	"github.com/bogdanrbucur/pal-e3/internal/metrics"
	"github.com/bogdanrbucur/pal-e3/internal/observability"
	"github.com/bogdanrbucur/pal-e3/pkg/pale3"
)

const shutdownTimeout = 10 * time.Second

// openSession logs in and returns the session with a cleanup that closes it
// and stops the metrics server. Cleanup runs on a detached context so an
// interrupted command still tears its browsers down.
func (a *app) openSession(cmd *cobra.Command) (*pale3.Session, func(), error) {
	ctx := cmd.Context()
	cfg, err := configFrom(ctx)
	if err != nil {
		return nil, nil, err
	}
	logger := observability.GetLogger()

	opts := append([]pale3.Option{pale3.WithLogger(logger)}, a.sessionO...)
	var server *metrics.Server
	if a.metrics || cfg.Metrics().Enabled {
		reg := prometheus.NewRegistry()
		opts = append(opts, pale3.WithRegisterer(reg))
		server = metrics.NewServer(cfg.Metrics().ListenAddr, reg, logger)
	}

	session, err := pale3.New(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	if server != nil {
		server.Start()
	}

	cleanup := func() {
		stopCtx, cancel := context.WithTimeout(browser.Detach(ctx), shutdownTimeout)
		defer cancel()
		if err := session.Close(stopCtx); err != nil {
			logger.Warn("Failed to close session cleanly", zap.Error(err))
		}
		if server != nil {
			if err := server.Stop(stopCtx); err != nil {
				logger.Warn("Failed to stop metrics server", zap.Error(err))
			}
		}
	}

	if err := session.Login(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}
	return session, cleanup, nil
}
