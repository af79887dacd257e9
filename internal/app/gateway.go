// file: internal/app/gateway.go

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"webhook-gateway/config"
	"webhook-gateway/internal/gateway"
	"webhook-gateway/internal/lifecycle"
	"webhook-gateway/internal/logger"
	"webhook-gateway/internal/metrics"
)

// gatewayMetricsShutdownTimeout is the maximum time to wait for the metrics server to shutdown
const gatewayMetricsShutdownTimeout = 5 * time.Second

// Verify GatewayApp implements lifecycle.Application interface at compile time
var _ lifecycle.Application = (*GatewayApp)(nil)

// connectionReporter is implemented by publishers with a live connection
type connectionReporter interface {
	IsConnected() bool
}

// GatewayApp is the webhook gateway with all its components. Keys are loaded
// once at construction; a reload builds a new GatewayApp.
type GatewayApp struct {
	config           *config.Config
	logger           *logger.Logger
	metrics          *metrics.Metrics
	publisher        Publisher
	inboundServer    *gateway.InboundServer
	metricsServer    *http.Server
	metricsCollector *metrics.MetricsCollector

	closeOnce sync.Once
	closeErr  error
}

// NewGatewayApp builds every component from cfg. A sender key that fails to
// load aborts construction.
func NewGatewayApp(cfg *config.Config, log *logger.Logger) (*GatewayApp, error) {
	b := NewAppBuilder(cfg)
	if log != nil {
		b.WithLoggerInstance(log)
	} else {
		b.WithLogger()
	}

	base, err := b.WithMetrics().
		WithVerifiers().
		WithPublisher().
		Build()
	if err != nil {
		return nil, err
	}

	return NewGatewayAppFromBase(base, cfg), nil
}

// NewGatewayAppFromBase wires the inbound server onto pre-built components.
func NewGatewayAppFromBase(base *BaseApp, cfg *config.Config) *GatewayApp {
	app := &GatewayApp{
		config:           cfg,
		logger:           base.Logger,
		metrics:          base.Metrics,
		publisher:        base.Publisher,
		metricsServer:    base.MetricsServer,
		metricsCollector: base.Collector,
	}

	app.inboundServer = gateway.NewInboundServer(
		app.logger,
		app.metrics,
		app.publisher,
		base.Routes,
		cfg.HTTP.Server,
	)

	if app.metricsCollector != nil {
		app.metricsCollector.AddProbe(func(m *metrics.Metrics) {
			m.SetInboundQueueDepth(float64(app.inboundServer.QueueDepth()))
		})
		if reporter, ok := app.publisher.(connectionReporter); ok {
			app.metricsCollector.AddProbe(func(m *metrics.Metrics) {
				m.SetNATSConnectionStatus(reporter.IsConnected())
			})
		}
	}

	return app
}

// Handler exposes the inbound HTTP handler, mainly for tests.
func (app *GatewayApp) Handler() http.Handler {
	return app.inboundServer.Handler()
}

// Run starts the servers and blocks until ctx is cancelled.
// Signal handling is managed by lifecycle.RunWithReload.
func (app *GatewayApp) Run(ctx context.Context) error {
	app.logger.Info("starting webhook-gateway",
		"httpAddress", app.config.HTTP.Server.Address,
		"natsEnabled", app.config.NATS.Enabled,
		"natsUrls", app.config.NATS.URLs,
		"metricsEnabled", app.config.Metrics.Enabled,
		"inboundWorkers", app.config.HTTP.Server.InboundWorkerCount,
		"inboundQueueSize", app.config.HTTP.Server.InboundQueueSize)

	if app.metricsCollector != nil {
		if err := app.metricsCollector.Start(); err != nil {
			return fmt.Errorf("failed to start metrics collector: %w", err)
		}
	}
	g, gctx := errgroup.WithContext(ctx)
	if app.metricsServer != nil {
		g.Go(func() error {
			app.logger.Info("starting metrics server",
				"address", app.config.Metrics.Address,
				"path", app.config.Metrics.Path)
			if err := app.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	if err := app.inboundServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start inbound server: %w", err)
	}

	app.logger.Info("webhook-gateway started successfully")

	// gctx also ends when the metrics server fails
	<-gctx.Done()
	app.logger.Info("shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), app.config.HTTP.Server.ShutdownGracePeriod)
	defer shutdownCancel()

	if err := app.inboundServer.Stop(shutdownCtx); err != nil {
		app.logger.Error("failed to stop inbound server", "error", err)
	}
	if app.metricsServer != nil {
		if err := app.metricsServer.Shutdown(shutdownCtx); err != nil {
			app.logger.Error("failed to stop metrics server", "error", err)
		}
	}

	return g.Wait()
}

// Close releases all components. Safe to call more than once.
func (app *GatewayApp) Close() error {
	app.closeOnce.Do(func() {
		app.closeErr = app.close()
	})
	return app.closeErr
}

func (app *GatewayApp) close() error {
	app.logger.Info("closing application components")

	var errs []error

	if app.metricsCollector != nil {
		if err := app.metricsCollector.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop metrics collector: %w", err))
		}
	}

	if app.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), gatewayMetricsShutdownTimeout)
		defer cancel()
		if err := app.metricsServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown metrics server: %w", err))
		}
	}

	if app.publisher != nil {
		if err := app.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close publisher: %w", err))
		}
	}

	if err := app.logger.Sync(); err != nil {
		app.logger.Debug("logger sync completed", "error", err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}
