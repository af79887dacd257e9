// file: internal/app/builder.go

package app

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"webhook-gateway/config"
	"webhook-gateway/internal/broker"
	"webhook-gateway/internal/gateway"
	"webhook-gateway/internal/logger"
	"webhook-gateway/internal/metrics"
	"webhook-gateway/internal/sender"
	"webhook-gateway/internal/signature"
)

// Publisher is what the gateway forwards through, plus shutdown.
type Publisher interface {
	gateway.Publisher
	Close() error
}

// BaseApp holds the initialized components shared by the gateway.
type BaseApp struct {
	Logger        *logger.Logger
	Metrics       *metrics.Metrics
	MetricsServer *http.Server
	Collector     *metrics.MetricsCollector
	Publisher     Publisher
	Routes        []gateway.Route
}

// AppBuilder constructs the BaseApp components fluently.
type AppBuilder struct {
	cfg  *config.Config
	base *BaseApp
	err  error
}

// NewAppBuilder creates a new builder.
func NewAppBuilder(cfg *config.Config) *AppBuilder {
	return &AppBuilder{
		cfg:  cfg,
		base: &BaseApp{},
	}
}

// WithLogger creates the logger.
func (b *AppBuilder) WithLogger() *AppBuilder {
	if b.err != nil {
		return b
	}
	b.base.Logger, b.err = logger.NewLogger(&b.cfg.Logging)
	if b.err != nil {
		b.err = fmt.Errorf("failed to initialize logger: %w", b.err)
	}
	return b
}

// WithLoggerInstance uses an existing logger instead of building one.
func (b *AppBuilder) WithLoggerInstance(log *logger.Logger) *AppBuilder {
	if b.err != nil {
		return b
	}
	b.base.Logger = log
	return b
}

// WithMetrics creates the registry, collector and metrics server. Nothing
// is started until the app runs.
func (b *AppBuilder) WithMetrics() *AppBuilder {
	if b.err != nil {
		return b
	}
	if !b.cfg.Metrics.Enabled {
		b.base.Logger.Info("metrics disabled")
		return b
	}

	reg := prometheus.NewRegistry()
	var err error
	b.base.Metrics, err = metrics.NewMetrics(reg)
	if err != nil {
		b.err = fmt.Errorf("failed to create metrics service: %w", err)
		return b
	}

	b.base.Collector = metrics.NewMetricsCollector(b.base.Metrics, b.cfg.Metrics.UpdateInterval)

	mux := http.NewServeMux()
	mux.Handle(b.cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		Registry:          reg,
		EnableOpenMetrics: true,
	}))
	b.base.MetricsServer = &http.Server{
		Addr:    b.cfg.Metrics.Address,
		Handler: mux,
	}

	b.base.Logger.Info("metrics initialized successfully",
		"address", b.cfg.Metrics.Address,
		"path", b.cfg.Metrics.Path,
		"updateInterval", b.cfg.Metrics.UpdateInterval)

	return b
}

// WithVerifiers loads every enabled sender's public key and builds its
// verifier. Any key that cannot be loaded is fatal.
func (b *AppBuilder) WithVerifiers() *AppBuilder {
	if b.err != nil {
		return b
	}

	senders := b.cfg.Senders.All()
	names := make([]string, 0, len(senders))
	for name := range senders {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		senderCfg := senders[name]
		if !senderCfg.Enabled {
			b.base.Logger.Info("sender disabled", "sender", name)
			continue
		}

		route, err := b.buildRoute(name, senderCfg)
		if err != nil {
			b.err = err
			return b
		}
		b.base.Routes = append(b.base.Routes, route)
	}

	if len(b.base.Routes) == 0 {
		b.err = fmt.Errorf("no senders enabled")
	}
	return b
}

func (b *AppBuilder) buildRoute(name string, senderCfg config.SenderConfig) (gateway.Route, error) {
	s, err := sender.FromConfig(name, senderCfg)
	if err != nil {
		return gateway.Route{}, err
	}

	pemText, source, err := senderCfg.ResolvePublicKey()
	if err != nil {
		return gateway.Route{}, fmt.Errorf("sender %s: %w", name, err)
	}
	key, err := signature.LoadPublicKey(pemText)
	if err != nil {
		return gateway.Route{}, fmt.Errorf("sender %s: failed to load public key from %s: %w", name, source, err)
	}

	opts := []signature.Option{
		signature.WithEncoding(s.Encoding),
		signature.WithLogger(b.base.Logger),
	}
	if b.base.Metrics != nil {
		opts = append(opts, signature.WithObserver(b.base.Metrics))
	}
	v, err := signature.NewVerifier(name, key, opts...)
	if err != nil {
		return gateway.Route{}, fmt.Errorf("sender %s: %w", name, err)
	}

	b.base.Logger.Info("loaded sender public key",
		"sender", name,
		"source", source,
		"curve", key.CurveName(),
		"fingerprint", key.Fingerprint())

	return gateway.Route{Sender: s, Verifier: v}, nil
}

// WithPublisher connects to NATS, or falls back to logging accepted
// webhooks when NATS is disabled.
func (b *AppBuilder) WithPublisher() *AppBuilder {
	if b.err != nil {
		return b
	}
	if !b.cfg.NATS.Enabled {
		b.base.Logger.Info("NATS disabled, accepted webhooks will only be logged")
		b.base.Publisher = broker.NewLogPublisher(b.base.Logger)
		return b
	}

	pub, err := broker.NewNATSPublisher(&b.cfg.NATS, b.base.Logger, b.base.Metrics)
	if err != nil {
		b.err = fmt.Errorf("failed to create NATS publisher: %w", err)
		return b
	}
	b.base.Publisher = pub
	return b
}

// Build finalizes the construction and returns the BaseApp.
func (b *AppBuilder) Build() (*BaseApp, error) {
	if b.err != nil {
		if b.base.Publisher != nil {
			_ = b.base.Publisher.Close()
		}
		return nil, b.err
	}
	return b.base, nil
}
