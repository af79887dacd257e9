//file: internal/broker/nats.go

package broker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/nats-io/nkeys"

	"webhook-gateway/config"
	"webhook-gateway/internal/logger"
	"webhook-gateway/internal/metrics"
)

const (
	// natsReconnectWait is the delay between NATS reconnection attempts
	natsReconnectWait = 2 * time.Second

	// maxRetryDelay caps the exponential publish backoff
	maxRetryDelay = 5 * time.Second
)

// NATSPublisher forwards authenticated webhooks to NATS, either as core
// messages or as JetStream publishes that wait for a stream ACK.
type NATSPublisher struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	cfg     config.PublishConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// NewNATSPublisher connects to NATS and prepares the publish mode from config
func NewNATSPublisher(cfg *config.NATSConfig, log *logger.Logger, m *metrics.Metrics) (*NATSPublisher, error) {
	log.Info("connecting to NATS", "urls", cfg.URLs, "mode", cfg.Publish.Mode)

	opts, err := buildNATSOptions(cfg, log, m)
	if err != nil {
		return nil, fmt.Errorf("failed to build NATS options: %w", err)
	}

	nc, err := nats.Connect(strings.Join(cfg.URLs, ","), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.Info("NATS connection established", "connectedURL", nc.ConnectedUrl())
	if m != nil {
		m.SetNATSConnectionStatus(true)
	}

	p := &NATSPublisher{
		conn:    nc,
		cfg:     cfg.Publish,
		logger:  log,
		metrics: m,
	}

	if cfg.Publish.Mode == "jetstream" {
		p.js, err = jetstream.New(nc)
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("failed to create JetStream: %w", err)
		}
	}

	return p, nil
}

// Publish sends the message, retrying with exponential backoff up to
// MaxRetries additional attempts.
func (p *NATSPublisher) Publish(ctx context.Context, msg Message) error {
	attempts := p.cfg.MaxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = p.publishOnce(ctx, msg)
		if lastErr == nil {
			p.logger.Debug("published webhook to NATS",
				"id", msg.ID,
				"subject", msg.Subject,
				"attempt", attempt)
			p.recordPublish(msg.Subject, "success")
			return nil
		}

		if attempt == attempts {
			break
		}

		delay := retryDelay(p.cfg.RetryBaseDelay, attempt)
		p.logger.Warn("NATS publish failed, retrying",
			"id", msg.ID,
			"subject", msg.Subject,
			"attempt", attempt,
			"maxAttempts", attempts,
			"nextRetryIn", delay,
			"error", lastErr)

		select {
		case <-ctx.Done():
			p.recordPublish(msg.Subject, "error")
			return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	p.recordPublish(msg.Subject, "error")
	return fmt.Errorf("NATS publish failed after %d attempts: %w", attempts, lastErr)
}

func (p *NATSPublisher) publishOnce(ctx context.Context, msg Message) error {
	if p.js == nil {
		return p.conn.PublishMsg(msg.natsMsg())
	}

	ackCtx, cancel := context.WithTimeout(ctx, p.cfg.AckTimeout)
	defer cancel()

	// The webhook ID doubles as the JetStream dedup key so retries are idempotent
	if _, err := p.js.PublishMsg(ackCtx, msg.natsMsg(), jetstream.WithMsgID(msg.ID)); err != nil {
		return fmt.Errorf("jetstream publish failed: %w", err)
	}
	return nil
}

func (p *NATSPublisher) recordPublish(subject, status string) {
	if p.metrics != nil {
		p.metrics.IncNATSPublish(subject, status)
	}
}

// IsConnected reports whether the underlying connection is up
func (p *NATSPublisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}

// Close drains pending publishes and closes the connection
func (p *NATSPublisher) Close() error {
	p.logger.Info("closing NATS connection")

	if err := p.conn.Drain(); err != nil {
		return fmt.Errorf("failed to drain connection: %w", err)
	}
	return nil
}

// retryDelay returns base * 2^(attempt-1), capped at maxRetryDelay
func retryDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 || attempt < 1 {
		return 0
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return min(delay, maxRetryDelay)
}

// buildNATSOptions creates NATS connection options with auth and TLS
func buildNATSOptions(cfg *config.NATSConfig, log *logger.Logger, m *metrics.Metrics) ([]nats.Option, error) {
	opts := []nats.Option{
		nats.Name("webhook-gateway"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(natsReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected", "error", err)
			if m != nil {
				m.SetNATSConnectionStatus(false)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", "url", nc.ConnectedUrl())
			if m != nil {
				m.SetNATSConnectionStatus(true)
				m.IncNATSReconnects()
			}
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info("NATS connection closed")
			if m != nil {
				m.SetNATSConnectionStatus(false)
			}
		}),
	}

	// Authentication (validated to be at most one)
	switch {
	case cfg.CredsFile != "":
		log.Info("using NATS creds file authentication", "credsFile", cfg.CredsFile)
		opts = append(opts, nats.UserCredentials(cfg.CredsFile))
	case cfg.NKeySeed != "":
		opt, err := nkeyOption(cfg.NKeySeed)
		if err != nil {
			return nil, err
		}
		log.Info("using NATS NKey authentication")
		opts = append(opts, opt)
	case cfg.Token != "":
		log.Info("using NATS token authentication")
		opts = append(opts, nats.Token(cfg.Token))
	case cfg.Username != "":
		log.Info("using NATS username/password authentication", "username", cfg.Username)
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}

	tlsConfig, err := CreateTLSConfig(cfg.TLS, log)
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil {
		opts = append(opts, nats.Secure(tlsConfig))
	}

	return opts, nil
}

// nkeyOption derives the user public key from a seed and signs server nonces with it
func nkeyOption(seed string) (nats.Option, error) {
	kp, err := nkeys.FromSeed([]byte(strings.TrimSpace(seed)))
	if err != nil {
		return nil, fmt.Errorf("invalid NATS nkey seed: %w", err)
	}
	pub, err := kp.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("failed to derive nkey public key: %w", err)
	}
	if !nkeys.IsValidPublicUserKey(pub) {
		return nil, fmt.Errorf("NATS nkey seed is not a user seed")
	}
	return nats.Nkey(pub, kp.Sign), nil
}
