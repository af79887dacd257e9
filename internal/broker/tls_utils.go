//file: internal/broker/tls_utils.go

package broker

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"webhook-gateway/config"
	"webhook-gateway/internal/logger"
)

// CreateTLSConfig builds the client *tls.Config for the NATS connection.
// Returns nil when TLS is disabled.
func CreateTLSConfig(cfg config.TLSConfig, log *logger.Logger) (*tls.Config, error) {
	if !cfg.Enable {
		return nil, nil
	}

	log.Info("enabling TLS connection", "insecure", cfg.Insecure)

	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.Insecure,
	}

	// Client certificate for mutual TLS
	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
		log.Info("loaded TLS client certificate", "certFile", cfg.CertFile)
	}

	if cfg.CAFile != "" {
		caCert, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate %s", cfg.CAFile)
		}
		tlsConfig.RootCAs = caCertPool
		log.Info("loaded TLS CA certificate", "caFile", cfg.CAFile)
	}

	return tlsConfig, nil
}
