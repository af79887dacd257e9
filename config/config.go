// file: config/config.go

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envPrefix namespaces environment overrides, e.g. WEBHOOK_GATEWAY_HTTP_SERVER_ADDRESS
const envPrefix = "WEBHOOK_GATEWAY"

// Sender names used as config keys, log fields and metric labels
const (
	SenderFordefi     = "fordefi"
	SenderHypernative = "hypernative"
)

type Config struct {
	Logging LogConfig     `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	NATS    NATSConfig    `mapstructure:"nats"`
	Senders SendersConfig `mapstructure:"senders"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`      // debug, info, warn, error
	OutputPath string `mapstructure:"outputPath"` // file path or "stdout"
	Encoding   string `mapstructure:"encoding"`   // json or console
}

type MetricsConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Address        string        `mapstructure:"address"`
	Path           string        `mapstructure:"path"`
	UpdateInterval time.Duration `mapstructure:"updateInterval"`
}

// HTTPConfig contains the inbound webhook server configuration
type HTTPConfig struct {
	Server HTTPServerConfig `mapstructure:"server"`
}

type HTTPServerConfig struct {
	Address             string        `mapstructure:"address"`
	ReadTimeout         time.Duration `mapstructure:"readTimeout"`
	WriteTimeout        time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout         time.Duration `mapstructure:"idleTimeout"`
	MaxHeaderBytes      int           `mapstructure:"maxHeaderBytes"`
	MaxBodyBytes        int64         `mapstructure:"maxBodyBytes"`
	ShutdownGracePeriod time.Duration `mapstructure:"shutdownGracePeriod"`
	InboundWorkerCount  int           `mapstructure:"inboundWorkerCount"`
	InboundQueueSize    int           `mapstructure:"inboundQueueSize"`
}

// NATSConfig configures forwarding of authenticated webhooks
type NATSConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	URLs     []string `mapstructure:"urls"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	Token    string   `mapstructure:"token"`

	NKeySeed  string `mapstructure:"nkeySeed"`  // user seed (SU...) for nkey auth
	CredsFile string `mapstructure:"credsFile"` // path to .creds file

	TLS     TLSConfig     `mapstructure:"tls"`
	Publish PublishConfig `mapstructure:"publish"`
}

type TLSConfig struct {
	Enable   bool   `mapstructure:"enable"`
	CertFile string `mapstructure:"certFile"`
	KeyFile  string `mapstructure:"keyFile"`
	CAFile   string `mapstructure:"caFile"`
	Insecure bool   `mapstructure:"insecure"` // skip certificate verification
}

type PublishConfig struct {
	Mode           string        `mapstructure:"mode"` // "jetstream" or "core"
	AckTimeout     time.Duration `mapstructure:"ackTimeout"`
	MaxRetries     int           `mapstructure:"maxRetries"`
	RetryBaseDelay time.Duration `mapstructure:"retryBaseDelay"`
}

type SendersConfig struct {
	Fordefi     SenderConfig `mapstructure:"fordefi"`
	Hypernative SenderConfig `mapstructure:"hypernative"`
}

// SenderConfig describes one webhook sender. The public key is taken from the
// first non-empty source: PublicKey, the env var named by PublicKeyEnv, then
// PublicKeyFile.
type SenderConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Path            string `mapstructure:"path"`
	PublicKey       string `mapstructure:"publicKey"`
	PublicKeyEnv    string `mapstructure:"publicKeyEnv"`
	PublicKeyFile   string `mapstructure:"publicKeyFile"`
	SignatureHeader string `mapstructure:"signatureHeader"`
	SignatureField  string `mapstructure:"signatureField"`
	PayloadField    string `mapstructure:"payloadField"` // empty = whole body
	Encoding        string `mapstructure:"encoding"`     // der or p1363
	Subject         string `mapstructure:"subject"`
}

// Load reads the config file (YAML or JSON) and applies environment overrides.
// An empty path loads defaults plus environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so environment overrides work without a
// config file entry.
func setDefaults(v *viper.Viper) {
	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.outputPath", "stdout")
	v.SetDefault("logging.encoding", "json")

	// Metrics
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.address", ":2112")
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.updateInterval", 15*time.Second)

	// HTTP server
	v.SetDefault("http.server.address", ":8080")
	v.SetDefault("http.server.readTimeout", 30*time.Second)
	v.SetDefault("http.server.writeTimeout", 30*time.Second)
	v.SetDefault("http.server.idleTimeout", 120*time.Second)
	v.SetDefault("http.server.maxHeaderBytes", 1<<20)
	v.SetDefault("http.server.maxBodyBytes", 10<<20)
	v.SetDefault("http.server.shutdownGracePeriod", 30*time.Second)
	v.SetDefault("http.server.inboundWorkerCount", 10)
	v.SetDefault("http.server.inboundQueueSize", 1000)

	// NATS
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.urls", []string{"nats://localhost:4222"})
	v.SetDefault("nats.username", "")
	v.SetDefault("nats.password", "")
	v.SetDefault("nats.token", "")
	v.SetDefault("nats.nkeySeed", "")
	v.SetDefault("nats.credsFile", "")
	v.SetDefault("nats.tls.enable", false)
	v.SetDefault("nats.tls.certFile", "")
	v.SetDefault("nats.tls.keyFile", "")
	v.SetDefault("nats.tls.caFile", "")
	v.SetDefault("nats.tls.insecure", false)
	v.SetDefault("nats.publish.mode", "jetstream")
	v.SetDefault("nats.publish.ackTimeout", 5*time.Second)
	v.SetDefault("nats.publish.maxRetries", 3)
	v.SetDefault("nats.publish.retryBaseDelay", 50*time.Millisecond)

	// Senders
	setSenderDefaults(v, SenderFordefi, SenderConfig{
		Enabled:         true,
		Path:            "/webhooks/fordefi",
		PublicKeyEnv:    "FORDEFI_PUBLIC_KEY",
		PublicKeyFile:   "keys/fordefi_public_key.pem",
		SignatureHeader: "X-Signature",
		Encoding:        "der",
		Subject:         "webhooks.fordefi",
	})
	setSenderDefaults(v, SenderHypernative, SenderConfig{
		Enabled:        true,
		Path:           "/webhooks/hypernative",
		PublicKeyEnv:   "HYPERNATIVE_PUBLIC_KEY",
		PublicKeyFile:  "keys/hypernative_public_key.pem",
		SignatureField: "digitalSignature",
		PayloadField:   "data",
		Encoding:       "der",
		Subject:        "webhooks.hypernative",
	})
}

func setSenderDefaults(v *viper.Viper, name string, s SenderConfig) {
	prefix := "senders." + name + "."
	v.SetDefault(prefix+"enabled", s.Enabled)
	v.SetDefault(prefix+"path", s.Path)
	v.SetDefault(prefix+"publicKey", s.PublicKey)
	v.SetDefault(prefix+"publicKeyEnv", s.PublicKeyEnv)
	v.SetDefault(prefix+"publicKeyFile", s.PublicKeyFile)
	v.SetDefault(prefix+"signatureHeader", s.SignatureHeader)
	v.SetDefault(prefix+"signatureField", s.SignatureField)
	v.SetDefault(prefix+"payloadField", s.PayloadField)
	v.SetDefault(prefix+"encoding", s.Encoding)
	v.SetDefault(prefix+"subject", s.Subject)
}

// validateConfig performs validation of all configuration values
func validateConfig(cfg *Config) error {
	// Validate logging config
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}

	switch cfg.Logging.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log encoding: %s", cfg.Logging.Encoding)
	}

	// Validate metrics config
	if cfg.Metrics.Enabled {
		if cfg.Metrics.Address == "" {
			return fmt.Errorf("metrics address is required when metrics are enabled")
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			return fmt.Errorf("metrics path must start with '/': %s", cfg.Metrics.Path)
		}
		if cfg.Metrics.UpdateInterval <= 0 {
			return fmt.Errorf("metrics update interval must be positive")
		}
	}

	// Validate HTTP server config
	if cfg.HTTP.Server.Address == "" {
		return fmt.Errorf("HTTP server address cannot be empty")
	}
	if cfg.HTTP.Server.ReadTimeout < 0 || cfg.HTTP.Server.WriteTimeout < 0 {
		return fmt.Errorf("HTTP server timeouts cannot be negative")
	}
	if cfg.HTTP.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("HTTP server max body bytes must be positive")
	}
	if cfg.HTTP.Server.InboundWorkerCount < 1 {
		return fmt.Errorf("inbound worker count must be at least 1")
	}
	if cfg.HTTP.Server.InboundQueueSize < 1 {
		return fmt.Errorf("inbound queue size must be at least 1")
	}

	if err := validateNATS(&cfg.NATS); err != nil {
		return err
	}

	return validateSenders(&cfg.Senders)
}

func validateNATS(cfg *NATSConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if len(cfg.URLs) == 0 {
		return fmt.Errorf("at least one NATS URL must be specified")
	}

	// Validate authentication options are not conflicting
	authCount := 0
	if cfg.Username != "" {
		authCount++
	}
	if cfg.Token != "" {
		authCount++
	}
	if cfg.NKeySeed != "" {
		authCount++
	}
	if cfg.CredsFile != "" {
		authCount++
	}
	if authCount > 1 {
		return fmt.Errorf("only one NATS authentication method should be specified")
	}

	if cfg.TLS.Enable {
		if cfg.TLS.CertFile != "" && cfg.TLS.KeyFile == "" {
			return fmt.Errorf("NATS TLS key file is required when cert file is provided")
		}
		if cfg.TLS.KeyFile != "" && cfg.TLS.CertFile == "" {
			return fmt.Errorf("NATS TLS cert file is required when key file is provided")
		}
	}

	if cfg.CredsFile != "" {
		if _, err := os.Stat(cfg.CredsFile); os.IsNotExist(err) {
			return fmt.Errorf("NATS creds file does not exist: %s", cfg.CredsFile)
		}
	}

	switch cfg.Publish.Mode {
	case "jetstream", "core":
	default:
		return fmt.Errorf("invalid NATS publish mode: %s (must be 'jetstream' or 'core')", cfg.Publish.Mode)
	}
	if cfg.Publish.AckTimeout <= 0 {
		return fmt.Errorf("NATS publish ack timeout must be positive")
	}
	if cfg.Publish.MaxRetries < 0 {
		return fmt.Errorf("NATS publish max retries cannot be negative")
	}

	return nil
}

func validateSenders(cfg *SendersConfig) error {
	enabled := 0
	paths := make(map[string]string)

	for name, s := range cfg.All() {
		if !s.Enabled {
			continue
		}
		enabled++

		if !strings.HasPrefix(s.Path, "/") {
			return fmt.Errorf("sender %s: path must start with '/': %q", name, s.Path)
		}
		if s.Path == "/health" || s.Path == "/healthz" {
			return fmt.Errorf("sender %s: path %s is reserved", name, s.Path)
		}
		if other, ok := paths[s.Path]; ok {
			return fmt.Errorf("sender %s: path %s already used by sender %s", name, s.Path, other)
		}
		paths[s.Path] = name

		if s.PublicKey == "" && s.PublicKeyEnv == "" && s.PublicKeyFile == "" {
			return fmt.Errorf("sender %s: a public key source is required", name)
		}
		if (s.SignatureHeader == "") == (s.SignatureField == "") {
			return fmt.Errorf("sender %s: exactly one of signatureHeader or signatureField must be set", name)
		}
		if s.SignatureField != "" && s.SignatureField == s.PayloadField {
			return fmt.Errorf("sender %s: signature and payload cannot share field %q", name, s.SignatureField)
		}
	}

	if enabled == 0 {
		return fmt.Errorf("at least one sender must be enabled")
	}
	return nil
}

// All returns senders keyed by name.
func (s *SendersConfig) All() map[string]SenderConfig {
	return map[string]SenderConfig{
		SenderFordefi:     s.Fordefi,
		SenderHypernative: s.Hypernative,
	}
}

// ErrNoPublicKey is returned when none of a sender's key sources resolve.
var ErrNoPublicKey = errors.New("no public key configured")

// ResolvePublicKey returns the PEM text for the sender and a description of
// where it came from.
func (s SenderConfig) ResolvePublicKey() (pemText, source string, err error) {
	if s.PublicKey != "" {
		return s.PublicKey, "config", nil
	}
	if s.PublicKeyEnv != "" {
		if value := os.Getenv(s.PublicKeyEnv); value != "" {
			return value, "env:" + s.PublicKeyEnv, nil
		}
	}
	if s.PublicKeyFile != "" {
		data, err := os.ReadFile(s.PublicKeyFile)
		if err != nil {
			if os.IsNotExist(err) && s.PublicKeyEnv != "" {
				return "", "", fmt.Errorf("%w: env %s is empty and %w", ErrNoPublicKey, s.PublicKeyEnv, err)
			}
			return "", "", fmt.Errorf("failed to read public key file: %w", err)
		}
		return string(data), "file:" + s.PublicKeyFile, nil
	}
	return "", "", ErrNoPublicKey
}

// ApplyOverrides applies command line flag overrides to the configuration
func (c *Config) ApplyOverrides(httpAddr, metricsAddr, logLevel string) {
	if httpAddr != "" {
		c.HTTP.Server.Address = httpAddr
	}
	if metricsAddr != "" {
		c.Metrics.Address = metricsAddr
		c.Metrics.Enabled = true
	}
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
}
