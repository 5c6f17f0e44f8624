package internal

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"hookgate/pkg/filter"
	"hookgate/pkg/verify"
)

// Config is the full application configuration.
type Config struct {
	// Server holds HTTP server settings.
	Server struct {
		Port           int    `yaml:"port"`
		ReadTimeoutMS  int64  `yaml:"read_timeout_ms"`
		WriteTimeoutMS int64  `yaml:"write_timeout_ms"`
		IdleTimeoutMS  int64  `yaml:"idle_timeout_ms"`
		ReadHeaderMS   int64  `yaml:"read_header_timeout_ms"`
		MaxBodyBytes   int64  `yaml:"max_body_bytes"`
		MaxConns       int    `yaml:"max_conns"`
		RateLimitRPS   int64  `yaml:"rate_limit_rps"`
		RateLimitBurst int64  `yaml:"rate_limit_burst"`
		MetricsEnabled bool   `yaml:"metrics_enabled"`
		MetricsPath    string `yaml:"metrics_path"`
		AdminEnabled   bool   `yaml:"admin_enabled"`
	} `yaml:"server"`
	// Integrations maps an integration name to its inbound binding.
	Integrations map[string]IntegrationConfig `yaml:"integrations"`
	// Filter holds the admission rule parameters.
	Filter filter.Config `yaml:"filter"`
	// Watermill configures the downstream publishers.
	Watermill WatermillConfig `yaml:"watermill"`
	// Storage configures the installation record store.
	Storage StorageConfig `yaml:"storage"`
}

// IntegrationConfig binds one webhook endpoint to a provider, a
// verification scheme, and the material the scheme needs.
type IntegrationConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Provider string   `yaml:"provider"`
	Scheme   string   `yaml:"scheme"`
	Path     string   `yaml:"path"`
	Topic    string   `yaml:"topic"`
	Drivers  []string `yaml:"drivers"`

	Secret         string `yaml:"secret"`
	PublicKey      string `yaml:"public_key"`
	AppID          string `yaml:"app_id"`
	PrivateKeyPath string `yaml:"private_key_path"`
	BaseURL        string `yaml:"base_url"`

	SignatureHeader string   `yaml:"signature_header"`
	TimestampHeader string   `yaml:"timestamp_header"`
	TokenHeader     string   `yaml:"token_header"`
	IssuerPrefixes  []string `yaml:"issuer_prefixes"`
}

// Material builds the verification material for this integration.
func (c IntegrationConfig) Material() verify.Material {
	return verify.Material{
		Secret:          c.Secret,
		PublicKeyHex:    c.PublicKey,
		AppID:           c.AppID,
		SignatureHeader: c.SignatureHeader,
		TimestampHeader: c.TimestampHeader,
		TokenHeader:     c.TokenHeader,
		IssuerPrefixes:  c.IssuerPrefixes,
	}
}

// StorageConfig configures the installation record store.
type StorageConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Driver      string `yaml:"driver"`
	DSN         string `yaml:"dsn"`
	Table       string `yaml:"table"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

// WatermillConfig holds the configuration for the downstream publishers.
type WatermillConfig struct {
	Driver       string             `yaml:"driver"`
	Drivers      []string           `yaml:"drivers"`
	GoChannel    GoChannelConfig    `yaml:"gochannel"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	NATS         NATSConfig         `yaml:"nats"`
	AMQP         AMQPConfig         `yaml:"amqp"`
	SQL          SQLConfig          `yaml:"sql"`
	HTTP         HTTPConfig         `yaml:"http"`
	RiverQueue   RiverQueueConfig   `yaml:"riverqueue"`
	PublishRetry PublishRetryConfig `yaml:"publish_retry"`
}

// GoChannelConfig holds configuration for the in-process pub/sub.
type GoChannelConfig struct {
	OutputChannelBuffer            int64 `yaml:"output_buffer"`
	Persistent                     bool  `yaml:"persistent"`
	BlockPublishUntilSubscriberAck bool  `yaml:"block_publish_until_subscriber_ack"`
}

// KafkaConfig holds configuration for the Kafka publisher.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

// NATSConfig holds configuration for the NATS Streaming publisher.
type NATSConfig struct {
	ClusterID string `yaml:"cluster_id"`
	ClientID  string `yaml:"client_id"`
	URL       string `yaml:"url"`
}

// AMQPConfig holds configuration for the AMQP publisher.
type AMQPConfig struct {
	URL  string `yaml:"url"`
	Mode string `yaml:"mode"`
}

// SQLConfig holds configuration for the SQL publisher.
type SQLConfig struct {
	Driver               string `yaml:"driver"`
	DSN                  string `yaml:"dsn"`
	Dialect              string `yaml:"dialect"`
	AutoInitializeSchema bool   `yaml:"auto_initialize_schema"`
}

// HTTPConfig holds configuration for the HTTP publisher.
type HTTPConfig struct {
	BaseURL string `yaml:"base_url"`
	Mode    string `yaml:"mode"`
}

// RiverQueueConfig holds configuration for the River job-queue publisher.
type RiverQueueConfig struct {
	DSN         string   `yaml:"dsn"`
	Queue       string   `yaml:"queue"`
	Kind        string   `yaml:"kind"`
	MaxAttempts int      `yaml:"max_attempts"`
	Priority    int      `yaml:"priority"`
	Tags        []string `yaml:"tags"`
}

type PublishRetryConfig struct {
	Attempts int `yaml:"attempts"`
	DelayMS  int `yaml:"delay_ms"`
}

// LoadConfig loads the application configuration from a YAML file. It
// expands environment variables, applies defaults, and validates each
// integration's scheme and material.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, err
	}

	applyDefaults(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// defaultSchemes maps well-known providers to the scheme they are
// statically bound to.
var defaultSchemes = map[string]verify.Scheme{
	"github":  verify.SchemeHMACSHA256,
	"gitlab":  verify.SchemeSharedToken,
	"slack":   verify.SchemeHMACReplay,
	"discord": verify.SchemeEd25519,
	"gchat":   verify.SchemeJWTBearer,
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeoutMS == 0 {
		cfg.Server.ReadTimeoutMS = 5000
	}
	if cfg.Server.WriteTimeoutMS == 0 {
		cfg.Server.WriteTimeoutMS = 10000
	}
	if cfg.Server.IdleTimeoutMS == 0 {
		cfg.Server.IdleTimeoutMS = 60000
	}
	if cfg.Server.ReadHeaderMS == 0 {
		cfg.Server.ReadHeaderMS = 5000
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 1 << 20
	}
	if cfg.Server.MetricsPath == "" {
		cfg.Server.MetricsPath = "/metrics"
	}

	for name, integration := range cfg.Integrations {
		if integration.Provider == "" {
			integration.Provider = name
		}
		integration.Provider = strings.ToLower(integration.Provider)
		if integration.Scheme == "" {
			if scheme, ok := defaultSchemes[integration.Provider]; ok {
				integration.Scheme = string(scheme)
			}
		}
		if integration.Path == "" {
			integration.Path = "/webhooks/" + name
		}
		if integration.Topic == "" {
			integration.Topic = "hookgate." + name
		}
		cfg.Integrations[name] = integration
	}

	if cfg.Watermill.Driver == "" && len(cfg.Watermill.Drivers) == 0 {
		cfg.Watermill.Driver = "gochannel"
	}
	if cfg.Watermill.GoChannel.OutputChannelBuffer == 0 {
		cfg.Watermill.GoChannel.OutputChannelBuffer = 64
	}
	if cfg.Watermill.HTTP.Mode == "" {
		cfg.Watermill.HTTP.Mode = "topic_url"
	}
	if cfg.Watermill.RiverQueue.Queue == "" {
		cfg.Watermill.RiverQueue.Queue = "default"
	}
	if cfg.Watermill.RiverQueue.Kind == "" {
		cfg.Watermill.RiverQueue.Kind = "hookgate.event"
	}
	if cfg.Watermill.RiverQueue.MaxAttempts == 0 {
		cfg.Watermill.RiverQueue.MaxAttempts = 25
	}
	if cfg.Watermill.PublishRetry.Attempts == 0 {
		cfg.Watermill.PublishRetry.Attempts = 3
	}
	if cfg.Watermill.PublishRetry.DelayMS == 0 {
		cfg.Watermill.PublishRetry.DelayMS = 500
	}
	if cfg.Storage.Table == "" {
		cfg.Storage.Table = "hookgate_installations"
	}
}

// validate rejects integrations whose scheme is unknown or whose material
// is missing. A misconfigured integration must fail loudly at load time,
// not degrade into rejecting (or accepting) every request at runtime.
func validate(cfg Config) error {
	for name, integration := range cfg.Integrations {
		if !integration.Enabled {
			continue
		}
		scheme := verify.Scheme(integration.Scheme)
		if !verify.Known(scheme) {
			return fmt.Errorf("integration %s: unknown scheme %q", name, integration.Scheme)
		}
		switch scheme {
		case verify.SchemeHMACSHA256, verify.SchemeHMACReplay, verify.SchemeSharedToken:
			if integration.Secret == "" {
				return fmt.Errorf("integration %s: scheme %s requires a secret", name, scheme)
			}
		case verify.SchemeEd25519:
			if integration.PublicKey == "" {
				return fmt.Errorf("integration %s: scheme %s requires a public_key", name, scheme)
			}
		case verify.SchemeJWTBearer:
			if integration.AppID == "" {
				return fmt.Errorf("integration %s: scheme %s requires an app_id", name, scheme)
			}
		}
	}
	return nil
}
