// Package config handles configuration loading for the HCX node.
//
// Configuration is loaded from a YAML file with support for environment
// variable expansion (${VAR} or $VAR syntax). This allows secrets such as
// the gateway token to be injected at runtime. A fixed set of environment
// variables is then overlaid on top of the file so that a node can also be
// configured from the environment alone.
//
// # Configuration Sections
//
//   - server: HTTP server settings (port, TLS, callback path, rate limit)
//   - participant: our sender code, default recipient, claim template
//   - peer: HCX gateway base URL, API version, token, timeout
//   - keys: PEM files for the envelope key pair
//   - tracking: correlation TTL and duplicate callback window
//   - broadcast: subscriber buffers and the optional Redis relay
//   - logging: slog level and format
//   - observability: Prometheus metrics endpoint
//
// # Example Configuration
//
//	server:
//	  port: 8080
//	participant:
//	  senderCode: ${SENDER_CODE}
//	peer:
//	  baseURL: https://staging-hcx.swasth.app/api
//	  apiVersion: v0.7
//	  authToken: ${HCX_AUTH_TOKEN}
//	keys:
//	  privateKeyFile: /etc/hcx/keys/node.key
//
// See [Load] for loading configuration from a file.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shiva-rakshith/hcx-platform/pkg/protocol"
)

// Config is the root configuration structure
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Participant ParticipantConfig `yaml:"participant"`
	Peer        PeerConfig        `yaml:"peer"`
	Keys        KeysConfig        `yaml:"keys"`
	Tracking    TrackingConfig    `yaml:"tracking"`
	Broadcast   BroadcastConfig   `yaml:"broadcast"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"observability"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int           `yaml:"port"`
	BasePath        string        `yaml:"basePath"`
	CallbackPath    string        `yaml:"callbackPath"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	TLS             struct {
		Enabled  bool   `yaml:"enabled"`
		CertFile string `yaml:"certFile"`
		KeyFile  string `yaml:"keyFile"`
	} `yaml:"tls"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	// WebSocketOrigins lists host patterns allowed to open /ws cross-origin
	WebSocketOrigins []string `yaml:"websocketOrigins"`
}

// RateLimitConfig limits callback requests per client address
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
}

// ParticipantConfig describes this node as an HCX participant
type ParticipantConfig struct {
	SenderCode string `yaml:"senderCode"`
	// RecipientCode is used when a submission names no recipient
	RecipientCode string `yaml:"recipientCode"`
	// TemplateFile overrides the built-in preauth template
	TemplateFile string `yaml:"templateFile"`
	// Delay is sent as x-hcx-delay; empty omits the header
	Delay *string `yaml:"delay"`
}

// PeerConfig holds the HCX gateway connection settings
type PeerConfig struct {
	BaseURL    string        `yaml:"baseURL"`
	APIVersion string        `yaml:"apiVersion"`
	AuthToken  string        `yaml:"authToken"`
	Timeout    time.Duration `yaml:"timeout"`
}

// KeysConfig locates the envelope key material
type KeysConfig struct {
	PrivateKeyFile    string `yaml:"privateKeyFile"`
	CertificateFile   string `yaml:"certificateFile"`
	RecipientCertFile string `yaml:"recipientCertFile"`
	// TrustedCAFile, when set, is the CA bundle the recipient certificate
	// must chain to
	TrustedCAFile string `yaml:"trustedCAFile"`
	// Generate creates an ephemeral self-addressed key pair at startup
	// when no private key file is configured (development only)
	Generate bool `yaml:"generate"`
}

// TrackingConfig holds correlation tracker settings
type TrackingConfig struct {
	TTL             time.Duration `yaml:"ttl"`
	DuplicateWindow time.Duration `yaml:"duplicateWindow"`
}

// BroadcastConfig holds subscriber fan-out settings
type BroadcastConfig struct {
	Buffer       int           `yaml:"buffer"`
	PingInterval time.Duration `yaml:"pingInterval"`
	Redis        RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis relay settings
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Channel string `yaml:"channel"`
}

// LoggingConfig holds log output settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds observability settings
type MetricsConfig struct {
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
		Runtime bool   `yaml:"runtime"`
	} `yaml:"metrics"`
}

// Environment variables overlaid onto the configuration
const (
	EnvRecipientCode     = "recipient_code"
	EnvSenderCode        = "SENDER_CODE"
	EnvAPIVersion        = "api_version"
	EnvProtocolBasePath  = "HCX_PROTOCOL_BASE_PATH"
	EnvPrivateKeyFile    = "HCX_PRIVATE_KEY_FILE"
	EnvRecipientCertFile = "HCX_RECIPIENT_CERT_FILE"
	EnvAuthToken         = "HCX_AUTH_TOKEN"
	EnvTemplateFile      = "HCX_TEMPLATE_FILE"
)

// Load reads configuration from a YAML file. An empty path yields the
// defaults. The environment overlay is applied in both cases.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		// Expand environment variables
		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.ApplyEnv(os.LookupEnv)
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// ApplyEnv overlays non-empty environment variables onto the configuration
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	set(EnvRecipientCode, &c.Participant.RecipientCode)
	set(EnvSenderCode, &c.Participant.SenderCode)
	set(EnvTemplateFile, &c.Participant.TemplateFile)
	set(EnvAPIVersion, &c.Peer.APIVersion)
	set(EnvProtocolBasePath, &c.Peer.BaseURL)
	set(EnvAuthToken, &c.Peer.AuthToken)
	set(EnvPrivateKeyFile, &c.Keys.PrivateKeyFile)
	set(EnvRecipientCertFile, &c.Keys.RecipientCertFile)
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BasePath == "" {
		c.Server.BasePath = "/"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Server.RateLimit.Enabled {
		if c.Server.RateLimit.RequestsPerSecond == 0 {
			c.Server.RateLimit.RequestsPerSecond = 10
		}
		if c.Server.RateLimit.Burst == 0 {
			c.Server.RateLimit.Burst = 20
		}
	}
	if c.Participant.Delay == nil {
		delay := protocol.DefaultDelay
		c.Participant.Delay = &delay
	}
	if c.Peer.Timeout == 0 {
		c.Peer.Timeout = 30 * time.Second
	}
	if c.Tracking.TTL == 0 {
		c.Tracking.TTL = time.Hour
	}
	if c.Tracking.DuplicateWindow == 0 {
		c.Tracking.DuplicateWindow = 24 * time.Hour
	}
	if c.Broadcast.Buffer == 0 {
		c.Broadcast.Buffer = 64
	}
	if c.Broadcast.PingInterval == 0 {
		c.Broadcast.PingInterval = 30 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Metrics.Metrics.Path == "" {
		c.Metrics.Metrics.Path = "/metrics"
	}
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.TLS.Enabled && (c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "") {
		return fmt.Errorf("server.tls.certFile and server.tls.keyFile are required when TLS is enabled")
	}

	if c.Server.RateLimit.Enabled && (c.Server.RateLimit.RequestsPerSecond <= 0 || c.Server.RateLimit.Burst <= 0) {
		return fmt.Errorf("server.rateLimit requires positive requestsPerSecond and burst")
	}

	if c.Peer.BaseURL == "" {
		return fmt.Errorf("peer.baseURL is required (or set %s)", EnvProtocolBasePath)
	}
	u, err := url.Parse(c.Peer.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("peer.baseURL must be an absolute http(s) URL, got '%s'", c.Peer.BaseURL)
	}

	if c.Keys.PrivateKeyFile == "" && !c.Keys.Generate {
		return fmt.Errorf("keys.privateKeyFile is required (or set %s, or keys.generate for development)", EnvPrivateKeyFile)
	}

	if c.Broadcast.Redis.Enabled && c.Broadcast.Redis.URL == "" {
		return fmt.Errorf("broadcast.redis.url is required when the relay is enabled")
	}

	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}

	switch c.Logging.Format {
	case "json", "text":
		// Valid formats
	default:
		return fmt.Errorf("logging.format must be 'json' or 'text', got '%s'", c.Logging.Format)
	}

	return nil
}

// CallbackPath returns the route on which gateway callbacks are received
func (c *Config) CallbackPath() string {
	if c.Server.CallbackPath != "" {
		return "/" + strings.TrimLeft(c.Server.CallbackPath, "/")
	}
	return protocol.OpPreauthOnSubmit.Path(c.Peer.APIVersion)
}

// SubmitPath returns the gateway path that receives preauth submissions
func (c *Config) SubmitPath() string {
	return protocol.OpPreauthSubmit.Path(c.Peer.APIVersion)
}

// DelayValue returns the configured x-hcx-delay value
func (c *Config) DelayValue() string {
	if c.Participant.Delay == nil {
		return protocol.DefaultDelay
	}
	return *c.Participant.Delay
}

// SlogLevel returns the configured log level
func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.Logging.Level)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("logging.level must be debug, info, warn or error, got '%s'", s)
	}
	return level, nil
}
