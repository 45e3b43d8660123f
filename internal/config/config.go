package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultTick              = 5 * time.Second
	DefaultMaxConcurrent     = 50
	DefaultMinInterval       = 20 * time.Second
	DefaultCheckInterval     = 60 * time.Second
	DefaultConnectionTimeout = 10 * time.Second
	DefaultFailureThreshold  = 3

	DefaultQueueWorkers  = 3
	DefaultPerChatRate   = 1 * time.Second
	DefaultQueueCapacity = 256
	DefaultMaxAttempts   = 5

	DefaultBenchThreshold = 0.35
	DefaultBenchInterval  = 5 * time.Minute

	DefaultHTTPPort         = 8080
	DefaultStorePath        = "watchpost.db"
	DefaultHistoryRetention = 7 * 24 * time.Hour
)

// Config is the top-level daemon configuration. Fields map 1:1 to the YAML
// config file; secrets are resolved indirectly through environment variable
// names so the file itself never holds a credential.
type Config struct {
	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	Monitor  MonitorConfig  `yaml:"monitor"`
	Queue    QueueConfig    `yaml:"queue"`
	Bench    BenchConfig    `yaml:"bench"`
	Notify   NotifyConfig   `yaml:"notify"`
	Storage  StorageConfig  `yaml:"storage"`
	Security SecurityConfig `yaml:"security"`
	API      APIConfig      `yaml:"api"`
}

// MonitorConfig holds the scheduler and state-tracker settings.
type MonitorConfig struct {
	// Tick is the scheduler wake interval. Target eligibility is evaluated
	// on every tick against each target's own check interval.
	Tick time.Duration `yaml:"tick"`

	// MaxConcurrentChecks bounds the number of probes in flight at once.
	MaxConcurrentChecks int `yaml:"max_concurrent_checks"`

	// MinInterval is the floor applied to per-target check intervals.
	MinInterval time.Duration `yaml:"min_interval"`

	// DefaultInterval is assigned to targets registered without an interval.
	DefaultInterval time.Duration `yaml:"default_interval"`

	// ConnectionTimeout is the per-probe TCP connect deadline.
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`

	// FailureThreshold is the consecutive-failure count at which a target
	// transitions to DOWN and a single alert fires.
	FailureThreshold int `yaml:"failure_threshold"`
}

// QueueConfig holds the delivery queue settings.
type QueueConfig struct {
	// Workers is the number of concurrent delivery workers.
	Workers int `yaml:"workers"`

	// PerChatRate is the minimum spacing between two deliveries to the same
	// recipient.
	PerChatRate time.Duration `yaml:"per_chat_rate"`

	// Capacity bounds the number of messages waiting for delivery; new
	// messages are dropped (and counted) when the queue is full.
	Capacity int `yaml:"capacity"`

	// MaxAttempts bounds delivery attempts per message, first try included.
	MaxAttempts int `yaml:"max_attempts"`
}

// BenchConfig holds the benchmark poller settings.
type BenchConfig struct {
	// Enabled switches the poller on. All other bench fields are ignored
	// when false.
	Enabled bool `yaml:"enabled"`

	// ThresholdSeconds is the benchmark value above which an alert fires.
	ThresholdSeconds float64 `yaml:"threshold_seconds"`

	// Interval is the poll period.
	Interval time.Duration `yaml:"interval"`

	// MainnetURL and TestnetURL are the benchmark feeds per network.
	MainnetURL string `yaml:"mainnet_url"`
	TestnetURL string `yaml:"testnet_url"`
}

// NotifyConfig selects and configures the messaging sink.
type NotifyConfig struct {
	// Mode is one of: telegram | webhook.
	Mode string `yaml:"mode"`

	// TokenEnv names the environment variable holding the Telegram bot token.
	TokenEnv string `yaml:"token_env"`

	// WebhookURLEnv names the environment variable holding the webhook URL.
	WebhookURLEnv string `yaml:"webhook_url_env"`
}

// Token returns the bot token resolved from the environment.
func (n NotifyConfig) Token() string {
	if n.TokenEnv == "" {
		return ""
	}
	return os.Getenv(n.TokenEnv)
}

// WebhookURL returns the webhook URL resolved from the environment.
func (n NotifyConfig) WebhookURL() string {
	if n.WebhookURLEnv == "" {
		return ""
	}
	return os.Getenv(n.WebhookURLEnv)
}

// StorageConfig configures the SQLite backing store.
type StorageConfig struct {
	// Path is the filesystem path for the SQLite database file.
	Path string `yaml:"path"`

	// HistoryRetention is how long check history rows are kept.
	HistoryRetention time.Duration `yaml:"history_retention"`
}

// SecurityConfig configures encryption-at-rest.
type SecurityConfig struct {
	// MasterKeyEnv names the environment variable holding the base64 master
	// key that seals target locators.
	MasterKeyEnv string `yaml:"master_key_env"`
}

// APIConfig configures the admin HTTP server.
type APIConfig struct {
	// HTTPPort is the port the REST API, WebSocket hub, and /metrics listen on.
	HTTPPort int `yaml:"http_port"`

	// Auth configures admin API authentication.
	Auth APIAuthConfig `yaml:"auth"`
}

// APIAuthConfig configures admin API authentication.
type APIAuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// Header is the HTTP header carrying the key. Defaults to X-API-Key.
	Header string `yaml:"header"`

	// KeyEnv names the environment variable holding the expected key.
	KeyEnv string `yaml:"key_env"`
}

// Key returns the admin API key resolved from the environment.
func (a APIAuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name or the default.
func (a APIAuthConfig) EffectiveHeader() string {
	if a.Header == "" {
		return "X-API-Key"
	}
	return a.Header
}

// Level maps LogLevel to a slog.Level, defaulting to info.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Monitor: MonitorConfig{
			Tick:                DefaultTick,
			MaxConcurrentChecks: DefaultMaxConcurrent,
			MinInterval:         DefaultMinInterval,
			DefaultInterval:     DefaultCheckInterval,
			ConnectionTimeout:   DefaultConnectionTimeout,
			FailureThreshold:    DefaultFailureThreshold,
		},
		Queue: QueueConfig{
			Workers:     DefaultQueueWorkers,
			PerChatRate: DefaultPerChatRate,
			Capacity:    DefaultQueueCapacity,
			MaxAttempts: DefaultMaxAttempts,
		},
		Bench: BenchConfig{
			ThresholdSeconds: DefaultBenchThreshold,
			Interval:         DefaultBenchInterval,
		},
		Notify: NotifyConfig{
			Mode: "telegram",
		},
		Storage: StorageConfig{
			Path:             DefaultStorePath,
			HistoryRetention: DefaultHistoryRetention,
		},
		API: APIConfig{
			HTTPPort: DefaultHTTPPort,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	m := cfg.Monitor
	if m.Tick <= 0 {
		return fmt.Errorf("monitor.tick must be positive")
	}
	if m.MaxConcurrentChecks <= 0 {
		return fmt.Errorf("monitor.max_concurrent_checks must be positive")
	}
	if m.MinInterval <= 0 {
		return fmt.Errorf("monitor.min_interval must be positive")
	}
	if m.DefaultInterval < m.MinInterval {
		return fmt.Errorf("monitor.default_interval must be >= monitor.min_interval")
	}
	if m.ConnectionTimeout <= 0 {
		return fmt.Errorf("monitor.connection_timeout must be positive")
	}
	if m.FailureThreshold <= 0 {
		return fmt.Errorf("monitor.failure_threshold must be positive")
	}

	q := cfg.Queue
	if q.Workers <= 0 {
		return fmt.Errorf("queue.workers must be positive")
	}
	if q.PerChatRate < 0 {
		return fmt.Errorf("queue.per_chat_rate must not be negative")
	}
	if q.Capacity <= 0 {
		return fmt.Errorf("queue.capacity must be positive")
	}
	if q.MaxAttempts <= 0 {
		return fmt.Errorf("queue.max_attempts must be positive")
	}

	if cfg.Bench.Enabled {
		if cfg.Bench.ThresholdSeconds <= 0 {
			return fmt.Errorf("bench.threshold_seconds must be positive")
		}
		if cfg.Bench.Interval <= 0 {
			return fmt.Errorf("bench.interval must be positive")
		}
		if cfg.Bench.MainnetURL == "" && cfg.Bench.TestnetURL == "" {
			return fmt.Errorf("bench: at least one of mainnet_url or testnet_url is required")
		}
	}

	switch cfg.Notify.Mode {
	case "telegram", "":
		if cfg.Notify.TokenEnv == "" {
			return fmt.Errorf("notify.token_env is required in telegram mode")
		}
	case "webhook":
		if cfg.Notify.WebhookURLEnv == "" {
			return fmt.Errorf("notify.webhook_url_env is required in webhook mode")
		}
	default:
		return fmt.Errorf("notify.mode: unknown mode %q", cfg.Notify.Mode)
	}

	if cfg.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	if cfg.Security.MasterKeyEnv == "" {
		return fmt.Errorf("security.master_key_env is required")
	}

	switch cfg.API.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("api.auth.mode: unknown mode %q", cfg.API.Auth.Mode)
	}

	switch cfg.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level: unknown level %q", cfg.LogLevel)
	}

	return nil
}
