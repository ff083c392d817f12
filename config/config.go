package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Signer     SignerConfig     `yaml:"signer"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Watcher    WatcherConfig    `yaml:"watcher"`
	Forms      FormsConfig      `yaml:"forms"`
	Log        LogConfig        `yaml:"log"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// LedgerConfig describes the REST gateway of the ledger.
type LedgerConfig struct {
	URL                   string            `yaml:"url"`
	Headers               map[string]string `yaml:"headers"`
	HTTPProxy             string            `yaml:"http_proxy"`
	TimeoutSeconds        int               `yaml:"timeout_seconds"`
	Timeout               time.Duration     `yaml:"-"`
	DirectoryCacheSeconds int               `yaml:"directory_cache_seconds"`
	DirectoryCacheTTL     time.Duration     `yaml:"-"`
}

// SignerConfig locates the ed25519 key used to sign transactions.
// KeyHex takes precedence over KeyFile.
type SignerConfig struct {
	KeyHex  string `yaml:"private_key_hex"`
	KeyFile string `yaml:"private_key_file"`
}

// WatcherConfig controls the batch status poller.
type WatcherConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"`
	// MaxAttempts is how many status queries a batch may go without a
	// final answer before it is marked UNKNOWN. Zero never gives up.
	MaxAttempts int `yaml:"max_attempts"`
}

// FormsConfig controls form sessions.
type FormsConfig struct {
	SessionTTLMinutes int           `yaml:"session_ttl_minutes"`
	SessionTTL        time.Duration `yaml:"-"`
	SubmitTimeoutSecs int           `yaml:"submit_timeout_seconds"`
	SubmitTimeout     time.Duration `yaml:"-"`
	// StrictValidation rejects empty license numbers, non-numeric
	// coordinates and unresolved reporter rows before submitting.
	StrictValidation bool `yaml:"strict_validation"`
}

// LogConfig selects the zap level and encoder.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero values and derives the duration fields.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 20
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}

	if cfg.Ledger.TimeoutSeconds <= 0 {
		cfg.Ledger.TimeoutSeconds = 30
	}
	cfg.Ledger.Timeout = time.Duration(cfg.Ledger.TimeoutSeconds) * time.Second
	if cfg.Ledger.DirectoryCacheSeconds <= 0 {
		cfg.Ledger.DirectoryCacheSeconds = 60
	}
	cfg.Ledger.DirectoryCacheTTL = time.Duration(cfg.Ledger.DirectoryCacheSeconds) * time.Second

	if cfg.Watcher.IntervalSeconds <= 0 {
		cfg.Watcher.IntervalSeconds = 5
	}
	cfg.Watcher.Interval = time.Duration(cfg.Watcher.IntervalSeconds) * time.Second
	if cfg.Watcher.MaxAttempts <= 0 {
		cfg.Watcher.MaxAttempts = 720
	}

	if cfg.Forms.SessionTTLMinutes <= 0 {
		cfg.Forms.SessionTTLMinutes = 30
	}
	cfg.Forms.SessionTTL = time.Duration(cfg.Forms.SessionTTLMinutes) * time.Minute
	if cfg.Forms.SubmitTimeoutSecs <= 0 {
		cfg.Forms.SubmitTimeoutSecs = 60
	}
	cfg.Forms.SubmitTimeout = time.Duration(cfg.Forms.SubmitTimeoutSecs) * time.Second

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}
