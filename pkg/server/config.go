package server

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/NicolasHaas/gochat/pkg/datastore"
	"github.com/NicolasHaas/gochat/pkg/fanout"
	"github.com/NicolasHaas/gochat/pkg/logging"
	"github.com/NicolasHaas/gochat/pkg/workflow"
)

// Config holds server configuration. Zero durations and sizes fall back to
// the package defaults.
type Config struct {
	TCPAddr     string `yaml:"tcp_addr"`     // control plane bind address (e.g. ":9700")
	WSAddr      string `yaml:"ws_addr"`      // WebSocket bind address (empty = disabled)
	WSPath      string `yaml:"ws_path"`      // WebSocket upgrade path
	MetricsAddr string `yaml:"metrics_addr"` // HTTP bind address for /metrics (empty = disabled)
	DBPath      string `yaml:"db_path"`      // SQLite database path

	// TLS wraps the TCP listener. Cert and key are generated in DataDir when
	// the files are not given.
	TLS      bool   `yaml:"tls"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	DataDir  string `yaml:"data_dir"`

	// RedisAddr enables last-seen bookkeeping in Redis (empty = disabled).
	RedisAddr   string        `yaml:"redis_addr"`
	PresenceTTL time.Duration `yaml:"presence_ttl"`

	FanoutPoolSize int           `yaml:"fanout_pool_size"`
	SendTimeout    time.Duration `yaml:"send_timeout"`
	SeedDelay      time.Duration `yaml:"seed_delay"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`

	Log LogConfig `yaml:"log"`
}

// LogConfig mirrors logging.Options for the config file.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Dependencies holds external dependencies for the server.
// Server assumes ownership of Store and will Close() it on shutdown.
type Dependencies struct {
	Store datastore.DataProviderFactory
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		TCPAddr:        ":9700",
		WSAddr:         ":9701",
		WSPath:         "/ws",
		MetricsAddr:    ":9702",
		DBPath:         "gochat.db",
		DataDir:        ".",
		PresenceTTL:    24 * time.Hour,
		FanoutPoolSize: fanout.DefaultPoolSize,
		SendTimeout:    fanout.DefaultSendTimeout,
		SeedDelay:      workflow.DefaultSeedDelay,
		IdleTimeout:    90 * time.Second,
		Log:            LogConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig reads a YAML config file over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path) //nolint:gosec // path from CLI flag
	if err != nil {
		return cfg, errors.Wrap(err, "server: read config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "server: parse config")
	}
	return cfg, cfg.Validate()
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	if c.TCPAddr == "" && c.WSAddr == "" {
		return errors.New("server: config: no listener configured")
	}
	if c.DBPath == "" {
		return errors.New("server: config: db_path is required")
	}
	if c.WSAddr != "" && (c.WSPath == "" || c.WSPath[0] != '/') {
		return errors.Newf("server: config: ws_path %q must start with /", c.WSPath)
	}
	if c.FanoutPoolSize < 0 {
		return errors.Newf("server: config: fanout_pool_size %d is negative", c.FanoutPoolSize)
	}
	if err := logging.Validate(c.Log.Level); err != nil {
		return errors.Wrap(err, "server: config")
	}
	return nil
}

// LoggingOptions converts the log section for logging.Setup.
func (c Config) LoggingOptions() logging.Options {
	return logging.Options{
		Level:  c.Log.Level,
		Format: c.Log.Format,
		File:   c.Log.File,
	}
}
