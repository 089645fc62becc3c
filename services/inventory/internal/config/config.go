package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is prepended to every environment variable name.
	EnvPrefix = "INVENTORY_"

	// FileName is the config file looked up next to the executable.
	FileName = "config.toml"

	defaultDBFile = "inventory.db"
)

// Config holds runtime configuration for the inventory server.
type Config struct {
	Bind    string `mapstructure:"bind" env:"BIND, overwrite"`
	DBPath  string `mapstructure:"db_path" env:"DB_PATH, overwrite"`
	TLSCert string `mapstructure:"tls_cert" env:"TLS_CERT, overwrite"`
	TLSKey  string `mapstructure:"tls_key" env:"TLS_KEY, overwrite"`
	Debug   bool   `mapstructure:"debug" env:"DEBUG, overwrite"`

	LogLevel  string `mapstructure:"log_level" env:"LOG_LEVEL, overwrite"`
	LogFormat string `mapstructure:"log_format" env:"LOG_FORMAT, overwrite"`

	MaxBodyBytes         int64         `mapstructure:"max_body_bytes" env:"MAX_BODY_BYTES, overwrite"`
	RatePerSecond        float64       `mapstructure:"rate_per_second" env:"RATE_PER_SECOND, overwrite"`
	RateBurst            int           `mapstructure:"rate_burst" env:"RATE_BURST, overwrite"`
	LimiterIdleTTL       time.Duration `mapstructure:"limiter_idle_ttl" env:"LIMITER_IDLE_TTL, overwrite"`
	LimiterSweepInterval time.Duration `mapstructure:"limiter_sweep_interval" env:"LIMITER_SWEEP_INTERVAL, overwrite"`
	UIRequestsPerMinute  int           `mapstructure:"ui_requests_per_minute" env:"UI_REQUESTS_PER_MINUTE, overwrite"`
	TrustProxyHeaders    bool          `mapstructure:"trust_proxy_headers" env:"TRUST_PROXY_HEADERS, overwrite"`
	CORSAllowedOrigins   []string      `mapstructure:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS, overwrite"`

	RequestTimeout time.Duration `mapstructure:"request_timeout" env:"REQUEST_TIMEOUT, overwrite"`
	ShutdownGrace  time.Duration `mapstructure:"shutdown_grace" env:"SHUTDOWN_GRACE, overwrite"`

	NATSURL      string `mapstructure:"nats_url" env:"NATS_URL, overwrite"`
	NATSSubject  string `mapstructure:"nats_subject" env:"NATS_SUBJECT, overwrite"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint" env:"OTLP_ENDPOINT, overwrite"`
}

// Default returns the built-in settings. exeDir anchors the default database path.
func Default(exeDir string) Config {
	return Config{
		Bind:                 "0.0.0.0:8443",
		DBPath:               filepath.Join(exeDir, defaultDBFile),
		LogLevel:             "info",
		LogFormat:            "json",
		MaxBodyBytes:         64 << 10,
		RatePerSecond:        5,
		RateBurst:            20,
		LimiterIdleTTL:       10 * time.Minute,
		LimiterSweepInterval: time.Minute,
		UIRequestsPerMinute:  120,
		RequestTimeout:       30 * time.Second,
		ShutdownGrace:        10 * time.Second,
		NATSSubject:          "inventory.checkin.recorded",
	}
}

// Options controls where Load looks.
type Options struct {
	// Path of the TOML file. Empty means FileName in ExeDir.
	Path string
	// ExeDir defaults to the directory of the running executable.
	ExeDir string
	// Lookuper defaults to the process environment.
	Lookuper envconfig.Lookuper
}

// Load layers defaults, the TOML file and INVENTORY_* environment variables,
// in that order. A missing config file is created from a commented template.
func Load(ctx context.Context, opts Options) (Config, error) {
	if opts.ExeDir == "" {
		exe, err := os.Executable()
		if err != nil {
			return Config{}, fmt.Errorf("locate executable: %w", err)
		}
		opts.ExeDir = filepath.Dir(exe)
	}
	if opts.Path == "" {
		opts.Path = filepath.Join(opts.ExeDir, FileName)
	}
	if opts.Lookuper == nil {
		opts.Lookuper = envconfig.OsLookuper()
	}

	cfg := Default(opts.ExeDir)

	if err := readFile(opts.Path, &cfg); err != nil {
		return Config{}, err
	}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, opts.Lookuper),
	}); err != nil {
		return Config{}, fmt.Errorf("environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readFile(path string, cfg *Config) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return WriteTemplate(path)
	} else if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

// WriteTemplate writes the commented default config file to path. Failure to
// write is ignored when the directory is read-only.
func WriteTemplate(path string) error {
	if err := os.WriteFile(path, []byte(Template), 0o644); err != nil {
		if errors.Is(err, os.ErrPermission) {
			return nil
		}
		return fmt.Errorf("write config template: %w", err)
	}
	return nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Bind) == "" {
		problems = append(problems, "bind must not be empty")
	}
	if strings.TrimSpace(c.DBPath) == "" {
		problems = append(problems, "db_path must not be empty")
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		problems = append(problems, "tls_cert and tls_key must be set together")
	}
	if c.MaxBodyBytes <= 0 {
		problems = append(problems, "max_body_bytes must be positive")
	}
	if c.RatePerSecond <= 0 {
		problems = append(problems, "rate_per_second must be positive")
	}
	if c.RateBurst < 1 {
		problems = append(problems, "rate_burst must be at least 1")
	}
	if c.LimiterIdleTTL <= 0 || c.LimiterSweepInterval <= 0 {
		problems = append(problems, "limiter durations must be positive")
	}
	if c.UIRequestsPerMinute <= 0 {
		problems = append(problems, "ui_requests_per_minute must be positive")
	}
	if c.RequestTimeout <= 0 || c.ShutdownGrace <= 0 {
		problems = append(problems, "request_timeout and shutdown_grace must be positive")
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		problems = append(problems, fmt.Sprintf("log_format %q must be json or console", c.LogFormat))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// TLSEnabled reports whether both certificate and key are configured.
func (c Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}
