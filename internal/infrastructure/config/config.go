package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Storage   StorageConfig   `yaml:"storage" toml:"storage"`
	Runtime   RuntimeConfig   `yaml:"runtime" toml:"runtime"`
	Fetch     FetchConfig     `yaml:"fetch" toml:"fetch"`
	Logging   LogConfig       `yaml:"logging" toml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000" yaml:"port" toml:"port"`
	Host string `envconfig:"HOST" default:"0.0.0.0" yaml:"host" toml:"host"`
}

// StorageConfig holds module storage configuration.
type StorageConfig struct {
	Dir      string `envconfig:"STORAGE_DIR" default:"./data/modules" yaml:"dir" toml:"dir"`
	SeedFile string `envconfig:"SEED_FILE" yaml:"seed_file" toml:"seed_file"`
}

// RuntimeConfig holds script execution configuration.
type RuntimeConfig struct {
	LoadTimeout Duration `envconfig:"LOAD_TIMEOUT" default:"10s" yaml:"load_timeout" toml:"load_timeout"`
	CallTimeout Duration `envconfig:"CALL_TIMEOUT" default:"30s" yaml:"call_timeout" toml:"call_timeout"`
	BundlePath  string   `envconfig:"BUNDLE_PATH" yaml:"bundle_path" toml:"bundle_path"`
}

// FetchConfig holds outbound HTTP configuration.
type FetchConfig struct {
	Timeout   Duration `envconfig:"FETCH_TIMEOUT" default:"30s" yaml:"timeout" toml:"timeout"`
	Retries   int      `envconfig:"FETCH_RETRIES" default:"2" yaml:"retries" toml:"retries"`
	RPS       float64  `envconfig:"FETCH_RPS" default:"0" yaml:"rps" toml:"rps"`
	UserAgent string   `envconfig:"FETCH_USER_AGENT" default:"Mozilla/5.0 (compatible; modhost/1.0)" yaml:"user_agent" toml:"user_agent"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development" toml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" yaml:"rps" toml:"rps"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" yaml:"burst" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled" toml:"enabled"`
}

// Duration is a time.Duration that decodes from "5s"-style text in env,
// YAML and TOML alike.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// LoadFile decodes a YAML or TOML file on top of Default().
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}
	return cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Storage: StorageConfig{
			Dir: "./data/modules",
		},
		Runtime: RuntimeConfig{
			LoadTimeout: Duration(10 * time.Second),
			CallTimeout: Duration(30 * time.Second),
		},
		Fetch: FetchConfig{
			Timeout:   Duration(30 * time.Second),
			Retries:   2,
			UserAgent: "Mozilla/5.0 (compatible; modhost/1.0)",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
