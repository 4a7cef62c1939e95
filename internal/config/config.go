package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/esimctl/internal/esim"
)

// Environment variables that override the config file.
const (
	EnvHost        = "ESIMCTL_HOST"
	EnvLogLevel    = "ESIMCTL_LOG_LEVEL"
	EnvMetricsAddr = "ESIMCTL_METRICS_ADDR"
)

// DefaultHost is used when neither the file nor the environment names one.
// It is a development fixture relative to the repository root; installed
// binaries should always be given a host.
const DefaultHost = "sim:testdata/hosts/dual-esim.yml"

// Config holds settings loaded from esimctl.yml.
type Config struct {
	// Host is "sim:<fixture.yml>" or the http(s) URL of a JSON-RPC host.
	Host            string        `yaml:"host,omitempty"`
	Verification    Verification  `yaml:"verification,omitempty"`
	CallbackTimeout time.Duration `yaml:"callback_timeout,omitempty"`
	LogLevel        string        `yaml:"log_level,omitempty"`
	LogFormat       string        `yaml:"log_format,omitempty"`
	MetricsAddr     string        `yaml:"metrics_addr,omitempty"`
	RPCRateLimit    float64       `yaml:"rpc_rate_limit,omitempty"`
	RPCRateBurst    int           `yaml:"rpc_rate_burst,omitempty"`
}

// Verification holds the settle delays before activation read-back. Zero
// values keep the engine defaults.
type Verification struct {
	PreferredData time.Duration `yaml:"preferred_data,omitempty"`
	Switch        time.Duration `yaml:"switch,omitempty"`
	Legacy        time.Duration `yaml:"legacy,omitempty"`
	Enable        time.Duration `yaml:"enable,omitempty"`
}

// Load attempts to read esimctl.yml or esimctl.yaml from the given
// directory. Returns a zero-value config (not an error) if no config file
// exists.
func Load(dir string) (*Config, error) {
	for _, name := range []string{"esimctl.yml", "esimctl.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var cfg Config
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
		return &cfg, nil
	}
	return &Config{}, nil
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from the environment, read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvHost); v != "" {
		c.Host = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := getenv(EnvMetricsAddr); v != "" {
		c.MetricsAddr = v
	}
}

// Validate reports settings that cannot be used.
func (c *Config) Validate() error {
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log_format %q (want text or json)", c.LogFormat)
	}
	if c.RPCRateLimit < 0 {
		return fmt.Errorf("rpc_rate_limit must not be negative")
	}
	if c.CallbackTimeout < 0 {
		return fmt.Errorf("callback_timeout must not be negative")
	}
	return nil
}

// HostSpec returns the configured host or DefaultHost.
func (c *Config) HostSpec() string {
	if c.Host == "" {
		return DefaultHost
	}
	return c.Host
}

// EngineOptions translates the verification settings for the engines.
func (c *Config) EngineOptions() []esim.Option {
	return []esim.Option{
		esim.WithDelays(esim.Delays{
			PreferredData: c.Verification.PreferredData,
			Switch:        c.Verification.Switch,
			Legacy:        c.Verification.Legacy,
			Enable:        c.Verification.Enable,
		}),
		esim.WithCallbackTimeout(c.CallbackTimeout),
	}
}

// NewLogger builds the root logger writing to w.
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelWarn, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log_level %q", s)
	}
	return level, nil
}
