package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // timezone names resolve on hosts without zoneinfo

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SALESDASH_BACKEND_URL
const EnvPrefix = "SALESDASH"

// Config holds application configuration
type Config struct {
	// Server settings
	ListenAddr string `mapstructure:"listen_addr"`
	Debug      bool   `mapstructure:"debug"`

	// Backend
	BackendURL     string        `mapstructure:"backend_url"`
	Module         string        `mapstructure:"module"`
	EditorPath     string        `mapstructure:"editor_path"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// Local preference storage
	DataDirectory     string `mapstructure:"data_directory"`
	StoragePassphrase string `mapstructure:"storage_passphrase"`

	// Timezone used to read naive timestamps and resolve filter dates
	Timezone string `mapstructure:"timezone"`

	Logging LoggingConfig `mapstructure:"logging"`
}

// LoggingConfig selects the zerolog level and output format
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}

	return &Config{
		ListenAddr:     ":8080",
		Debug:          false,
		BackendURL:     "http://localhost:5000",
		Module:         "calculator1",
		EditorPath:     "/calculator1",
		RequestTimeout: 30 * time.Second,
		DataDirectory:  filepath.Join(wd, "data"),
		Timezone:       "Local",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// SetDefaults registers DefaultConfig values with v so every key is known to
// viper (and therefore to AutomaticEnv) even without a config file
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("listen_addr", d.ListenAddr)
	v.SetDefault("debug", d.Debug)
	v.SetDefault("backend_url", d.BackendURL)
	v.SetDefault("module", d.Module)
	v.SetDefault("editor_path", d.EditorPath)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("data_directory", d.DataDirectory)
	v.SetDefault("storage_passphrase", "")
	v.SetDefault("timezone", d.Timezone)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// ConfigureEnv enables SALESDASH_ environment overrides, with dots in nested
// keys mapped to underscores (logging.level -> SALESDASH_LOGGING_LEVEL)
func ConfigureEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load builds a Config from v and validates it
func Load(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that cannot be defaulted safely
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BackendURL) == "" {
		return fmt.Errorf("backend_url is required")
	}
	if !strings.HasPrefix(c.BackendURL, "http://") && !strings.HasPrefix(c.BackendURL, "https://") {
		return fmt.Errorf("backend_url must be an http(s) URL: %q", c.BackendURL)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}
	return nil
}

// Location resolves the configured timezone
func (c *Config) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// EnsureDirectories creates the data directory if it doesn't exist
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.DataDirectory, 0755); err != nil {
		return fmt.Errorf("could not create directory %s: %w", c.DataDirectory, err)
	}
	return nil
}

// ExpandPath expands a leading ~ and environment variables
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}
