// Package config loads the filecrate configuration from a TOML file and
// resolves the effective settings through the override chain
// defaults -> config file -> environment variables -> CLI flags.
package config

import (
	"fmt"
	"net/url"
	"slices"
)

// Default values for configuration options. These represent the "layer 0"
// of the override chain and work for most users without any config file.
const (
	defaultServerURL = "http://localhost:8002"
	defaultLogLevel  = "info"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Config mirrors the TOML config file.
type Config struct {
	// ServerURL is the base URL of the storage service.
	ServerURL string `toml:"server_url" json:"server_url"`

	// ScopedPaths selects the per-user path scoping deployment variant:
	// when true, the server stores files under a "user_{id}/" prefix and
	// every wire operation must use the full prefixed path.
	ScopedPaths bool `toml:"scoped_paths" json:"scoped_paths"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level" json:"log_level"`

	// DataDir overrides the platform data directory (token, listing cache).
	DataDir string `toml:"data_dir" json:"data_dir"`
}

// DefaultConfig returns a Config populated with all default values.
// Used both as the starting point for TOML decoding (so unset fields retain
// defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		ServerURL: defaultServerURL,
		LogLevel:  defaultLogLevel,
	}
}

// Validate checks the config for values that would misbehave at runtime.
func Validate(cfg *Config) error {
	u, err := url.Parse(cfg.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server_url %q is not an absolute URL", cfg.ServerURL)
	}

	if !slices.Contains(validLogLevels, cfg.LogLevel) {
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error", cfg.LogLevel)
	}

	return nil
}
