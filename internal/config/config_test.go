package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "http://localhost:8002", cfg.ServerURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.ScopedPaths)
	require.NoError(t, Validate(cfg))
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server_url = "https://files.example.com"
scoped_paths = true
log_level = "debug"
data_dir = "/tmp/fc"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com", cfg.ServerURL)
	assert.True(t, cfg.ScopedPaths)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/fc", cfg.DataDir)
}

func TestLoad_UnsetFieldsKeepDefaults(t *testing.T) {
	path := writeConfig(t, `scoped_paths = true`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8002", cfg.ServerURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.ScopedPaths)
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeConfig(t, `server_url = [broken`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"relative url", func(c *Config) { c.ServerURL = "localhost:8002" }, "absolute URL"},
		{"empty url", func(c *Config) { c.ServerURL = "" }, "absolute URL"},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolve_OverrideChain(t *testing.T) {
	path := writeConfig(t, `server_url = "https://from-file.example.com"`)

	// File layer wins over defaults.
	cfg, err := Resolve(EnvOverrides{ConfigPath: path}, CLIOverrides{})
	require.NoError(t, err)
	assert.Equal(t, "https://from-file.example.com", cfg.ServerURL)

	// Env layer wins over file.
	cfg, err = Resolve(EnvOverrides{ConfigPath: path, ServerURL: "https://from-env.example.com"}, CLIOverrides{})
	require.NoError(t, err)
	assert.Equal(t, "https://from-env.example.com", cfg.ServerURL)

	// CLI layer wins over env.
	cfg, err = Resolve(
		EnvOverrides{ConfigPath: path, ServerURL: "https://from-env.example.com"},
		CLIOverrides{ServerURL: "https://from-cli.example.com"},
	)
	require.NoError(t, err)
	assert.Equal(t, "https://from-cli.example.com", cfg.ServerURL)
}

func TestResolve_CLIConfigPathWinsOverEnv(t *testing.T) {
	envPath := writeConfig(t, `server_url = "https://env.example.com"`)
	cliPath := writeConfig(t, `server_url = "https://cli.example.com"`)

	cfg, err := Resolve(EnvOverrides{ConfigPath: envPath}, CLIOverrides{ConfigPath: cliPath})
	require.NoError(t, err)
	assert.Equal(t, "https://cli.example.com", cfg.ServerURL)
}

func TestResolve_CLIDataDirWinsOverEnv(t *testing.T) {
	path := writeConfig(t, ``)

	cfg, err := Resolve(
		EnvOverrides{ConfigPath: path, DataDir: "/tmp/from-env"},
		CLIOverrides{DataDir: "/tmp/from-cli"},
	)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-cli", cfg.DataDir)
}

func TestResolve_DataDirDefaulted(t *testing.T) {
	path := writeConfig(t, ``)

	cfg, err := Resolve(EnvOverrides{ConfigPath: path}, CLIOverrides{})
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.DataDir)
}

func TestReadEnvOverrides(t *testing.T) {
	t.Setenv(EnvServerURL, "https://env.example.com")
	t.Setenv(EnvDataDir, "/tmp/data")

	env := ReadEnvOverrides()
	assert.Equal(t, "https://env.example.com", env.ServerURL)
	assert.Equal(t, "/tmp/data", env.DataDir)
}
