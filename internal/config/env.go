package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig    = "FILECRATE_CONFIG"
	EnvServerURL = "FILECRATE_SERVER_URL"
	EnvDataDir   = "FILECRATE_DATA_DIR"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // FILECRATE_CONFIG: override config file path
	ServerURL  string // FILECRATE_SERVER_URL: override service base URL
	DataDir    string // FILECRATE_DATA_DIR: override data directory
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. This does not modify the Config; Resolve applies the fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		ServerURL:  os.Getenv(EnvServerURL),
		DataDir:    os.Getenv(EnvDataDir),
	}
}
