package shared

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables that override the config file.
const (
	EnvHubURL         = "TABX_HUB_URL"
	EnvPendingDefault = "TABX_PENDING_DEFAULT"
	EnvLogLevel       = "TABX_LOG_LEVEL"
	EnvDatabasePath   = "TABX_DATABASE_PATH"
	EnvServerPort     = "TABX_SERVER_PORT"
)

// LoadEnvFile loads KEY=value pairs from the given .env files into the process environment.
//
// Missing files are not an error. Variables already set are left alone.
func LoadEnvFile(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// ApplyEnv overrides config values with TABX_* environment variables and revalidates.
func (c *Config) ApplyEnv() error {
	c.Hub.URL = getEnvOrDefault(EnvHubURL, c.Hub.URL)
	c.Popup.PendingDefault = getEnvOrDefault(EnvPendingDefault, c.Popup.PendingDefault)
	c.Popup.LogLevel = getEnvOrDefault(EnvLogLevel, c.Popup.LogLevel)
	c.Database.Path = getEnvOrDefault(EnvDatabasePath, c.Database.Path)
	c.Server.Port = getEnvIntOrDefault(EnvServerPort, c.Server.Port)
	return c.Validate()
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
