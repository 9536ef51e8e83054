package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Pending default policies accepted by [PopupConfig.PendingDefault].
const (
	PendingDefaultRetroactive = "retroactive"
	PendingDefaultDrop        = "drop"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Hub      HubConfig      `toml:"hub"`
	Popup    PopupConfig    `toml:"popup"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
}

// HubConfig contains control plane connection settings.
type HubConfig struct {
	URL          string  `toml:"url"`
	CommandRate  float64 `toml:"command_rate"`
	CommandBurst int     `toml:"command_burst"`
}

// PopupConfig contains aggregation session settings.
type PopupConfig struct {
	PendingDefault string `toml:"pending_default"`
	LogFile        string `toml:"log_file"`
	LogLevel       string `toml:"log_level"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values from [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks enumerated and numeric settings.
func (c *Config) Validate() error {
	switch c.Popup.PendingDefault {
	case PendingDefaultRetroactive, PendingDefaultDrop:
	default:
		return fmt.Errorf("%w: popup.pending_default must be %q or %q, got %q",
			ErrInvalidConfig, PendingDefaultRetroactive, PendingDefaultDrop, c.Popup.PendingDefault)
	}

	if c.Hub.CommandRate < 0 || c.Hub.CommandBurst < 0 {
		return fmt.Errorf("%w: hub command rate and burst must not be negative", ErrInvalidConfig)
	}

	if _, err := ParseLogLevel(c.Popup.LogLevel); err != nil {
		return err
	}

	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
