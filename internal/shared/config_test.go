package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./tabx.db" {
			t.Errorf("expected database path ./tabx.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Hub.URL != "ws://127.0.0.1:8765/popup" {
			t.Errorf("expected hub url ws://127.0.0.1:8765/popup, got %s", config.Hub.URL)
		}

		if config.Popup.PendingDefault != PendingDefaultRetroactive {
			t.Errorf("expected pending_default %s, got %s", PendingDefaultRetroactive, config.Popup.PendingDefault)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[hub]
url = "ws://localhost:9999/ws"
command_rate = 2.5

[popup]
pending_default = "drop"

[server]
port = 8080
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Hub.URL != "ws://localhost:9999/ws" {
			t.Errorf("expected hub url ws://localhost:9999/ws, got %s", config.Hub.URL)
		}

		if config.Hub.CommandRate != 2.5 {
			t.Errorf("expected command rate 2.5, got %v", config.Hub.CommandRate)
		}

		if config.Hub.CommandBurst != 5 {
			t.Errorf("expected default command burst 5 to survive, got %d", config.Hub.CommandBurst)
		}

		if config.Popup.PendingDefault != PendingDefaultDrop {
			t.Errorf("expected pending_default drop, got %s", config.Popup.PendingDefault)
		}

		if config.Server.Addr() != "127.0.0.1:8080" {
			t.Errorf("expected addr 127.0.0.1:8080, got %s", config.Server.Addr())
		}
	})

	t.Run("LoadConfig rejects unknown pending policy", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[popup]\npending_default = \"later\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfig(configPath)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
