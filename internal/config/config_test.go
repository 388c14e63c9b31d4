package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}

	if cfg.Server.Port != 8970 {
		t.Errorf("default Port = %d, want 8970", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("default Host = %s, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Backend.BaseURL != "http://127.0.0.1:3000" {
		t.Errorf("default BaseURL = %s", cfg.Backend.BaseURL)
	}
	if cfg.Backend.TimeoutSeconds != 60 {
		t.Errorf("default TimeoutSeconds = %d, want 60", cfg.Backend.TimeoutSeconds)
	}
	if cfg.Session.TimeLowSeconds != 300 {
		t.Errorf("default TimeLowSeconds = %d, want 300", cfg.Session.TimeLowSeconds)
	}
	if cfg.Terminal.Command != "claude" {
		t.Errorf("default Terminal.Command = %s, want claude", cfg.Terminal.Command)
	}
	if !cfg.Journal.Enabled {
		t.Error("default Journal.Enabled should be true")
	}
	if cfg.Journal.Path == "" {
		t.Error("journal path should be derived when journal is enabled")
	}
	if !cfg.Pairing.ShowQRInTerminal {
		t.Error("default Pairing.ShowQRInTerminal should be true")
	}
}

func TestLoad_FromFile(t *testing.T) {
	tempDir := t.TempDir()
	configContent := `
server:
  port: 9100
  host: "0.0.0.0"

backend:
  base_url: "https://platform.example.com"
  timeout_seconds: 30

journal:
  enabled: false

logging:
  level: debug
  format: json
`
	path := filepath.Join(tempDir, "config.yaml")
	if err := os.WriteFile(path, []byte(configContent), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("Port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Backend.BaseURL != "https://platform.example.com" {
		t.Errorf("BaseURL = %s", cfg.Backend.BaseURL)
	}
	if cfg.Journal.Enabled {
		t.Error("Journal.Enabled should be false")
	}
	if cfg.Journal.Path != "" {
		t.Errorf("journal path should stay empty when disabled, got %s", cfg.Journal.Path)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %s, want debug", cfg.Logging.Level)
	}
	// Unset sections keep their defaults.
	if cfg.Terminal.Command != "claude" {
		t.Errorf("Terminal.Command = %s, want claude", cfg.Terminal.Command)
	}
}

func TestValidate(t *testing.T) {
	valid := &Config{
		Server:  ServerConfig{Host: "127.0.0.1", Port: 8970},
		Backend: BackendConfig{BaseURL: "http://127.0.0.1:3000", TimeoutSeconds: 60},
		Session: SessionConfig{TimeLowSeconds: 300},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
	if err := Validate(valid); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port too low", func(c *Config) { c.Server.Port = 0 }},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }},
		{"empty host", func(c *Config) { c.Server.Host = "" }},
		{"empty backend url", func(c *Config) { c.Backend.BaseURL = "" }},
		{"bad backend scheme", func(c *Config) { c.Backend.BaseURL = "ftp://example.com" }},
		{"zero timeout", func(c *Config) { c.Backend.TimeoutSeconds = 0 }},
		{"negative time low", func(c *Config) { c.Session.TimeLowSeconds = -1 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *valid
			tt.mutate(&cfg)
			if err := Validate(&cfg); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestWriteDefault(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "nested", "config.yaml")

	if err := WriteDefault(path); err != nil {
		t.Fatalf("write default: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load written default: %v", err)
	}
	if cfg.Server.Port != 8970 {
		t.Errorf("Port = %d, want 8970", cfg.Server.Port)
	}
}
