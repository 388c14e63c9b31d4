// Package config handles configuration management for sessiond.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the daemon.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Backend  BackendConfig  `mapstructure:"backend" yaml:"backend"`
	Session  SessionConfig  `mapstructure:"session" yaml:"session"`
	Terminal TerminalConfig `mapstructure:"terminal" yaml:"terminal"`
	Journal  JournalConfig  `mapstructure:"journal" yaml:"journal"`
	Pairing  PairingConfig  `mapstructure:"pairing" yaml:"pairing"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig holds the HTTP/WebSocket server configuration.
type ServerConfig struct {
	Host        string `mapstructure:"host" yaml:"host"`
	Port        int    `mapstructure:"port" yaml:"port"`
	ExternalURL string `mapstructure:"external_url" yaml:"external_url"` // Optional: public URL for tunnels
}

// BackendConfig holds the assessment platform API configuration.
type BackendConfig struct {
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// SessionConfig holds session runtime defaults.
type SessionConfig struct {
	TimeLowSeconds int `mapstructure:"time_low_seconds" yaml:"time_low_seconds"`
}

// TerminalConfig holds terminal-mode configuration.
type TerminalConfig struct {
	Command   string   `mapstructure:"command" yaml:"command"`
	Args      []string `mapstructure:"args" yaml:"args"`
	WorkDir   string   `mapstructure:"work_dir" yaml:"work_dir"`
	WatchDirs bool     `mapstructure:"watch_dirs" yaml:"watch_dirs"`
}

// JournalConfig holds the audit journal configuration.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// PairingConfig holds join-link/QR configuration.
type PairingConfig struct {
	ShowQRInTerminal bool `mapstructure:"show_qr_in_terminal" yaml:"show_qr_in_terminal"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Load loads configuration from files and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.sessiond")
		v.AddConfigPath("/etc/sessiond")
	}

	v.SetEnvPrefix("SESSIOND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := postProcess(&cfg); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8970)

	v.SetDefault("backend.base_url", "http://127.0.0.1:3000")
	v.SetDefault("backend.timeout_seconds", 60)

	v.SetDefault("session.time_low_seconds", 300)

	v.SetDefault("terminal.command", "claude")
	v.SetDefault("terminal.args", []string{})
	v.SetDefault("terminal.work_dir", "")
	v.SetDefault("terminal.watch_dirs", true)

	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", "")

	v.SetDefault("pairing.show_qr_in_terminal", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// postProcess applies post-processing to configuration.
func postProcess(cfg *Config) error {
	if cfg.Journal.Enabled && cfg.Journal.Path == "" {
		dir, err := EnsureConfigDir()
		if err != nil {
			return fmt.Errorf("failed to resolve journal path: %w", err)
		}
		cfg.Journal.Path = filepath.Join(dir, "journal.db")
	}

	if cfg.Terminal.WorkDir != "" {
		abs, err := filepath.Abs(cfg.Terminal.WorkDir)
		if err != nil {
			return fmt.Errorf("failed to resolve terminal work dir: %w", err)
		}
		cfg.Terminal.WorkDir = abs
	}

	return nil
}

// GetConfigDir returns the user config directory for sessiond.
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".sessiond"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// WriteDefault writes a commented default config file to the given path.
func WriteDefault(path string) error {
	cfg := Config{
		Server:   ServerConfig{Host: "127.0.0.1", Port: 8970},
		Backend:  BackendConfig{BaseURL: "http://127.0.0.1:3000", TimeoutSeconds: 60},
		Session:  SessionConfig{TimeLowSeconds: 300},
		Terminal: TerminalConfig{Command: "claude", WatchDirs: true},
		Journal:  JournalConfig{Enabled: true},
		Pairing:  PairingConfig{ShowQRInTerminal: true},
		Logging:  LoggingConfig{Level: "info", Format: "console"},
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
