package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate validates the configuration.
func Validate(cfg *Config) error {
	if err := validateServer(&cfg.Server); err != nil {
		return err
	}

	if err := validateBackend(&cfg.Backend); err != nil {
		return err
	}

	if err := validateSession(&cfg.Session); err != nil {
		return err
	}

	if err := validateLogging(&cfg.Logging); err != nil {
		return err
	}

	return nil
}

func validateServer(cfg *ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.Host == "" {
		return fmt.Errorf("server.host cannot be empty")
	}
	if cfg.ExternalURL != "" {
		if err := validateURL(cfg.ExternalURL, "server.external_url"); err != nil {
			return err
		}
	}
	return nil
}

func validateBackend(cfg *BackendConfig) error {
	if cfg.BaseURL == "" {
		return fmt.Errorf("backend.base_url cannot be empty")
	}
	if err := validateURL(cfg.BaseURL, "backend.base_url"); err != nil {
		return err
	}
	if cfg.TimeoutSeconds < 1 {
		return fmt.Errorf("backend.timeout_seconds must be positive, got %d", cfg.TimeoutSeconds)
	}
	return nil
}

func validateSession(cfg *SessionConfig) error {
	if cfg.TimeLowSeconds < 0 {
		return fmt.Errorf("session.time_low_seconds cannot be negative, got %d", cfg.TimeLowSeconds)
	}
	return nil
}

func validateLogging(cfg *LoggingConfig) error {
	switch strings.ToLower(cfg.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "":
	default:
		return fmt.Errorf("logging.level must be one of trace, debug, info, warn, error, fatal, panic; got %q", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "console", "json", "":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", cfg.Format)
	}
	return nil
}

func validateURL(raw, field string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", field, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s is missing a host", field)
	}
	return nil
}
