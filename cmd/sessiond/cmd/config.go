package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hirebench/sessiond/internal/config"
)

var (
	configInitLocal bool
	configInitForce bool
)

// configCmd displays or manages configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Display and manage configuration",
	Long: `Display and manage sessiond configuration.

Without subcommands, shows the current effective configuration.

Examples:
  sessiond config              # Show current config
  sessiond config init         # Create config file with defaults
  sessiond config path         # Show config file location`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		printConfig(cfg)
	},
}

// configInitCmd creates a config file with defaults.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file with default settings",
	Long: `Create a config file with default settings.

By default, creates ~/.sessiond/config.yaml.
Use --local to create ./config.yaml in the current directory.

Examples:
  sessiond config init          # Create ~/.sessiond/config.yaml
  sessiond config init --local  # Create ./config.yaml
  sessiond config init --force  # Overwrite existing file`,
	RunE: runConfigInit,
}

// configPathCmd shows config file location.
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file location",
	Run:   runConfigPath,
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitLocal, "local", false, "create ./config.yaml instead of ~/.sessiond/config.yaml")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	var path string
	if configInitLocal {
		path = "config.yaml"
	} else {
		dir, err := config.EnsureConfigDir()
		if err != nil {
			return fmt.Errorf("failed to resolve config directory: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}

	if _, err := os.Stat(path); err == nil && !configInitForce {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	if err := config.WriteDefault(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Created config file: %s\n", path)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) {
	dir, err := config.GetConfigDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	path := filepath.Join(dir, "config.yaml")

	fmt.Printf("Config file: %s\n", path)
	if _, err := os.Stat(path); err == nil {
		fmt.Println("Status:      exists")
	} else {
		fmt.Println("Status:      not created (run 'sessiond config init')")
	}
}

func printConfig(cfg *config.Config) {
	fmt.Println("Current Configuration:")
	fmt.Println("----------------------")
	fmt.Printf("Host:             %s\n", cfg.Server.Host)
	fmt.Printf("Port:             %d\n", cfg.Server.Port)
	fmt.Printf("Backend URL:      %s\n", cfg.Backend.BaseURL)
	fmt.Printf("Journal Enabled:  %t\n", cfg.Journal.Enabled)
	fmt.Printf("Journal Path:     %s\n", cfg.Journal.Path)
	fmt.Printf("Terminal Command: %s\n", cfg.Terminal.Command)
	fmt.Printf("Log Level:        %s\n", cfg.Logging.Level)
	fmt.Printf("Log Format:       %s\n", cfg.Logging.Format)
}
