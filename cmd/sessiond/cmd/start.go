package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hirebench/sessiond/internal/app"
	"github.com/hirebench/sessiond/internal/config"
)

var (
	port        int
	externalURL string
	workDir     string
)

// startCmd represents the start command.
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the session daemon",
	Long: `Start the session daemon and begin accepting candidate connections.

Sessions are created through the HTTP API (POST /sessions with a candidate
token); browser clients then attach to /ws/{session-id} for the live event
stream.

Example:
  sessiond start
  sessiond start --port 8970
  sessiond start --external-url https://tunnel.example.com`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().IntVar(&port, "port", 0, "server port for HTTP and WebSocket (default: 8970)")
	startCmd.Flags().StringVar(&externalURL, "external-url", "", "external URL for tunnels, used in join links")
	startCmd.Flags().StringVar(&workDir, "work-dir", "", "working directory for terminal-mode sessions")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Flags override the config file
	if port != 0 {
		cfg.Server.Port = port
	}
	if externalURL != "" {
		cfg.Server.ExternalURL = externalURL
	}
	if workDir != "" {
		cfg.Terminal.WorkDir = workDir
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogging(cfg)

	log.Info().
		Str("version", version).
		Int("port", cfg.Server.Port).
		Str("backend", cfg.Backend.BaseURL).
		Msg("starting sessiond")

	application, err := app.New(cfg, version)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("application error: %w", err)
	}

	log.Info().Msg("sessiond stopped")
	return nil
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Logging.Format == "console" || verbose {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}
