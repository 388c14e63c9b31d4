package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/hirebench/sessiond/internal/config"
	"github.com/hirebench/sessiond/internal/store"
)

var journalDBPath string

// journalCmd is the parent command for audit journal inspection.
var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the audit journal",
	Long: `Inspect the local audit journal of past and running sessions.

The journal records integrity-relevant events only: session lifecycle,
pauses and resumes, proctoring flags, budget updates and submissions.

Examples:
  sessiond journal sessions            # List recorded sessions
  sessiond journal show <session-id>   # Show a session's audit trail`,
}

// journalSessionsCmd lists recorded sessions.
var journalSessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List sessions recorded in the journal",
	RunE:  runJournalSessions,
}

// journalShowCmd dumps one session's audit trail.
var journalShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show the audit trail of one session",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalShow,
}

func init() {
	journalCmd.PersistentFlags().StringVar(&journalDBPath, "db", "", "journal database path (default: from config)")
	journalCmd.AddCommand(journalSessionsCmd)
	journalCmd.AddCommand(journalShowCmd)
}

func openJournal() (*store.Journal, error) {
	path := journalDBPath
	if path == "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if !cfg.Journal.Enabled {
			return nil, fmt.Errorf("audit journal is disabled in config")
		}
		path = cfg.Journal.Path
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("journal database not found at %s", path)
	}
	return store.Open(path)
}

// journalLogger renders journal entries with a readable console handler.
func journalLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

func runJournalSessions(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	sessions, err := j.Sessions()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions recorded.")
		return nil
	}
	for _, id := range sessions {
		fmt.Println(id)
	}
	return nil
}

func runJournalShow(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	entries, err := j.BySession(args[0])
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("No entries for this session.")
		return nil
	}

	logger := journalLogger()
	for _, e := range entries {
		logger.Info(e.EventType,
			"time", e.CreatedAt.Format(time.RFC3339),
			"payload", e.Payload,
		)
	}
	return nil
}
