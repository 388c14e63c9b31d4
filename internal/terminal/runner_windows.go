//go:build windows

// Package terminal runs the AI assistant CLI for terminal-mode sessions.
// Terminal mode is not currently supported on Windows.
package terminal

import (
	"context"
	"fmt"

	"github.com/hirebench/sessiond/internal/session"
)

// Runner manages one PTY-backed AI CLI process.
// This is a stub for Windows which does not support PTY.
type Runner struct {
	workDir string
	command string
	args    []string
	bridge  *session.TerminalBridge
}

// NewRunner creates a new terminal runner.
func NewRunner(workDir, command string, args []string, bridge *session.TerminalBridge) *Runner {
	return &Runner{
		workDir: workDir,
		command: command,
		args:    args,
		bridge:  bridge,
	}
}

// Run starts the AI CLI. Not supported on Windows.
func (r *Runner) Run(ctx context.Context) error {
	return fmt.Errorf("terminal mode is not supported on Windows")
}

// Stop terminates the process. Not supported on Windows.
func (r *Runner) Stop() error {
	return nil
}

// IsRunning returns whether the process is running.
func (r *Runner) IsRunning() bool {
	return false
}
