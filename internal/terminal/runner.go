//go:build !windows

// Package terminal runs the AI assistant CLI for terminal-mode sessions.
// The process lives under a PTY; its output feeds the session's terminal
// bridge and its input comes from the bridge's keystroke channel, so the
// candidate's browser terminal and the assessment runtime see one ordered
// stream.
package terminal

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"github.com/rs/zerolog/log"

	"github.com/hirebench/sessiond/internal/session"
)

// Runner manages one PTY-backed AI CLI process.
type Runner struct {
	workDir string
	command string
	args    []string
	bridge  *session.TerminalBridge

	mu      sync.Mutex
	ptmx    *os.File
	cmd     *exec.Cmd
	running bool
}

// NewRunner creates a runner feeding the given bridge.
func NewRunner(workDir, command string, args []string, bridge *session.TerminalBridge) *Runner {
	return &Runner{
		workDir: workDir,
		command: command,
		args:    args,
		bridge:  bridge,
	}
}

// Run starts the process and blocks until it exits or the context is
// cancelled. The bridge receives an exit event exactly once either way.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("terminal runner already running")
	}
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	cmd := exec.CommandContext(ctx, r.command, r.args...)
	cmd.Dir = r.workDir
	cmd.Env = os.Environ()

	ptmx, err := pty.Start(cmd)
	if err != nil {
		r.bridge.Append(session.TerminalEvent{
			Type:    session.TerminalError,
			Message: fmt.Sprintf("failed to start terminal: %v", err),
		})
		r.bridge.Append(session.TerminalEvent{Type: session.TerminalExit})
		return fmt.Errorf("failed to start pty: %w", err)
	}

	r.mu.Lock()
	r.ptmx = ptmx
	r.cmd = cmd
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		_ = r.ptmx.Close()
		r.ptmx = nil
		r.mu.Unlock()
	}()

	r.bridge.SetDisconnected(false)
	done := make(chan struct{})

	// PTY output -> bridge log.
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := ptmx.Read(buf)
			if n > 0 {
				r.bridge.Append(session.TerminalEvent{
					Type: session.TerminalOutput,
					Data: string(buf[:n]),
				})
			}
			if err != nil {
				if err != io.EOF {
					log.Debug().Err(err).Msg("pty read error")
				}
				break
			}
		}
		close(done)
	}()

	// Bridge input/resize -> PTY.
	go func() {
		for {
			select {
			case data := <-r.bridge.Input():
				r.mu.Lock()
				if r.ptmx != nil {
					_, _ = r.ptmx.Write(data)
				}
				r.mu.Unlock()

			case ws := <-r.bridge.Resize():
				r.mu.Lock()
				if r.ptmx != nil {
					if err := pty.Setsize(r.ptmx, &pty.Winsize{Rows: ws.Rows, Cols: ws.Cols}); err != nil {
						log.Debug().Err(err).Msg("failed to set pty size")
					}
				}
				r.mu.Unlock()

			case <-done:
				return
			}
		}
	}()

	var runErr error
	select {
	case <-done:
		runErr = cmd.Wait()
	case <-ctx.Done():
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-done
		runErr = ctx.Err()
	}

	r.bridge.SetDisconnected(true)
	if runErr != nil && ctx.Err() == nil {
		r.bridge.Append(session.TerminalEvent{
			Type:    session.TerminalError,
			Message: runErr.Error(),
		})
	}
	r.bridge.Append(session.TerminalEvent{Type: session.TerminalExit})
	return runErr
}

// Stop sends SIGTERM to the process if running.
func (r *Runner) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running || r.cmd == nil || r.cmd.Process == nil {
		return nil
	}
	return r.cmd.Process.Signal(syscall.SIGTERM)
}

// IsRunning returns whether the process is currently running.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
