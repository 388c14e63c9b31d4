// Package watcher syncs on-disk workspace changes into a terminal-mode
// session. The AI CLI edits real files under the session work directory;
// this watcher reads them back into the repository file store and publishes
// file_changed events, with debouncing to coalesce editor write bursts.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/hirebench/sessiond/internal/domain/events"
	"github.com/hirebench/sessiond/internal/domain/ports"
	"github.com/hirebench/sessiond/internal/session"
)

// maxSyncedFileSize caps how much of a changed file is read back into the
// store. Larger files are skipped rather than truncated.
const maxSyncedFileSize = 512 * 1024

// skipDirs are directory names never watched.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	".venv":        true,
	"__pycache__":  true,
}

// Watcher mirrors one session's workspace directory into its file store.
type Watcher struct {
	root      string
	sessionID string
	files     *session.FileStore
	hub       ports.EventHub
	window    time.Duration

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	pending map[string]*time.Timer
	running bool
	cancel  context.CancelFunc
}

// New creates a workspace watcher for a terminal-mode session.
func New(root, sessionID string, files *session.FileStore, hub ports.EventHub, debounce time.Duration) *Watcher {
	return &Watcher{
		root:      root,
		sessionID: sessionID,
		files:     files,
		hub:       hub,
		window:    debounce,
		pending:   make(map[string]*time.Timer),
	}
}

// Start begins watching. It returns after the initial recursive watch set
// is registered.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.fsw = fsw

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.mu.Unlock()

	if err := w.addRecursive(w.root); err != nil {
		_ = w.Stop()
		return err
	}

	go w.loop(watchCtx)
	log.Debug().Str("root", w.root).Str("session_id", w.sessionID).Msg("workspace watcher started")
	return nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if !d.IsDir() {
			return nil
		}
		if skipDirs[d.Name()] || strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("workspace watcher error")
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	// New directories join the watch set immediately.
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !skipDirs[filepath.Base(ev.Name)] {
				_ = w.fsw.Add(ev.Name)
			}
			return
		}
	}

	w.debounce(ev.Name)
}

// debounce coalesces rapid write bursts per path.
func (w *Watcher) debounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.window, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.sync(path)
	})
}

// sync reads the file back into the store and announces the change.
func (w *Watcher) sync(path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	if info.Size() > maxSyncedFileSize {
		log.Debug().Str("path", path).Int64("size", info.Size()).Msg("skipping oversized file")
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Str("path", path).Err(err).Msg("failed to read changed file")
		return
	}

	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	w.files.RefreshOriginal(rel, string(data))
	w.hub.Publish(events.NewFileChangedEvent(w.sessionID, rel, "write"))
}

// Stop stops watching and cancels pending debounce timers.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}
	w.running = false
	if w.cancel != nil {
		w.cancel()
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}
