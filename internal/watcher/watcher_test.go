package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hirebench/sessiond/internal/backend"
	"github.com/hirebench/sessiond/internal/domain/events"
	"github.com/hirebench/sessiond/internal/session"
	"github.com/hirebench/sessiond/internal/testutil"
)

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func newWatcherFixture(t *testing.T) (string, *Watcher, *session.FileStore, *testutil.MockEventHub) {
	t.Helper()
	root := t.TempDir()
	files := session.NewFileStore(backend.TaskInfo{
		StarterCode:     "print('hi')",
		StarterFilePath: "main.py",
	})
	hub := testutil.NewMockEventHub()
	w := New(root, "s1", files, hub, 20*time.Millisecond)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start watcher: %v", err)
	}
	t.Cleanup(func() { _ = w.Stop() })
	return root, w, files, hub
}

func TestWatcher_SyncsChangedFile(t *testing.T) {
	root, _, files, hub := newWatcherFixture(t)

	path := filepath.Join(root, "helper.py")
	if err := os.WriteFile(path, []byte("print('edited on disk')"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	waitFor(t, func() bool {
		content, err := files.Content("helper.py")
		return err == nil && content == "print('edited on disk')"
	}, "file store refresh")

	waitFor(t, func() bool {
		return len(hub.EventsOfType(events.EventTypeFileChanged)) >= 1
	}, "file_changed event")
}

func TestWatcher_DebounceCoalescesBursts(t *testing.T) {
	root, _, files, _ := newWatcherFixture(t)

	path := filepath.Join(root, "notes.md")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("rev"), 0644); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := os.WriteFile(path, []byte("final"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	// Only the settled content matters.
	waitFor(t, func() bool {
		content, err := files.Content("notes.md")
		return err == nil && content == "final"
	}, "settled content")
}

func TestWatcher_NestedDirectoriesArePickedUp(t *testing.T) {
	root, _, files, _ := newWatcherFixture(t)

	dir := filepath.Join(root, "lib")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	// The create event registers the new directory; give the watch set a
	// moment before writing into it.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "util.py"), []byte("def f(): pass"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	waitFor(t, func() bool {
		content, err := files.Content("lib/util.py")
		return err == nil && content == "def f(): pass"
	}, "nested file sync")
}

func TestWatcher_SkipsIgnoredDirectories(t *testing.T) {
	root, _, files, _ := newWatcherFixture(t)

	dir := filepath.Join(root, ".git")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "HEAD"), []byte("ref: refs/heads/main"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	time.Sleep(150 * time.Millisecond)
	if _, err := files.Content(".git/HEAD"); err == nil {
		t.Error("files under .git must not be synced")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	_, w, _, _ := newWatcherFixture(t)

	if err := w.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("double stop: %v", err)
	}
}
