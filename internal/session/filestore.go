package session

import (
	"sort"
	"strings"
	"sync"

	"github.com/hirebench/sessiond/internal/backend"
	"github.com/hirebench/sessiond/internal/domain"
)

// starterFileFallback names the single editable file when the task ships no
// repository structure.
const starterFileFallback = "main.py"

type repoFile struct {
	path     string
	original string
	edited   *string
}

// FileStore is the in-memory, per-file edit buffer over the read-only
// repository snapshot delivered at session start. The active file's buffer
// mirrors the live editor; switching files snapshots the outgoing buffer so
// no edit is ever lost.
type FileStore struct {
	mu     sync.RWMutex
	files  map[string]*repoFile
	order  []string
	active string
	buffer string
}

// NewFileStore builds the store from the task's repository snapshot. When
// the task has no repo structure, a single file holding the starter code is
// synthesized.
func NewFileStore(task backend.TaskInfo) *FileStore {
	fs := &FileStore{
		files: make(map[string]*repoFile),
	}

	if len(task.RepoStructure) == 0 {
		path := task.StarterFilePath
		if path == "" {
			path = starterFileFallback
		}
		fs.files[path] = &repoFile{path: path, original: task.StarterCode}
		fs.order = []string{path}
		fs.active = path
		fs.buffer = task.StarterCode
		return fs
	}

	for _, f := range task.RepoStructure {
		if _, ok := fs.files[f.Path]; ok {
			continue
		}
		fs.files[f.Path] = &repoFile{path: f.Path, original: f.Content}
		fs.order = append(fs.order, f.Path)
	}

	active := task.StarterFilePath
	if _, ok := fs.files[active]; !ok {
		active = fs.order[0]
	}
	fs.active = active
	fs.buffer = fs.files[active].original
	return fs
}

// SelectFile makes path the active file. Selecting the already-active path
// is a no-op. Otherwise the outgoing file's live buffer is snapshotted into
// its edit slot, and the incoming file's buffer is loaded from its edits if
// present, else from its original content.
func (fs *FileStore) SelectFile(path string) (string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if path == fs.active {
		return fs.buffer, nil
	}

	incoming, ok := fs.files[path]
	if !ok {
		return "", domain.ErrFileNotFound
	}

	if outgoing, ok := fs.files[fs.active]; ok {
		snapshot := fs.buffer
		outgoing.edited = &snapshot
	}

	fs.active = path
	if incoming.edited != nil {
		fs.buffer = *incoming.edited
	} else {
		fs.buffer = incoming.original
	}
	return fs.buffer, nil
}

// UpdateActiveBuffer mirrors the live editor content for the active file.
func (fs *FileStore) UpdateActiveBuffer(content string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.buffer = content
}

// ActiveBuffer returns the live buffer of the active file. This is what the
// submission path sends as final code and what AI telemetry attaches.
func (fs *FileStore) ActiveBuffer() string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.buffer
}

// ActivePath returns the path of the active file.
func (fs *FileStore) ActivePath() string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.active
}

// Content returns the current content of any file: its live buffer when
// active, its edits when present, else its original.
func (fs *FileStore) Content(path string) (string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	f, ok := fs.files[path]
	if !ok {
		return "", domain.ErrFileNotFound
	}
	if path == fs.active {
		return fs.buffer, nil
	}
	if f.edited != nil {
		return *f.edited, nil
	}
	return f.original, nil
}

// RefreshOriginal replaces a file's original content, creating the file if
// it does not exist yet. The terminal-mode workspace watcher uses this to
// sync on-disk edits made by the AI CLI. Unsaved candidate edits are left
// untouched.
func (fs *FileStore) RefreshOriginal(path, content string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if f, ok := fs.files[path]; ok {
		prev := f.original
		f.original = content
		// An unedited active buffer still mirrors the previous original;
		// follow the disk. Candidate edits win otherwise.
		if path == fs.active && f.edited == nil && fs.buffer == prev {
			fs.buffer = content
		}
		return
	}
	fs.files[path] = &repoFile{path: path, original: content}
	fs.order = append(fs.order, path)
}

// TreeGroup is one directory's worth of files in the tree listing.
type TreeGroup struct {
	Dir   string   `json:"dir"` // empty for the root group
	Files []string `json:"files"`
}

// ListTree groups files by directory prefix. Files with no "/" belong to
// the root group, which sorts first; groups and files within each group are
// ordered lexicographically. Collapse/expand of groups is pure UI state and
// not tracked here.
func (fs *FileStore) ListTree() []TreeGroup {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	byDir := make(map[string][]string)
	for path := range fs.files {
		dir := ""
		if i := strings.LastIndex(path, "/"); i >= 0 {
			dir = path[:i]
		}
		byDir[dir] = append(byDir[dir], path)
	}

	dirs := make([]string, 0, len(byDir))
	for dir := range byDir {
		dirs = append(dirs, dir)
	}
	sort.Slice(dirs, func(i, j int) bool {
		// Root group first, then lexicographic.
		if dirs[i] == "" {
			return true
		}
		if dirs[j] == "" {
			return false
		}
		return dirs[i] < dirs[j]
	})

	groups := make([]TreeGroup, 0, len(dirs))
	for _, dir := range dirs {
		files := byDir[dir]
		sort.Strings(files)
		groups = append(groups, TreeGroup{Dir: dir, Files: files})
	}
	return groups
}
