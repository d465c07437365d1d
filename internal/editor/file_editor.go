package editor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bassista/notesync/internal/logger"
	"github.com/bassista/notesync/internal/notes"
	"github.com/fsnotify/fsnotify"
)

// Binder is implemented by editors that keep per-document state and must be
// pointed at a document before its content is loaded.
type Binder interface {
	Bind(path string) error
}

var ErrNotBound = errors.New("editor is not bound to a document")

// FileEditor exposes a working copy of the active document as a plain file
// under root, so any text editor can be used. External writes to the file are
// picked up by a watcher and reported as user edits.
type FileEditor struct {
	root string

	mu       sync.Mutex
	file     string
	content  string
	history  history
	onChange func()
	watched  string
	watcher  *fsnotify.Watcher
}

func NewFileEditor(root string) (*FileEditor, error) {
	if root == "" {
		return nil, errors.New("editor directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create editor dir: %w", err)
	}
	return &FileEditor{root: root}, nil
}

// OnChange registers the callback run after every external edit.
func (f *FileEditor) OnChange(fn func()) {
	f.mu.Lock()
	f.onChange = fn
	f.mu.Unlock()
}

// File returns the working file of the bound document.
func (f *FileEditor) File() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.file
}

// Bind points the editor at the working file for path.
func (f *FileEditor) Bind(path string) error {
	clean, err := notes.CleanPath(path)
	if err != nil {
		return err
	}
	file := filepath.Join(f.root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return fmt.Errorf("create working dir: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.file = file
	f.content = ""
	f.history.reset()
	return f.watchLocked()
}

func (f *FileEditor) Value() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.content
}

func (f *FileEditor) SetValue(content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history.reset()
	f.writeLocked(content)
}

func (f *FileEditor) Undo() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, ok := f.history.pop()
	if !ok {
		return false
	}
	f.writeLocked(prev)
	return true
}

// Sync re-reads the working file; a change is recorded as an undo step and reported.
func (f *FileEditor) Sync() {
	f.mu.Lock()
	if f.file == "" {
		f.mu.Unlock()
		return
	}
	data, err := os.ReadFile(f.file)
	if err != nil {
		f.mu.Unlock()
		if !errors.Is(err, fs.ErrNotExist) {
			logger.WithComponent("editor").Warnf("read working file: %v", err)
		}
		return
	}
	if string(data) == f.content {
		f.mu.Unlock()
		return
	}
	f.history.push(f.content)
	f.content = string(data)
	fn := f.onChange
	f.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Start watches the working file until ctx is cancelled.
func (f *FileEditor) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	f.mu.Lock()
	f.watcher = watcher
	err = f.watchLocked()
	f.mu.Unlock()
	if err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer func() {
			f.mu.Lock()
			f.watcher = nil
			f.watched = ""
			f.mu.Unlock()
			watcher.Close()
		}()

		var debounce *time.Timer
		for {
			select {
			case <-ctx.Done():
				if debounce != nil {
					debounce.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 || event.Name != f.File() {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(100*time.Millisecond, f.Sync)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithComponent("editor").Warnf("watcher error: %v", err)
			}
		}
	}()
	return nil
}

// watchLocked moves the watch to the directory of the bound file.
func (f *FileEditor) watchLocked() error {
	if f.watcher == nil || f.file == "" {
		return nil
	}
	dir := filepath.Dir(f.file)
	if dir == f.watched {
		return nil
	}
	if f.watched != "" {
		_ = f.watcher.Remove(f.watched)
	}
	if err := f.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch dir: %w", err)
	}
	f.watched = dir
	return nil
}

func (f *FileEditor) writeLocked(content string) {
	f.content = content
	if f.file == "" {
		logger.WithComponent("editor").Warn(ErrNotBound)
		return
	}
	if err := os.WriteFile(f.file, []byte(content), 0o644); err != nil {
		logger.WithComponent("editor").Errorf("write working file: %v", err)
	}
}
