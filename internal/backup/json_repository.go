package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bassista/notesync/internal/logger"
	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
)

// JSONRepository keeps every record in one JSON file, rewritten atomically on each change.
// The file is the source of truth; an in-memory copy serves reads.
type JSONRepository struct {
	path      string
	dir       string
	base      string
	validator *validator.Validate

	mu     sync.Mutex
	doc    Document
	closed bool
}

// NewJSONRepository opens (or lazily creates) the backup file at path.
func NewJSONRepository(path string) (*JSONRepository, error) {
	if path == "" {
		return nil, errors.New("backup file path is required")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if dir == "" || dir == "." {
		dir = "."
	}

	r := &JSONRepository{path: path, dir: dir, base: base, validator: validator.New()}
	doc, err := r.loadFile()
	if err != nil {
		return nil, err
	}
	r.doc = *doc
	return r, nil
}

func (r *JSONRepository) Get(_ context.Context, path string) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRepositoryClosed
	}
	rec, ok := r.doc.Records[path]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r *JSONRepository) Put(_ context.Context, rec Record) error {
	if err := r.validator.Struct(rec); err != nil {
		return fmt.Errorf("validate backup record: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRepositoryClosed
	}
	next := r.cloneLocked()
	next.Records[rec.Path] = rec
	return r.commitLocked(next)
}

func (r *JSONRepository) Delete(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRepositoryClosed
	}
	if _, ok := r.doc.Records[path]; !ok {
		return nil
	}
	next := r.cloneLocked()
	delete(next.Records, path)
	return r.commitLocked(next)
}

func (r *JSONRepository) List(_ context.Context) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRepositoryClosed
	}
	out := make([]Record, 0, len(r.doc.Records))
	for _, rec := range r.doc.Records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (r *JSONRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *JSONRepository) cloneLocked() Document {
	next := Document{Metadata: r.doc.Metadata, Records: make(map[string]Record, len(r.doc.Records)+1)}
	for k, v := range r.doc.Records {
		next.Records[k] = v
	}
	return next
}

// commitLocked stamps, writes and adopts next (caller must hold the lock).
func (r *JSONRepository) commitLocked(next Document) error {
	stamp := time.Now().UnixMilli()
	if stamp <= r.doc.Metadata.LastUpdate {
		stamp = r.doc.Metadata.LastUpdate + 1
	}
	next.Metadata.LastUpdate = stamp
	if err := r.saveFile(&next); err != nil {
		return err
	}
	r.doc = next
	return nil
}

// loadFile reads and validates the backup file; a missing file is an empty document.
func (r *JSONRepository) loadFile() (*Document, error) {
	file, err := os.Open(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			doc := &Document{}
			doc.applyDefaults()
			return doc, nil
		}
		return nil, fmt.Errorf("open backup file: %w", err)
	}
	defer file.Close()

	var doc Document
	if err := json.NewDecoder(file).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode backup file: %w", err)
	}
	doc.applyDefaults()

	if err := r.validator.Struct(&doc); err != nil {
		return nil, fmt.Errorf("validate backup file: %w", err)
	}
	return &doc, nil
}

// saveFile writes the document atomically to disk.
func (r *JSONRepository) saveFile(doc *Document) error {
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal backups: %w", err)
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(r.dir, r.base+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
	}()

	if _, err := tmpFile.Write(payload); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpFile.Name(), r.path); err != nil {
		return fmt.Errorf("replace backup file: %w", err)
	}

	return nil
}

// StartWatcher reloads the in-memory copy when another process rewrites the backup file,
// e.g. `notesync resolve` running next to the daemon.
// It watches the parent directory so atomic replace sequences (temp+rename) are observed.
// Cancel ctx to stop the goroutine and close the watcher.
func (r *JSONRepository) StartWatcher(ctx context.Context) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	if err := watcher.Add(r.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch dir: %w", err)
	}

	go func() {
		defer watcher.Close()

		// debounce coalesces bursty events (write+chmod/rename) into a single reload.
		var debounce *time.Timer
		schedule := func() {
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, r.Reload)
		}

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
				if filepath.Base(event.Name) != r.base {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
					schedule()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithComponent("backup-json").Warnf("watcher error: %v", err)
			}
		}
	}()

	return nil
}

// Reload re-reads the file and adopts it when its version differs from the in-memory copy.
func (r *JSONRepository) Reload() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	diskDoc, err := r.loadFile()
	if err != nil {
		logger.WithComponent("backup-json").Warnf("watch reload failed: %v", err)
		return
	}
	if diskDoc.Metadata.LastUpdate == r.doc.Metadata.LastUpdate {
		return
	}
	r.doc = *diskDoc
	logger.WithComponent("backup-json").Infof("backups reloaded from disk (%d records)", len(diskDoc.Records))
}
