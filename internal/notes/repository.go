// Package notes is the storage behind the notes service: one file per note under a root directory.
package notes

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrInvalidPath = errors.New("invalid note path")
	ErrNotFound    = errors.New("note not found")
)

type Note struct {
	Path      string    `json:"path"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Repository interface {
	Get(ctx context.Context, notePath string) (Note, error)
	Put(ctx context.Context, notePath, content string) (Note, error)
	List(ctx context.Context) ([]string, error)
}

// CleanPath normalizes a note path to a slash-separated relative path.
// Absolute paths are treated as rooted at the notes directory; paths escaping it are rejected.
func CleanPath(notePath string) (string, error) {
	p := strings.TrimSpace(strings.ReplaceAll(notePath, "\\", "/"))
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %s", ErrInvalidPath, notePath)
		}
	}
	p = path.Clean(p)
	if p == "." || strings.HasSuffix(notePath, "/") {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, notePath)
	}
	return p, nil
}

// FileRepository stores every note as a plain file under root.
type FileRepository struct {
	root string
	mu   sync.RWMutex
}

func NewFileRepository(root string) (*FileRepository, error) {
	if root == "" {
		return nil, errors.New("notes directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create notes dir: %w", err)
	}
	return &FileRepository{root: root}, nil
}

func (r *FileRepository) Get(_ context.Context, notePath string) (Note, error) {
	clean, err := CleanPath(notePath)
	if err != nil {
		return Note{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	full := filepath.Join(r.root, filepath.FromSlash(clean))
	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Note{}, fmt.Errorf("%w: %s", ErrNotFound, clean)
		}
		return Note{}, fmt.Errorf("stat note: %w", err)
	}
	if info.IsDir() {
		return Note{}, fmt.Errorf("%w: %s is a directory", ErrInvalidPath, clean)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return Note{}, fmt.Errorf("read note: %w", err)
	}
	return Note{Path: clean, Content: string(data), UpdatedAt: info.ModTime().UTC()}, nil
}

func (r *FileRepository) Put(_ context.Context, notePath, content string) (Note, error) {
	clean, err := CleanPath(notePath)
	if err != nil {
		return Note{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	full := filepath.Join(r.root, filepath.FromSlash(clean))
	if err := writeFileAtomic(full, []byte(content)); err != nil {
		return Note{}, err
	}
	updated := time.Now().UTC()
	if info, err := os.Stat(full); err == nil {
		updated = info.ModTime().UTC()
	}
	return Note{Path: clean, Content: content, UpdatedAt: updated}, nil
}

// List returns every note path, sorted.
func (r *FileRepository) List(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	err := filepath.WalkDir(r.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.Contains(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(r.root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

func writeFileAtomic(full string, data []byte) error {
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create note dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, filepath.Base(full)+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpFile.Name(), full); err != nil {
		return fmt.Errorf("replace note: %w", err)
	}
	return nil
}
