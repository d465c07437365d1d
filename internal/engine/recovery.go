package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/bassista/notesync/internal/backup"
	"github.com/bassista/notesync/internal/logger"
	"github.com/bassista/notesync/internal/metrics"
	"github.com/bassista/notesync/internal/status"
	"github.com/sergi/go-diff/diffmatchpatch"
)

var ErrNoConflict = errors.New("no pending recovery for document")

// Source names the copy a user keeps when resolving a conflict.
type Source string

const (
	SourceBackup Source = "backup"
	SourceServer Source = "server"
)

// Resolution is the user's decision for a pending conflict.
// Content, when set, replaces the backup content applied for SourceBackup.
type Resolution struct {
	Source  Source  `json:"source" binding:"required,oneof=backup server"`
	Content *string `json:"content,omitempty"`
}

// DiffSummary describes how the backup differs from the server copy. It is
// informational only and never applied.
type DiffSummary struct {
	Inserted int    `json:"inserted"`
	Deleted  int    `json:"deleted"`
	Pretty   string `json:"pretty"`
}

// Conflict is a local backup that diverges from the server copy.
type Conflict struct {
	Path            string      `json:"path"`
	ServerContent   string      `json:"serverContent"`
	BackupContent   string      `json:"backupContent"`
	BackupTimestamp time.Time   `json:"backupTimestamp"`
	Diff            DiffSummary `json:"diff"`
}

// Reconciler compares local backups with freshly loaded server content and
// holds conflicts until the user resolves them.
type Reconciler struct {
	backups *backup.Store
	bus     *status.Bus

	mu      sync.Mutex
	pending map[string]Conflict
}

func NewReconciler(backups *backup.Store, bus *status.Bus) *Reconciler {
	return &Reconciler{backups: backups, bus: bus, pending: map[string]Conflict{}}
}

// Check looks for a backup of path that differs from serverContent.
// A nil conflict means there is nothing to recover; a stale backup equal to
// the server copy is discarded by the store.
func (r *Reconciler) Check(ctx context.Context, path, serverContent string) (*Conflict, error) {
	rec, err := r.backups.Check(ctx, path, serverContent)
	if err != nil {
		return nil, fmt.Errorf("check backup %s: %w", path, err)
	}
	if rec == nil {
		r.mu.Lock()
		delete(r.pending, path)
		r.mu.Unlock()
		return nil, nil
	}

	conflict := Conflict{
		Path:            path,
		ServerContent:   serverContent,
		BackupContent:   rec.Content,
		BackupTimestamp: rec.Time(),
		Diff:            Summarize(serverContent, rec.Content),
	}

	r.mu.Lock()
	r.pending[path] = conflict
	r.mu.Unlock()

	metrics.Recoveries.WithLabelValues("detected").Inc()
	logger.WithDocument("recovery", path).Infof("backup from %s differs from server copy (+%d/-%d)",
		conflict.BackupTimestamp.Format(time.RFC3339), conflict.Diff.Inserted, conflict.Diff.Deleted)
	if r.bus != nil {
		r.bus.Publish(status.Status{Path: path, Text: "Unsaved local changes found", State: "RECOVERY"})
	}
	return &conflict, nil
}

// Pending returns the unresolved conflict for path.
func (r *Reconciler) Pending(path string) (*Conflict, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.pending[path]
	if !ok {
		return nil, false
	}
	return &c, true
}

// PendingAll returns every unresolved conflict, sorted by path.
func (r *Reconciler) PendingAll() []Conflict {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Conflict, 0, len(r.pending))
	for _, c := range r.pending {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Resolve applies the user's decision for the session's document.
//
// Keeping the backup loads it into the editor with an unknown baseline and
// schedules a save; keeping the server copy leaves the editor as loaded.
// Either way the backup record is removed.
func (r *Reconciler) Resolve(ctx context.Context, s *Session, res Resolution) error {
	path := s.Path()

	r.mu.Lock()
	conflict, ok := r.pending[path]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoConflict, path)
	}

	switch res.Source {
	case SourceBackup:
		content := conflict.BackupContent
		if res.Content != nil {
			content = *res.Content
		}
		if err := r.backups.Clear(ctx, path); err != nil {
			return fmt.Errorf("clear backup %s: %w", path, err)
		}
		s.ApplyBackup(content)
	case SourceServer:
		if err := r.backups.Clear(ctx, path); err != nil {
			return fmt.Errorf("clear backup %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unknown resolution source %q", res.Source)
	}

	r.mu.Lock()
	delete(r.pending, path)
	r.mu.Unlock()

	metrics.Recoveries.WithLabelValues(string(res.Source)).Inc()
	logger.WithDocument("recovery", path).Infof("conflict resolved, kept %s copy", res.Source)
	return nil
}

// Summarize counts inserted and deleted characters going from server to backup.
func Summarize(server, local string) DiffSummary {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(server, local, true)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var sum DiffSummary
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			sum.Inserted += utf8.RuneCountInString(d.Text)
		case diffmatchpatch.DiffDelete:
			sum.Deleted += utf8.RuneCountInString(d.Text)
		}
	}
	sum.Pretty = dmp.DiffPrettyText(diffs)
	return sum
}
