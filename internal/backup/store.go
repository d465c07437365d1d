package backup

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bassista/notesync/internal/deadline"
	"github.com/bassista/notesync/internal/logger"
	"github.com/bassista/notesync/internal/metrics"
	"github.com/benbjohnson/clock"
)

const DefaultDebounce = time.Second

type pendingWrite struct {
	content    string
	capturedAt time.Time
	deadline   *deadline.Deadline
}

// Store is the offline backup store: debounced per-path capture of unsaved content
// on top of a durable Repository.
//
// All repository mutations happen under one lock, so a pending debounced write can
// never resurrect a record that Clear has already removed.
type Store struct {
	repo     Repository
	clock    clock.Clock
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*pendingWrite
}

func NewStore(repo Repository, c clock.Clock, debounce time.Duration) *Store {
	if c == nil {
		c = clock.New()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Store{
		repo:     repo,
		clock:    c,
		debounce: debounce,
		pending:  map[string]*pendingWrite{},
	}
}

// Save schedules a write of content for path after the debounce delay.
// Calls within the delay coalesce and only the latest content is written.
func (s *Store) Save(path, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[path]
	if !ok {
		p = &pendingWrite{deadline: deadline.New(s.clock)}
		s.pending[path] = p
	}
	p.content = content
	p.capturedAt = s.clock.Now()
	p.deadline.Arm(s.debounce, func() { s.flushPath(path) })
}

// SaveNow writes content for path immediately, superseding any pending write.
func (s *Store) SaveNow(ctx context.Context, path, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropPendingLocked(path)
	return s.putLocked(ctx, Record{Path: path, Content: content, Timestamp: s.clock.Now().UnixMilli()}, "save_now")
}

// Check returns the backup for path when it conflicts with serverContent.
// A record matching the server copy is stale and is deleted; nil means no conflict.
func (s *Store) Check(ctx context.Context, path, serverContent string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flushPendingLocked(ctx, path); err != nil {
		return nil, err
	}

	rec, err := s.repo.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	if rec.Content == serverContent {
		if err := s.deleteLocked(ctx, path); err != nil {
			return nil, err
		}
		logger.WithDocument("backup", path).Debug("backup matches server copy, discarded")
		return nil, nil
	}
	return rec, nil
}

// Get returns the stored record for path, flushing a pending write first.
func (s *Store) Get(ctx context.Context, path string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flushPendingLocked(ctx, path); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, path)
}

// Clear cancels any pending write and removes the record for path.
func (s *Store) Clear(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropPendingLocked(path)
	return s.deleteLocked(ctx, path)
}

// List returns all stored records after flushing pending writes.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	if err := s.Flush(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.List(ctx)
}

// Pending reports whether a debounced write is waiting for path.
func (s *Store) Pending(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[path]
	return ok
}

// Flush writes every pending record now.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for path := range s.pending {
		if err := s.flushPendingLocked(ctx, path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close flushes pending writes and closes the repository.
func (s *Store) Close(ctx context.Context) error {
	flushErr := s.Flush(ctx)
	return errors.Join(flushErr, s.repo.Close())
}

func (s *Store) flushPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flushPendingLocked(context.Background(), path); err != nil {
		logger.WithDocument("backup", path).Errorf("debounced backup write failed: %v", err)
	}
}

func (s *Store) flushPendingLocked(ctx context.Context, path string) error {
	p, ok := s.pending[path]
	if !ok {
		return nil
	}
	s.dropPendingLocked(path)
	return s.putLocked(ctx, Record{Path: path, Content: p.content, Timestamp: p.capturedAt.UnixMilli()}, "save")
}

func (s *Store) dropPendingLocked(path string) {
	if p, ok := s.pending[path]; ok {
		p.deadline.Cancel()
		delete(s.pending, path)
	}
}

func (s *Store) putLocked(ctx context.Context, rec Record, op string) error {
	if rec.Timestamp <= 0 {
		rec.Timestamp = 1
	}
	err := s.repo.Put(ctx, rec)
	metrics.BackupOperations.WithLabelValues(op, metrics.StatusLabel(err)).Inc()
	if err != nil {
		return err
	}
	logger.WithDocument("backup", rec.Path).Debugf("backup written (%d bytes)", len(rec.Content))
	return nil
}

func (s *Store) deleteLocked(ctx context.Context, path string) error {
	err := s.repo.Delete(ctx, path)
	metrics.BackupOperations.WithLabelValues("delete", metrics.StatusLabel(err)).Inc()
	return err
}
