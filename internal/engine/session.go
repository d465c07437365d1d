// Package engine decides when edited content is persisted, guards each write
// against content loss, and reconciles local backups with the server copy.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/bassista/notesync/internal/backup"
	"github.com/bassista/notesync/internal/config"
	"github.com/bassista/notesync/internal/deadline"
	"github.com/bassista/notesync/internal/editor"
	"github.com/bassista/notesync/internal/guard"
	"github.com/bassista/notesync/internal/logger"
	"github.com/bassista/notesync/internal/remote"
	"github.com/bassista/notesync/internal/status"
	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
)

type SaveState string

const (
	StateIdle       SaveState = "IDLE"
	StateDebouncing SaveState = "DEBOUNCING"
	StateSaving     SaveState = "SAVING"
	StateBlocked    SaveState = "BLOCKED"
)

// Status lines published on the bus.
const (
	StatusUnsaved      = "Unsaved changes"
	StatusSaving       = "Saving…"
	StatusSaved        = "Saved"
	StatusOffline      = "Offline"
	StatusOfflineSaved = "Offline: changes backed up locally"
)

const (
	DefaultDebounceDelay  = 2000 * time.Millisecond
	DefaultCeilingDelay   = 30000 * time.Millisecond
	DefaultSavedStatusTTL = 2 * time.Second
	DefaultWriteTimeout   = 15 * time.Second
)

// Options are the timing and threshold knobs of a Session.
type Options struct {
	DebounceDelay  time.Duration
	CeilingDelay   time.Duration
	SavedStatusTTL time.Duration
	WriteTimeout   time.Duration
	Thresholds     guard.Thresholds
}

func DefaultOptions() Options {
	return Options{
		DebounceDelay:  DefaultDebounceDelay,
		CeilingDelay:   DefaultCeilingDelay,
		SavedStatusTTL: DefaultSavedStatusTTL,
		WriteTimeout:   DefaultWriteTimeout,
		Thresholds:     guard.DefaultThresholds(),
	}
}

func OptionsFromConfig(cfg config.SyncConfig) Options {
	return Options{
		DebounceDelay:  cfg.DebounceDelay,
		CeilingDelay:   cfg.CeilingDelay,
		SavedStatusTTL: cfg.SavedStatusTTL,
		WriteTimeout:   cfg.WriteTimeout,
		Thresholds:     guard.Thresholds{MaxLossPercent: cfg.LossPercent, MaxLossChars: cfg.LossChars},
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.DebounceDelay <= 0 {
		o.DebounceDelay = d.DebounceDelay
	}
	if o.CeilingDelay <= 0 {
		o.CeilingDelay = d.CeilingDelay
	}
	if o.SavedStatusTTL <= 0 {
		o.SavedStatusTTL = d.SavedStatusTTL
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	return o
}

// Connectivity is the read side of the connectivity monitor.
type Connectivity interface {
	Online() bool
}

// Deps are the collaborators shared by every Session of a Workspace.
type Deps struct {
	Remote       remote.Client
	Backups      *backup.Store
	Connectivity Connectivity
	Status       *status.Bus
	Clock        clock.Clock
}

// Session is the save state of one open document. Every mutable field is
// guarded by mu; mu is released only across the remote write.
type Session struct {
	path    string
	editor  editor.Editor
	remote  remote.Client
	backups *backup.Store
	conn    Connectivity
	bus     *status.Bus
	clock   clock.Clock
	guard   *guard.ContentLossGuard
	opts    Options
	log     *logrus.Entry

	debounce *deadline.Deadline
	ceiling  *deadline.Deadline
	savedTTL *deadline.Deadline

	mu          sync.Mutex
	state       SaveState
	saving      bool
	dirty       bool
	override    bool
	lastSaved   *string
	lastSavedAt time.Time
	warning     string
	statusText  string
	closed      bool
	// closingContent is the content captured as a backup when the session was closed dirty.
	closingContent *string
}

// NewSession creates the save state for path. baseline is the last known
// server content; nil means unknown and disables the loss guard for the first save.
func NewSession(path string, ed editor.Editor, baseline *string, deps Deps, opts Options) *Session {
	c := deps.Clock
	if c == nil {
		c = clock.New()
	}
	opts = opts.withDefaults()
	s := &Session{
		path:     path,
		editor:   ed,
		remote:   deps.Remote,
		backups:  deps.Backups,
		conn:     deps.Connectivity,
		bus:      deps.Status,
		clock:    c,
		guard:    guard.New(opts.Thresholds),
		opts:     opts,
		log:      logger.WithDocument("engine", path),
		debounce: deadline.New(c),
		ceiling:  deadline.New(c),
		savedTTL: deadline.New(c),
		state:    StateIdle,
	}
	if baseline != nil {
		b := *baseline
		s.lastSaved = &b
	}
	return s
}

func (s *Session) Path() string {
	return s.path
}

func (s *Session) State() SaveState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

func (s *Session) Override() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.override
}

// LastSaved returns a copy of the baseline, or nil when it is unknown.
func (s *Session) LastSaved() *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSaved == nil {
		return nil
	}
	v := *s.lastSaved
	return &v
}

// Snapshot is a point-in-time view of a Session for status surfaces.
type Snapshot struct {
	Path        string     `json:"path"`
	State       SaveState  `json:"state"`
	Dirty       bool       `json:"dirty"`
	Saving      bool       `json:"saving"`
	Override    bool       `json:"override"`
	Online      bool       `json:"online"`
	Warning     string     `json:"warning,omitempty"`
	Status      string     `json:"status,omitempty"`
	LastSavedAt *time.Time `json:"lastSavedAt,omitempty"`
	DebounceDue *time.Time `json:"debounceDue,omitempty"`
	CeilingDue  *time.Time `json:"ceilingDue,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Path:     s.path,
		State:    s.state,
		Dirty:    s.dirty,
		Saving:   s.saving,
		Override: s.override,
		Online:   s.online(),
		Warning:  s.warning,
		Status:   s.statusText,
	}
	if !s.lastSavedAt.IsZero() {
		t := s.lastSavedAt
		snap.LastSavedAt = &t
	}
	if due := s.debounce.Due(); !due.IsZero() {
		snap.DebounceDue = &due
	}
	if due := s.ceiling.Due(); !due.IsZero() {
		snap.CeilingDue = &due
	}
	return snap
}

// SaveAnyway is the explicit "save anyway" action: it sets the content loss
// override, leaves BLOCKED and saves immediately.
func (s *Session) SaveAnyway(ctx context.Context) (SaveResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ResultSkippedBusy, nil
	}
	s.override = true
	if s.state == StateBlocked {
		s.state = StateIdle
		s.warning = ""
	}
	s.log.Warn("content loss override set by user")
	s.mu.Unlock()

	return s.SaveNow(ctx)
}

// RejectLoss reverts the last edit and re-evaluates the document as a normal edit.
// It reports whether the session is no longer BLOCKED.
func (s *Session) RejectLoss() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if !s.editor.Undo() {
		s.log.Debug("nothing to undo")
	}
	s.noteActivityLocked()
	return s.state != StateBlocked
}

// ApplyBackup loads recovered content into the editor. The baseline becomes
// unknown, so the next save skips the loss guard.
func (s *Session) ApplyBackup(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.editor.SetValue(content)
	s.lastSaved = nil
	s.dirty = true
	if s.state == StateBlocked {
		s.state = StateIdle
		s.warning = ""
	}
	if s.online() {
		s.scheduleLocked()
		return
	}
	s.backups.Save(s.path, content)
}

// Close tears the session down. Pending deadlines are cancelled and a dirty
// document is captured as a backup right away. An in-flight save still
// completes but no longer touches the editor.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.cancelDeadlinesLocked()
	s.savedTTL.Cancel()

	content := s.editor.Value()
	if !s.dirty || s.matchesBaselineLocked(content) {
		return nil
	}
	s.closingContent = &content
	s.log.Info("closing with unsaved changes, capturing backup")
	return s.backups.SaveNow(ctx, s.path, content)
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) online() bool {
	return s.conn == nil || s.conn.Online()
}

func (s *Session) matchesBaselineLocked(content string) bool {
	return s.lastSaved != nil && *s.lastSaved == content
}

func (s *Session) cancelDeadlinesLocked() {
	s.debounce.Cancel()
	s.ceiling.Cancel()
}

func (s *Session) publishLocked(text string, isError bool) {
	s.statusText = text
	if s.bus == nil {
		return
	}
	s.bus.Publish(status.Status{
		Path:    s.path,
		Text:    text,
		IsError: isError,
		State:   string(s.state),
		At:      s.clock.Now(),
	})
}
