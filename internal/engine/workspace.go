package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bassista/notesync/internal/connectivity"
	"github.com/bassista/notesync/internal/editor"
	"github.com/bassista/notesync/internal/logger"
	"github.com/bassista/notesync/internal/notes"
	"github.com/containerd/errdefs"
)

var (
	ErrNoDocument      = errors.New("no active document")
	ErrWorkspaceClosed = errors.New("workspace is closed")
)

// Workspace owns the single active Session and routes editor, connectivity
// and user events to it. Opening another document replaces the session, so
// no save state ever leaks from one document to the next.
type Workspace struct {
	ctx        context.Context
	editor     editor.Editor
	deps       Deps
	opts       Options
	monitor    *connectivity.Monitor
	reconciler *Reconciler

	// openMu serializes Open; mu guards the fields below and is never held
	// across a remote call
	openMu sync.Mutex

	mu          sync.Mutex
	session     *Session
	closed      bool
	unsubscribe func()
}

// NewWorkspace wires a workspace. ctx bounds saves triggered by connectivity
// changes; monitor becomes the Connectivity of every session.
func NewWorkspace(ctx context.Context, ed editor.Editor, monitor *connectivity.Monitor, deps Deps, opts Options) *Workspace {
	deps.Connectivity = monitor
	w := &Workspace{
		ctx:        ctx,
		editor:     ed,
		deps:       deps,
		opts:       opts,
		monitor:    monitor,
		reconciler: NewReconciler(deps.Backups, deps.Status),
	}
	w.unsubscribe = monitor.Subscribe(w.onConnectivity)
	if n, ok := ed.(editor.Notifier); ok {
		n.OnChange(w.NoteActivity)
	}
	return w
}

func (w *Workspace) Reconciler() *Reconciler {
	return w.reconciler
}

// Active returns the session of the open document, or nil.
func (w *Workspace) Active() *Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session
}

func (w *Workspace) active() (*Session, error) {
	s := w.Active()
	if s == nil {
		return nil, ErrNoDocument
	}
	return s, nil
}

// Open makes path the active document. The previous session is closed first,
// then the server copy is loaded and checked against any local backup.
// A missing note opens as a new empty document.
func (w *Workspace) Open(ctx context.Context, path string) (*Conflict, error) {
	clean, err := notes.CleanPath(path)
	if err != nil {
		return nil, err
	}

	w.openMu.Lock()
	defer w.openMu.Unlock()

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, ErrWorkspaceClosed
	}
	prev := w.session
	w.session = nil
	w.mu.Unlock()

	if prev != nil {
		if err := prev.Close(ctx); err != nil {
			logger.WithDocument("workspace", prev.Path()).Errorf("backup on close failed: %v", err)
		}
	}

	serverContent := ""
	note, err := w.deps.Remote.Fetch(ctx, clean)
	switch {
	case err == nil:
		serverContent = note.Content
	case errdefs.IsNotFound(err):
		logger.WithDocument("workspace", clean).Info("note does not exist yet, starting empty")
	default:
		return nil, fmt.Errorf("open %s: %w", clean, err)
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, ErrWorkspaceClosed
	}
	if b, ok := w.editor.(editor.Binder); ok {
		if err := b.Bind(clean); err != nil {
			w.mu.Unlock()
			return nil, fmt.Errorf("open %s: %w", clean, err)
		}
	}
	w.editor.SetValue(serverContent)
	w.session = NewSession(clean, w.editor, &serverContent, w.deps, w.opts)
	w.mu.Unlock()
	logger.WithDocument("workspace", clean).Info("document opened")

	return w.reconciler.Check(ctx, clean, serverContent)
}

// NoteActivity forwards a user edit to the active session.
func (w *Workspace) NoteActivity() {
	if s := w.Active(); s != nil {
		s.NoteActivity()
	}
}

func (w *Workspace) SaveNow(ctx context.Context) (SaveResult, error) {
	s, err := w.active()
	if err != nil {
		return "", err
	}
	return s.SaveNow(ctx)
}

func (w *Workspace) SaveAnyway(ctx context.Context) (SaveResult, error) {
	s, err := w.active()
	if err != nil {
		return "", err
	}
	return s.SaveAnyway(ctx)
}

// RejectLoss undoes the edit behind a content loss warning.
func (w *Workspace) RejectLoss() (bool, error) {
	s, err := w.active()
	if err != nil {
		return false, err
	}
	return s.RejectLoss(), nil
}

// Resolve applies a recovery decision to the active document.
func (w *Workspace) Resolve(ctx context.Context, res Resolution) error {
	s, err := w.active()
	if err != nil {
		return err
	}
	return w.reconciler.Resolve(ctx, s, res)
}

// Snapshot describes the active session.
func (w *Workspace) Snapshot() (Snapshot, error) {
	s, err := w.active()
	if err != nil {
		return Snapshot{Online: w.monitor.Online()}, err
	}
	return s.Snapshot(), nil
}

// Close closes the active session and stops listening to connectivity changes.
func (w *Workspace) Close(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	if w.unsubscribe != nil {
		w.unsubscribe()
		w.unsubscribe = nil
	}
	if w.session == nil {
		return nil
	}
	err := w.session.Close(ctx)
	w.session = nil
	return err
}

func (w *Workspace) onConnectivity(online bool) {
	s := w.Active()
	if s == nil {
		return
	}
	if !online {
		if err := s.HandleConnectionLost(w.ctx); err != nil {
			logger.WithDocument("workspace", s.Path()).Errorf("offline backup failed: %v", err)
		}
		return
	}
	if _, err := s.HandleConnectionRestored(w.ctx); err != nil {
		logger.WithDocument("workspace", s.Path()).Warnf("save after reconnect failed: %v", err)
	}
}
