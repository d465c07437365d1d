package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/bassista/notesync/internal/backup"
	"github.com/bassista/notesync/internal/config"
	"github.com/bassista/notesync/internal/connectivity"
	"github.com/bassista/notesync/internal/editor"
	"github.com/bassista/notesync/internal/engine"
	"github.com/bassista/notesync/internal/logger"
	"github.com/bassista/notesync/internal/remote"
	"github.com/bassista/notesync/internal/status"
	"github.com/benbjohnson/clock"
)

// watcher is implemented by collaborators that follow external changes until ctx ends.
type watcher interface {
	StartWatcher(ctx context.Context) error
}

type starter interface {
	Start(ctx context.Context) error
}

// App is the sync client container (immutable dependencies + lifecycle context).
// It is not a request context; handlers should still use gin's request context.
type App struct {
	Config    *config.Config
	Repo      backup.Repository
	Backups   *backup.Store
	Remote    remote.Client
	Editor    editor.Editor
	Monitor   *connectivity.Monitor
	Prober    *connectivity.Prober
	Status    *status.Bus
	Workspace *engine.Workspace

	BaseCtx context.Context
	Cancel  context.CancelFunc
}

// New wires the engine around repo, client and ed. A nil clock means the wall clock.
func New(cfg *config.Config, repo backup.Repository, client remote.Client, ed editor.Editor, c clock.Clock) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if repo == nil {
		return nil, errors.New("backup repository is nil")
	}
	if client == nil {
		return nil, errors.New("remote client is nil")
	}
	if ed == nil {
		return nil, errors.New("editor is nil")
	}
	if c == nil {
		c = clock.New()
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		Config:  cfg,
		Repo:    repo,
		Backups: backup.NewStore(repo, c, cfg.Backup.Debounce),
		Remote:  client,
		Editor:  ed,
		Monitor: connectivity.NewMonitor(),
		Status:  status.NewBus(),
		BaseCtx: ctx,
		Cancel:  cancel,
	}
	a.Prober = connectivity.NewProber(a.Monitor, client, c, cfg.Remote.ProbeInterval, cfg.Remote.ProbeTimeout)
	a.Workspace = engine.NewWorkspace(ctx, ed, a.Monitor, engine.Deps{
		Remote:  client,
		Backups: a.Backups,
		Status:  a.Status,
		Clock:   c,
	}, engine.OptionsFromConfig(cfg.Sync))

	a.Status.Subscribe(func(s status.Status) {
		if s.Text == "" {
			return
		}
		entry := logger.WithDocument("status", s.Path)
		if s.IsError {
			entry.Warn(s.Text)
			return
		}
		entry.Debug(s.Text)
	})
	return a, nil
}

// StartWatchers starts the background loops: backup file reloads, editor
// file watching and connectivity probing.
func (a *App) StartWatchers() error {
	if w, ok := a.Repo.(watcher); ok {
		if err := w.StartWatcher(a.BaseCtx); err != nil {
			return fmt.Errorf("cannot start backup file watcher: %w", err)
		}
	}
	if s, ok := a.Editor.(starter); ok {
		if err := s.Start(a.BaseCtx); err != nil {
			return fmt.Errorf("cannot start editor watcher: %w", err)
		}
	}
	go a.Prober.Run(a.BaseCtx)
	return nil
}

// Shutdown captures unsaved edits of the open document, flushes pending
// backups and stops the background loops.
func (a *App) Shutdown(ctx context.Context) error {
	if a == nil || a.Cancel == nil {
		return nil
	}
	var errs []error
	if err := a.Workspace.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close workspace: %w", err))
	}
	a.Cancel()
	if err := a.Backups.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close backups: %w", err))
	}
	return errors.Join(errs...)
}
