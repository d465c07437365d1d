package engine

import "context"

// HandleConnectionLost suspends scheduling. A pending save becomes a plain
// dirty flag and unsaved content is backed up immediately.
func (s *Session) HandleConnectionLost(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	s.cancelDeadlinesLocked()
	if s.state == StateDebouncing {
		s.state = StateIdle
	}

	content := s.editor.Value()
	if s.matchesBaselineLocked(content) {
		s.publishLocked(StatusOffline, false)
		return nil
	}

	s.dirty = true
	if err := s.backups.SaveNow(ctx, s.path, content); err != nil {
		s.publishLocked("Offline: local backup failed: "+err.Error(), true)
		return err
	}
	s.publishLocked(StatusOfflineSaved, false)
	s.log.Info("connection lost, content backed up")
	return nil
}

// HandleConnectionRestored saves right away when the document is dirty.
func (s *Session) HandleConnectionRestored(ctx context.Context) (SaveResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ResultSkippedBusy, nil
	}
	dirty := s.dirty
	if !dirty {
		s.publishLocked("", false)
	}
	s.mu.Unlock()

	if !dirty {
		return ResultUnchanged, nil
	}
	s.log.Info("connection restored, saving pending changes")
	return s.SaveNow(ctx)
}
