package engine

import "context"

// NoteActivity records a user edit and decides when the next save happens.
//
// Two deadlines coalesce edits: the debounce deadline is re-armed on every
// edit and fires after a quiet period, the ceiling deadline is armed once per
// dirty period and bounds how long continuous typing can postpone a save.
func (s *Session) NoteActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.noteActivityLocked()
}

func (s *Session) noteActivityLocked() {
	s.dirty = true

	if s.state == StateBlocked {
		if !s.guard.Restored(s.lastSaved, s.editor.Value()) {
			return
		}
		s.log.Info("content restored, leaving blocked state")
		s.state = StateIdle
		s.warning = ""
		s.publishLocked("", false)
	}

	if !s.online() {
		s.backups.Save(s.path, s.editor.Value())
		return
	}

	s.scheduleLocked()
}

// scheduleLocked arms both deadlines for a dirty document.
func (s *Session) scheduleLocked() {
	if s.state == StateIdle {
		s.state = StateDebouncing
		s.publishLocked(StatusUnsaved, false)
	}
	s.debounce.Arm(s.opts.DebounceDelay, s.onDebounce)
	s.ceiling.ArmIfIdle(s.opts.CeilingDelay, s.onCeiling)
}

func (s *Session) onDebounce() {
	if _, err := s.SaveNow(context.Background()); err != nil {
		s.log.Warnf("debounced save failed: %v", err)
	}
}

func (s *Session) onCeiling() {
	s.mu.Lock()
	dirty := s.dirty && !s.closed
	s.mu.Unlock()
	if !dirty {
		return
	}
	s.log.Debug("ceiling deadline reached, forcing save")
	if _, err := s.SaveNow(context.Background()); err != nil {
		s.log.Warnf("ceiling save failed: %v", err)
	}
}
