package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bassista/notesync/internal/metrics"
)

// SaveResult is the outcome of one SaveNow call.
type SaveResult string

const (
	ResultSaved          SaveResult = metrics.ResultSaved
	ResultFailed         SaveResult = metrics.ResultFailed
	ResultBlocked        SaveResult = metrics.ResultBlocked
	ResultUnchanged      SaveResult = metrics.ResultUnchanged
	ResultSkippedOffline SaveResult = metrics.ResultSkippedOffline
	ResultSkippedBusy    SaveResult = metrics.ResultSkippedBusy
)

var ErrRemotePanic = errors.New("remote write panicked")

// SaveNow attempts to persist the editor content right away.
//
// At most one write is in flight per session: a call that finds one running
// returns ResultSkippedBusy with a nil error. The busy check runs before the
// offline check, so an offline call during a write does not mark the document
// dirty; the write in flight settles that. Failed writes are not retried;
// the document stays dirty and the next edit, ceiling or reconnection tries
// again. Edits made during a write, failed or not, re-arm the deadlines.
func (s *Session) SaveNow(ctx context.Context) (SaveResult, error) {
	s.mu.Lock()

	if s.closed || s.saving {
		s.mu.Unlock()
		return record(ResultSkippedBusy), nil
	}

	if !s.online() {
		s.dirty = true
		s.mu.Unlock()
		return record(ResultSkippedOffline), nil
	}

	s.cancelDeadlinesLocked()

	candidate := s.editor.Value()
	if s.matchesBaselineLocked(candidate) {
		s.dirty = false
		s.state = StateIdle
		s.warning = ""
		s.publishLocked("", false)
		s.mu.Unlock()
		return record(ResultUnchanged), nil
	}

	if !s.override {
		if v := s.guard.Evaluate(s.lastSaved, candidate); v.Blocked {
			s.state = StateBlocked
			s.warning = v.Message()
			s.publishLocked(s.warning, true)
			s.log.Warnf("save blocked: %s", s.warning)
			s.mu.Unlock()
			return record(ResultBlocked), nil
		}
	}

	s.saving = true
	s.state = StateSaving
	s.publishLocked(StatusSaving, false)
	s.mu.Unlock()

	err := s.write(ctx, candidate)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = false

	if err != nil {
		return s.failLocked(candidate, err)
	}
	return s.succeedLocked(ctx, candidate), nil
}

// write issues the remote write with a bounded timeout. A panicking client is
// reported as an error so the caller always releases the in-flight flag.
func (s *Session) write(ctx context.Context, content string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrRemotePanic, r)
		}
	}()

	writeCtx, cancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
	defer cancel()

	start := time.Now()
	err = s.remote.Patch(writeCtx, s.path, content)
	metrics.SaveDuration.WithLabelValues(metrics.StatusLabel(err)).Observe(time.Since(start).Seconds())
	return err
}

func (s *Session) failLocked(candidate string, err error) (SaveResult, error) {
	s.publishLocked("Save failed: "+err.Error(), true)
	s.log.Errorf("save failed: %v", err)

	if !s.closed {
		// the document stays dirty; keep a local copy in case the process goes away
		current := s.editor.Value()
		s.backups.Save(s.path, current)

		// edits made while the write was in flight; a debounce that fired
		// meanwhile was skipped as busy, so arm the deadlines again
		if current != candidate {
			s.dirty = true
			if s.online() {
				s.scheduleLocked()
			}
		}
	}
	s.state = s.restingStateLocked()
	return record(ResultFailed), fmt.Errorf("save %s: %w", s.path, err)
}

func (s *Session) succeedLocked(ctx context.Context, candidate string) SaveResult {
	saved := candidate
	s.lastSaved = &saved
	s.lastSavedAt = s.clock.Now()
	s.override = false
	s.dirty = false
	s.warning = ""

	if s.closingContent == nil || *s.closingContent == candidate {
		if err := s.backups.Clear(ctx, s.path); err != nil {
			s.log.Warnf("clear backup after save: %v", err)
		}
	}

	if s.closed {
		s.state = StateIdle
		s.log.Debug("saved after close, skipping drift check")
		return record(ResultSaved)
	}

	s.cancelDeadlinesLocked()
	s.state = StateIdle
	s.publishLocked(StatusSaved, false)
	s.savedTTL.Arm(s.opts.SavedStatusTTL, s.clearSavedStatus)
	s.log.Debugf("saved %d bytes", len(candidate))

	// edits made while the write was in flight
	if current := s.editor.Value(); current != candidate {
		s.dirty = true
		if s.online() {
			s.scheduleLocked()
		}
	}
	return record(ResultSaved)
}

// restingStateLocked is the state after a write ends without success.
func (s *Session) restingStateLocked() SaveState {
	if s.debounce.Armed() {
		return StateDebouncing
	}
	return StateIdle
}

func (s *Session) clearSavedStatus() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.statusText != StatusSaved {
		return
	}
	s.publishLocked("", false)
}

func record(r SaveResult) SaveResult {
	metrics.SaveAttempts.WithLabelValues(string(r)).Inc()
	return r
}
