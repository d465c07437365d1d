// Package deadline provides cancelable one-shot deadlines on an injectable clock.
package deadline

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Deadline is a single re-armable timer slot. A callback only runs if the arm
// that scheduled it is still current when it fires; Cancel or a later Arm
// invalidates it even when the underlying timer has already expired.
type Deadline struct {
	clock clock.Clock

	mu    sync.Mutex
	timer *clock.Timer
	gen   uint64
	due   time.Time
}

func New(c clock.Clock) *Deadline {
	if c == nil {
		c = clock.New()
	}
	return &Deadline{clock: c}
}

// Arm replaces any pending deadline with one firing fn after d (last writer wins).
func (d *Deadline) Arm(after time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.armLocked(after, fn)
}

// ArmIfIdle arms the deadline only when none is pending (first armed wins).
// It reports whether a new deadline was armed.
func (d *Deadline) ArmIfIdle(after time.Duration, fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		return false
	}
	d.armLocked(after, fn)
	return true
}

// Cancel disarms the deadline. It is safe to call when nothing is armed.
func (d *Deadline) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

// Armed reports whether a callback is pending.
func (d *Deadline) Armed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Due returns when the pending deadline fires, or the zero time when idle.
func (d *Deadline) Due() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer == nil {
		return time.Time{}
	}
	return d.due
}

func (d *Deadline) armLocked(after time.Duration, fn func()) {
	d.stopLocked()
	gen := d.gen
	d.due = d.clock.Now().Add(after)
	d.timer = d.clock.AfterFunc(after, func() {
		d.mu.Lock()
		if d.gen != gen {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.due = time.Time{}
		d.mu.Unlock()
		fn()
	})
}

func (d *Deadline) stopLocked() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.due = time.Time{}
}
