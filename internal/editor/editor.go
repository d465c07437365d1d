// Package editor provides the editor collaborators the sync engine reads live content from.
package editor

import "sync"

// Editor owns the live content of the active document.
type Editor interface {
	Value() string
	// SetValue replaces the content programmatically (document load, recovery).
	SetValue(content string)
	// Undo reverts the most recent change. It reports false when there is nothing to undo.
	Undo() bool
}

// Notifier is implemented by editors that report user edits.
type Notifier interface {
	OnChange(fn func())
}

// DefaultHistory bounds the undo stack.
const DefaultHistory = 100

// history is a bounded undo stack shared by the editor implementations.
type history struct {
	entries []string
	limit   int
}

func (h *history) push(content string) {
	limit := h.limit
	if limit <= 0 {
		limit = DefaultHistory
	}
	h.entries = append(h.entries, content)
	if len(h.entries) > limit {
		h.entries = h.entries[len(h.entries)-limit:]
	}
}

func (h *history) pop() (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	last := h.entries[len(h.entries)-1]
	h.entries = h.entries[:len(h.entries)-1]
	return last, true
}

func (h *history) reset() {
	h.entries = nil
}

// Buffer is an in-memory Editor. Edit records an undo step and notifies the
// change callback, the way keystrokes would; SetValue does neither.
type Buffer struct {
	mu       sync.Mutex
	content  string
	history  history
	onChange func()
}

func NewBuffer(content string) *Buffer {
	return &Buffer{content: content}
}

// OnChange registers the callback run after every user edit.
func (b *Buffer) OnChange(fn func()) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

func (b *Buffer) Value() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.content
}

func (b *Buffer) SetValue(content string) {
	b.mu.Lock()
	b.content = content
	b.history.reset()
	b.mu.Unlock()
}

// Edit applies a user change.
func (b *Buffer) Edit(content string) {
	b.mu.Lock()
	if content == b.content {
		b.mu.Unlock()
		return
	}
	b.history.push(b.content)
	b.content = content
	fn := b.onChange
	b.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (b *Buffer) Undo() bool {
	b.mu.Lock()
	prev, ok := b.history.pop()
	if ok {
		b.content = prev
	}
	b.mu.Unlock()
	return ok
}
