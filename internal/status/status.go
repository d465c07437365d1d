// Package status carries the human-readable save status from the engine to
// whoever renders it (control API, CLI, logs).
package status

import (
	"sync"
	"time"
)

// Status is a single status line. An empty Text means "nothing to report".
type Status struct {
	Path    string    `json:"path"`
	Text    string    `json:"text"`
	IsError bool      `json:"isError"`
	State   string    `json:"state,omitempty"`
	At      time.Time `json:"at"`
}

// Subscriber receives every published status in publish order.
// It runs synchronously on the publisher's goroutine and must not call back into the publisher.
type Subscriber func(Status)

// Bus is a small typed pub/sub channel that also remembers the latest status.
type Bus struct {
	mu     sync.RWMutex
	last   Status
	nextID int
	subs   map[int]Subscriber
}

func NewBus() *Bus {
	return &Bus{subs: map[int]Subscriber{}}
}

// Publish records s as the latest status and fans it out to subscribers.
func (b *Bus) Publish(s Status) {
	if s.At.IsZero() {
		s.At = time.Now()
	}
	b.mu.Lock()
	b.last = s
	subs := make([]Subscriber, 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn Subscriber) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Current returns the most recently published status.
func (b *Bus) Current() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.last
}
