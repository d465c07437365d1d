// Package connectivity tracks whether the remote store is reachable.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/bassista/notesync/internal/logger"
	"github.com/bassista/notesync/internal/metrics"
	"github.com/benbjohnson/clock"
)

type State string

const (
	Online  State = "ONLINE"
	Offline State = "OFFLINE"
)

// Listener is called after every transition with the new state.
type Listener func(online bool)

// Monitor holds the connectivity state. It starts ONLINE.
type Monitor struct {
	mu        sync.Mutex
	online    bool
	nextID    int
	listeners map[int]Listener
}

func NewMonitor() *Monitor {
	metrics.Online.Set(1)
	return &Monitor{online: true, listeners: map[int]Listener{}}
}

func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *Monitor) State() State {
	if m.Online() {
		return Online
	}
	return Offline
}

// Subscribe registers fn for transitions and returns a function removing it.
func (m *Monitor) Subscribe(fn Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// SetOnline records the reported state. Listeners run only on a transition,
// synchronously and outside the lock.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	state := Offline
	gauge := 0.0
	if online {
		state = Online
		gauge = 1
	}
	metrics.Online.Set(gauge)
	metrics.ConnectivityTransitions.WithLabelValues(string(state)).Inc()
	logger.WithComponent("connectivity").Infof("connection %s", state)

	for _, l := range listeners {
		l(online)
	}
}

// Pinger reports whether the remote store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

const (
	DefaultProbeInterval = 5 * time.Second
	DefaultProbeTimeout  = 3 * time.Second
)

// Prober polls a Pinger and feeds the result into a Monitor.
type Prober struct {
	monitor  *Monitor
	pinger   Pinger
	clock    clock.Clock
	interval time.Duration
	timeout  time.Duration
}

func NewProber(monitor *Monitor, pinger Pinger, c clock.Clock, interval, timeout time.Duration) *Prober {
	if c == nil {
		c = clock.New()
	}
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Prober{monitor: monitor, pinger: pinger, clock: c, interval: interval, timeout: timeout}
}

// Probe pings once and updates the monitor.
func (p *Prober) Probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.pinger.Ping(probeCtx)
	if err != nil && ctx.Err() != nil {
		return
	}
	if err != nil {
		logger.WithComponent("connectivity").Debugf("probe failed: %v", err)
	}
	p.monitor.SetOnline(err == nil)
}

// Run probes immediately and then on every interval until ctx is cancelled.
func (p *Prober) Run(ctx context.Context) {
	ticker := p.clock.Ticker(p.interval)
	defer ticker.Stop()

	p.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.WithComponent("connectivity").Info("prober stopped")
			return
		case <-ticker.C:
			p.Probe(ctx)
		}
	}
}
