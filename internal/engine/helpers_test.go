package engine

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bassista/notesync/internal/backup"
	"github.com/bassista/notesync/internal/editor"
	"github.com/bassista/notesync/internal/remote"
	"github.com/bassista/notesync/internal/status"
	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

const waitFor = time.Second

// fakeRemote records writes. When gate is set, Patch blocks until it is closed.
type fakeRemote struct {
	mu      sync.Mutex
	patches []string
	notes   map[string]string
	err     error
	panics  bool
	gate    chan struct{}
	entered chan struct{}

	fetchGate    chan struct{}
	fetchEntered chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{notes: map[string]string{}}
}

func (f *fakeRemote) Patch(ctx context.Context, path, content string) error {
	f.mu.Lock()
	gate, entered, err, panics := f.gate, f.entered, f.err, f.panics
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if panics {
		panic("boom")
	}
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, content)
	f.notes[path] = content
	return nil
}

func (f *fakeRemote) Fetch(ctx context.Context, path string) (remote.Note, error) {
	f.mu.Lock()
	gate, entered := f.fetchGate, f.fetchEntered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return remote.Note{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return remote.Note{}, f.err
	}
	content, ok := f.notes[path]
	if !ok {
		return remote.Note{}, &remote.HTTPError{StatusCode: 404}
	}
	return remote.Note{Path: path, Content: content}, nil
}

func (f *fakeRemote) Ping(context.Context) error {
	return nil
}

func (f *fakeRemote) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// hold makes the next writes block until the returned release func is called.
func (f *fakeRemote) hold() (entered <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	f.entered = make(chan struct{}, 8)
	gate := f.gate
	return f.entered, func() { close(gate) }
}

// holdFetch makes the next reads block until the returned release func is called.
func (f *fakeRemote) holdFetch() (entered <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchGate = make(chan struct{})
	f.fetchEntered = make(chan struct{}, 8)
	gate := f.fetchGate
	return f.fetchEntered, func() { close(gate) }
}

func (f *fakeRemote) patchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.patches)
}

func (f *fakeRemote) lastPatch() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.patches) == 0 {
		return ""
	}
	return f.patches[len(f.patches)-1]
}

type fakeConn struct {
	online atomic.Bool
}

func newFakeConn() *fakeConn {
	c := &fakeConn{}
	c.online.Store(true)
	return c
}

func (c *fakeConn) Online() bool { return c.online.Load() }

var _ remote.Client = (*fakeRemote)(nil)

type harness struct {
	clock   *clock.Mock
	remote  *fakeRemote
	conn    *fakeConn
	buf     *editor.Buffer
	repo    *backup.MemoryRepository
	backups *backup.Store
	bus     *status.Bus
	session *Session
}

func newHarness(t *testing.T, baseline string) *harness {
	t.Helper()
	h := &harness{
		clock:  clock.NewMock(),
		remote: newFakeRemote(),
		conn:   newFakeConn(),
		buf:    editor.NewBuffer(baseline),
		repo:   backup.NewMemoryRepository(),
		bus:    status.NewBus(),
	}
	h.clock.Set(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	h.backups = backup.NewStore(h.repo, h.clock, time.Second)
	h.session = NewSession("notes/today.md", h.buf, &baseline, h.deps(), DefaultOptions())
	h.buf.OnChange(h.session.NoteActivity)
	t.Cleanup(func() { _ = h.session.Close(context.Background()) })
	return h
}

func (h *harness) deps() Deps {
	return Deps{
		Remote:       h.remote,
		Backups:      h.backups,
		Connectivity: h.conn,
		Status:       h.bus,
		Clock:        h.clock,
	}
}

func (h *harness) backup(t *testing.T) *backup.Record {
	t.Helper()
	rec, err := h.repo.Get(context.Background(), h.session.Path())
	require.NoError(t, err)
	return rec
}

func chars(n int) string {
	return strings.Repeat("x", n)
}
