package room

import (
	"sync"
	"testing"
	"time"

	"github.com/park285/Cheese-Othello/internal/domain"
	"github.com/park285/Cheese-Othello/internal/othello"
	"github.com/park285/Cheese-Othello/pkg/othellodto"
)

type sent struct {
	to []string
	ev othellodto.Event
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []sent
}

func (c *captureNotifier) Notify(to []string, ev othellodto.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sent{to: append([]string(nil), to...), ev: ev})
}

func (c *captureNotifier) types() []othellodto.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]othellodto.EventType, len(c.sent))
	for i, s := range c.sent {
		out[i] = s.ev.EventType()
	}
	return out
}

func (c *captureNotifier) last() sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return sent{}
	}
	return c.sent[len(c.sent)-1]
}

func (c *captureNotifier) reset() {
	c.mu.Lock()
	c.sent = nil
	c.mu.Unlock()
}

type recordCall struct {
	name     string
	outcome  domain.Outcome
	scored   int
	conceded int
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordCall
}

func (f *fakeRecorder) RecordResult(name string, outcome domain.Outcome, scored, conceded int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordCall{name, outcome, scored, conceded})
}

func (f *fakeRecorder) snapshot() []recordCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordCall(nil), f.calls...)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	reg   *Registry
	notes *captureNotifier
	rec   *fakeRecorder
	clock *fakeClock
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{notes: &captureNotifier{}, rec: &fakeRecorder{}, clock: newFakeClock()}
	opts.Notifier = f.notes
	opts.Recorder = f.rec
	opts.Now = f.clock.Now
	if opts.SweepInterval == 0 {
		opts.SweepInterval = -1
	}
	f.reg = NewRegistry(opts)
	t.Cleanup(f.reg.Close)
	return f
}

// startGame creates a room with alice (Black) and bob (White) seated.
func (f *fixture) startGame(t *testing.T) *Room {
	t.Helper()
	rm, err := f.reg.Create("id-alice", "alice")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, _, err := f.reg.Join(rm.ID(), "id-bob", "bob", false); err != nil {
		t.Fatalf("Join: %v", err)
	}
	return rm
}

// installBoard replaces the room board; tests use it to reach late-game positions.
func installBoard(t *testing.T, rm *Room, layout string, turn othello.Color) {
	t.Helper()
	b, err := othello.ParseBoard(layout)
	if err != nil {
		t.Fatalf("ParseBoard: %v", err)
	}
	rm.mu.Lock()
	rm.board = b
	rm.turn = turn
	rm.mu.Unlock()
}
