package rating

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/park285/Cheese-Othello/internal/domain"
)

func newTestStore(t *testing.T, repo Repository) *Store {
	t.Helper()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(repo, WithClock(func() time.Time { return at }))
	t.Cleanup(s.Close)
	return s
}

func TestBlackWinUpdatesBothPlayers(t *testing.T) {
	s := newTestStore(t, NewMemoryRepository())
	s.RecordResult("black", domain.OutcomeWin, 40, 24)
	s.RecordResult("white", domain.OutcomeLoss, 24, 40)

	b, ok := s.Get("black")
	if !ok || b.Rating != 1015 || b.Wins != 1 || b.GamesPlayed != 1 || b.PointsScored != 40 || b.PointsConceded != 24 {
		t.Fatalf("black record: %+v", b)
	}
	w, ok := s.Get("white")
	if !ok || w.Rating != 990 || w.Losses != 1 || w.GamesPlayed != 1 {
		t.Fatalf("white record: %+v", w)
	}
}

func TestLossFloorAndTie(t *testing.T) {
	s := newTestStore(t, NewMemoryRepository())
	for i := 0; i < 100; i++ {
		s.RecordResult("unlucky", domain.OutcomeLoss, 10, 54)
	}
	r, _ := s.Get("unlucky")
	if r.Rating != RatingFloor {
		t.Fatalf("rating floor: got %d", r.Rating)
	}
	if r.GamesPlayed != 100 || r.Streak != 100 || r.StreakType != domain.OutcomeLoss {
		t.Fatalf("counters: %+v", r)
	}
	s.RecordResult("even", domain.OutcomeTie, 32, 32)
	e, _ := s.Get("even")
	if e.Rating != DefaultRating || e.Ties != 1 || e.GamesPlayed != 1 {
		t.Fatalf("tie record: %+v", e)
	}
}

func TestLossNeverRaisesBelowFloorRating(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		before, after, delta int
	}{
		{before: 60, after: 60, delta: 0},
		{before: 100, after: 100, delta: 0},
		{before: 105, after: 100, delta: -5},
		{before: 1000, after: 990, delta: -10},
	}
	for _, tc := range cases {
		rec, delta := applyResult(&domain.RatingRecord{Name: "x", Rating: tc.before}, "x", domain.OutcomeLoss, 10, 54, at)
		if rec.Rating != tc.after || delta != tc.delta {
			t.Fatalf("loss from %d: got rating=%d delta=%d want %d/%d", tc.before, rec.Rating, delta, tc.after, tc.delta)
		}
	}
}

func TestRecordResultIgnoresBadInput(t *testing.T) {
	s := newTestStore(t, NewMemoryRepository())
	s.RecordResult("  ", domain.OutcomeWin, 1, 0)
	s.RecordResult("x", domain.Outcome("forfeit"), 1, 0)
	if got := s.TopRatings(0); len(got) != 0 {
		t.Fatalf("bad input recorded: %+v", got)
	}
}

func TestTopRatingsOrder(t *testing.T) {
	s := newTestStore(t, NewMemoryRepository())
	s.RecordResult("carol", domain.OutcomeWin, 1, 0)
	s.RecordResult("alice", domain.OutcomeWin, 1, 0)
	s.RecordResult("bob", domain.OutcomeTie, 1, 1)
	s.RecordResult("dave", domain.OutcomeLoss, 0, 1)
	got := s.TopRatings(3)
	want := []string{"alice", "carol", "bob"}
	if len(got) != len(want) {
		t.Fatalf("TopRatings(3): %d records", len(got))
	}
	for i := range want {
		if got[i].Name != want[i] {
			t.Fatalf("position %d: got %s want %s", i, got[i].Name, want[i])
		}
	}
	if all := s.TopRatings(0); len(all) != 4 || all[3].Name != "dave" {
		t.Fatalf("TopRatings(0): %+v", all)
	}
}

func TestPersistAndReload(t *testing.T) {
	repo := NewMemoryRepository()
	s := newTestStore(t, repo)
	s.RecordResult("alice", domain.OutcomeWin, 33, 31)
	s.RecordResult("alice", domain.OutcomeWin, 40, 24)
	s.Close()

	reloaded := newTestStore(t, repo)
	if err := reloaded.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	r, ok := reloaded.Get("alice")
	if !ok || r.Rating != 1030 || r.Wins != 2 || r.PointsScored != 73 {
		t.Fatalf("reloaded record: %+v", r)
	}
}

type failingRepo struct {
	mu    sync.Mutex
	calls int
}

func (f *failingRepo) LoadAll(context.Context) ([]*domain.RatingRecord, error) {
	return nil, errors.New("db down")
}

func (f *failingRepo) Upsert(context.Context, *domain.RatingRecord) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return errors.New("db down")
}

func (f *failingRepo) Close() error { return nil }

func TestPersistFailureKeepsMemory(t *testing.T) {
	repo := &failingRepo{}
	s := newTestStore(t, repo)
	if err := s.Load(context.Background()); err == nil {
		t.Fatalf("expected load error")
	}
	s.RecordResult("alice", domain.OutcomeWin, 1, 0)
	s.Flush()
	r, ok := s.Get("alice")
	if !ok || r.Rating != 1015 {
		t.Fatalf("memory lost after persist failure: %+v", r)
	}
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if repo.calls == 0 {
		t.Fatalf("repository was never called")
	}
}

type slowRepo struct {
	memrepo
	gate chan struct{}
}

func (s *slowRepo) Upsert(ctx context.Context, rec *domain.RatingRecord) error {
	<-s.gate
	return s.memrepo.Upsert(ctx, rec)
}

func TestRecordResultDoesNotBlockOnRepository(t *testing.T) {
	repo := &slowRepo{memrepo: memrepo{records: map[string]*domain.RatingRecord{}}, gate: make(chan struct{})}
	s := newTestStore(t, repo)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			s.RecordResult("alice", domain.OutcomeWin, 1, 0)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("RecordResult blocked on a stalled repository")
	}
	close(repo.gate)
	s.Close()
	recs, _ := repo.LoadAll(context.Background())
	if len(recs) != 1 || recs[0].Wins != 50 {
		t.Fatalf("latest value not persisted: %+v", recs)
	}
}
