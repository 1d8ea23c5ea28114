package rating

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/park285/Cheese-Othello/internal/domain"
	"github.com/park285/Cheese-Othello/internal/obslog"
	"go.uber.org/zap"
)

const defaultPersistTimeout = 5 * time.Second

// Store owns the rating map. RecordResult mutates memory synchronously; a single worker
// persists the latest copy of each touched record. Pending writes are coalesced by name
// so a slow repository never blocks a room and never loses the newest value.
type Store struct {
	mu      sync.RWMutex
	records map[string]*domain.RatingRecord

	repo    Repository
	now     func() time.Time
	timeout time.Duration

	pendMu  sync.Mutex
	pending map[string]*domain.RatingRecord
	wake    chan struct{}
	flushMu sync.Mutex

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type StoreOption func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithPersistTimeout bounds each repository write.
func WithPersistTimeout(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func NewStore(repo Repository, opts ...StoreOption) *Store {
	if repo == nil {
		repo = NewMemoryRepository()
	}
	s := &Store{
		records: make(map[string]*domain.RatingRecord),
		repo:    repo,
		now:     time.Now,
		timeout: defaultPersistTimeout,
		pending: make(map[string]*domain.RatingRecord),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	go s.persistLoop()
	return s
}

// Load replaces the in-memory map with the repository contents.
func (s *Store) Load(ctx context.Context) error {
	recs, err := s.repo.LoadAll(ctx)
	if err != nil {
		return err
	}
	m := make(map[string]*domain.RatingRecord, len(recs))
	for _, r := range recs {
		if r == nil || strings.TrimSpace(r.Name) == "" {
			continue
		}
		m[r.Name] = r.Clone()
	}
	s.mu.Lock()
	s.records = m
	s.mu.Unlock()
	obslog.L().Info("rating_load", zap.Int("records", len(m)))
	return nil
}

// RecordResult applies one player's result and queues the record for persistence.
func (s *Store) RecordResult(name string, outcome domain.Outcome, scored, conceded int) {
	name = strings.TrimSpace(name)
	if name == "" || !outcome.Valid() {
		obslog.L().Warn("rating_record_skipped", zap.String("name", name), zap.String("outcome", string(outcome)))
		return
	}
	s.mu.Lock()
	rec, delta := applyResult(s.records[name], name, outcome, scored, conceded, s.now())
	s.records[name] = rec
	snapshot := rec.Clone()
	s.mu.Unlock()

	obslog.L().Info("rating_update",
		zap.String("name", name),
		zap.String("outcome", string(outcome)),
		zap.Int("rating", snapshot.Rating),
		zap.Int("delta", delta),
	)
	s.enqueue(snapshot)
}

// Get returns a copy of one record.
func (s *Store) Get(name string) (*domain.RatingRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[strings.TrimSpace(name)]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// TopRatings returns up to n records by rating descending, ties broken by name.
func (s *Store) TopRatings(n int) []*domain.RatingRecord {
	s.mu.RLock()
	out := make([]*domain.RatingRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Clone())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func (s *Store) enqueue(rec *domain.RatingRecord) {
	s.pendMu.Lock()
	s.pending[rec.Name] = rec
	s.pendMu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Store) takePending() []*domain.RatingRecord {
	s.pendMu.Lock()
	defer s.pendMu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	out := make([]*domain.RatingRecord, 0, len(s.pending))
	for _, r := range s.pending {
		out = append(out, r)
	}
	s.pending = make(map[string]*domain.RatingRecord)
	return out
}

func (s *Store) persistLoop() {
	defer close(s.done)
	for {
		select {
		case <-s.wake:
			s.flush()
		case <-s.stop:
			s.flush()
			return
		}
	}
}

func (s *Store) flush() {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()
	for _, rec := range s.takePending() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		err := s.repo.Upsert(ctx, rec)
		cancel()
		if err != nil {
			obslog.L().Error("rating_persist_error", zap.String("name", rec.Name), zap.Error(err))
			continue
		}
		obslog.L().Debug("rating_persist", zap.String("name", rec.Name), zap.Int("rating", rec.Rating))
	}
}

// Flush writes every pending record before returning. Intended for shutdown and tests.
func (s *Store) Flush() { s.flush() }

// Close drains pending writes and stops the worker. The repository is left open.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
	})
}
