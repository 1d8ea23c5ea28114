package rating

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/park285/Cheese-Othello/internal/domain"
)

// memrepo keeps records in process memory; used when no database is configured.
type memrepo struct {
	mu      sync.RWMutex
	records map[string]*domain.RatingRecord
	upserts int
}

func NewMemoryRepository() Repository {
	return &memrepo{records: make(map[string]*domain.RatingRecord)}
}

func (m *memrepo) LoadAll(ctx context.Context) ([]*domain.RatingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.RatingRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memrepo) Upsert(ctx context.Context, rec *domain.RatingRecord) error {
	if rec == nil {
		return ErrNilRecord
	}
	m.mu.Lock()
	m.records[strings.TrimSpace(rec.Name)] = rec.Clone()
	m.upserts++
	m.mu.Unlock()
	return nil
}

func (m *memrepo) Close() error { return nil }
