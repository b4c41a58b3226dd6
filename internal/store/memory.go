package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/project-tktt/go-sublets/internal/domain"
)

// MemoryStore is an in-memory Store used in tests and for local runs
// without a database. Records come back in insertion order, matching the
// stable ordering the Postgres store provides.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*domain.ListingRecord
	order   map[string]int
	seq     int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*domain.ListingRecord),
		order:   make(map[string]int),
	}
}

func (s *MemoryStore) Upsert(_ context.Context, rec *domain.ListingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *rec
	clone.LastParsedAt = time.Now()
	if existing, ok := s.records[rec.ID]; ok {
		// status, needs_review and created_at are operator-owned.
		clone.Status = existing.Status
		clone.NeedsReview = existing.NeedsReview
		clone.CreatedAt = existing.CreatedAt
	} else {
		if clone.Status == "" {
			clone.Status = domain.StatusAvailable
		}
		clone.CreatedAt = time.Now()
		s.order[rec.ID] = s.seq
		s.seq++
	}
	s.records[rec.ID] = &clone
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*domain.ListingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[id]; ok {
		clone := *rec
		return &clone, nil
	}
	return nil, nil
}

func (s *MemoryStore) GetBySourceURL(ctx context.Context, sourceURL string) (*domain.ListingRecord, error) {
	if sourceURL == "" {
		return nil, nil
	}
	return s.findFirst(func(r *domain.ListingRecord) bool { return r.SourceURL == sourceURL })
}

func (s *MemoryStore) GetByContentHash(ctx context.Context, hash string) (*domain.ListingRecord, error) {
	if hash == "" {
		return nil, nil
	}
	return s.findFirst(func(r *domain.ListingRecord) bool { return r.ContentHash == hash })
}

func (s *MemoryStore) findFirst(match func(*domain.ListingRecord) bool) (*domain.ListingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *domain.ListingRecord
	for _, rec := range s.records {
		if !match(rec) {
			continue
		}
		if best == nil || s.order[rec.ID] < s.order[best.ID] {
			best = rec
		}
	}
	if best == nil {
		return nil, nil
	}
	clone := *best
	return &clone, nil
}

func (s *MemoryStore) List(_ context.Context) ([]*domain.ListingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]*domain.ListingRecord, 0, len(s.records))
	for _, rec := range s.records {
		clone := *rec
		records = append(records, &clone)
	}
	sort.Slice(records, func(i, j int) bool {
		return s.order[records[i].ID] < s.order[records[j].ID]
	})
	return records, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, status domain.ListingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[id]; ok {
		rec.Status = status
	}
	return nil
}

func (s *MemoryStore) DeleteBatch(_ context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for _, id := range ids {
		if _, ok := s.records[id]; ok {
			delete(s.records, id)
			delete(s.order, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) Close() error { return nil }
