// Package dedup implements the offline duplicate-resolution pass. It
// requires a full-collection scan, so it runs on demand or on a
// schedule, never inline with request handling.
package dedup

import (
	"context"
	"fmt"
	"log"

	"github.com/project-tktt/go-sublets/internal/domain"
	"github.com/project-tktt/go-sublets/internal/store"
)

// Scoring weights. The relative ordering is the contract: review status
// and geocoding presence outrank hash/URL presence. The exact numbers
// are an implementation detail.
const (
	scoreNotNeedsReview = 2
	scoreHasCoordinates = 2
	scoreHasContentHash = 1
	scoreHasSourceURL   = 1
)

// defaultDeleteBatchSize keeps delete statements under the backing
// store's per-transaction item limit.
const defaultDeleteBatchSize = 25

// Indexer removes deleted records from the secondary search index so it
// does not keep serving pruned duplicates.
type Indexer interface {
	Delete(ctx context.Context, ids []string) error
}

// Resolver groups persisted records that refer to the same underlying
// post and prunes the inferior members of each group.
type Resolver struct {
	store           store.Store
	indexer         Indexer
	deleteBatchSize int
}

// NewResolver creates a resolver over the given store. The indexer is
// optional; without one only the store is pruned.
func NewResolver(s store.Store, deleteBatchSize int, idx Indexer) *Resolver {
	if deleteBatchSize <= 0 {
		deleteBatchSize = defaultDeleteBatchSize
	}
	return &Resolver{store: s, indexer: idx, deleteBatchSize: deleteBatchSize}
}

// Group is one set of duplicate records: the survivor, the members to
// delete, and the grouping key (source URL or content hash).
type Group struct {
	Key    string   `json:"key"`
	Keep   string   `json:"keep"`
	Delete []string `json:"delete"`
	Size   int      `json:"size"`
}

// Plan is the read-only dry run: it computes every duplicate group
// without touching the store.
func (r *Resolver) Plan(ctx context.Context) ([]Group, error) {
	records, err := r.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return buildGroups(records), nil
}

// Apply executes the plan, deleting inferior duplicates in bounded-size
// batches, and returns the total number of records removed.
func (r *Resolver) Apply(ctx context.Context) (int, error) {
	groups, err := r.Plan(ctx)
	if err != nil {
		return 0, err
	}

	var ids []string
	for _, g := range groups {
		ids = append(ids, g.Delete...)
	}

	deleted := 0
	for start := 0; start < len(ids); start += r.deleteBatchSize {
		end := start + r.deleteBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]
		n, err := r.store.DeleteBatch(ctx, batch)
		if err != nil {
			return deleted, fmt.Errorf("delete batch: %w", err)
		}
		deleted += n

		if r.indexer != nil {
			if err := r.indexer.Delete(ctx, batch); err != nil {
				log.Printf("search index cleanup failed for %d records: %v", len(batch), err)
			}
		}
	}

	if deleted > 0 {
		log.Printf("duplicate resolution removed %d of %d records across %d groups",
			deleted, len(ids), len(groups))
	}
	return deleted, nil
}

// buildGroups groups records by source URL and, for records without one,
// by content hash. Groups of size 1 are not duplicates. Iteration
// follows store order so tie-breaks are stable across runs.
func buildGroups(records []*domain.ListingRecord) []Group {
	type bucket struct {
		key     string
		members []*domain.ListingRecord
	}
	var buckets []*bucket
	index := make(map[string]*bucket)

	add := func(key string, rec *domain.ListingRecord) {
		b, ok := index[key]
		if !ok {
			b = &bucket{key: key}
			index[key] = b
			buckets = append(buckets, b)
		}
		b.members = append(b.members, rec)
	}

	for _, rec := range records {
		switch {
		case rec.SourceURL != "":
			add("url:"+rec.SourceURL, rec)
		case rec.ContentHash != "":
			add("hash:"+rec.ContentHash, rec)
		}
	}

	var groups []Group
	for _, b := range buckets {
		if len(b.members) < 2 {
			continue
		}

		survivor := b.members[0]
		best := Score(survivor)
		for _, rec := range b.members[1:] {
			// Strictly greater: equal scores resolve to the
			// first-encountered record.
			if s := Score(rec); s > best {
				survivor, best = rec, s
			}
		}

		g := Group{Key: b.key, Keep: survivor.ID, Size: len(b.members)}
		for _, rec := range b.members {
			if rec.ID != survivor.ID {
				g.Delete = append(g.Delete, rec.ID)
			}
		}
		groups = append(groups, g)
	}
	return groups
}

// Score rates one group member; the highest-scoring member survives.
func Score(rec *domain.ListingRecord) int {
	score := 0
	if !rec.NeedsReview {
		score += scoreNotNeedsReview
	}
	if rec.HasCoordinates() {
		score += scoreHasCoordinates
	}
	if rec.ContentHash != "" {
		score += scoreHasContentHash
	}
	if rec.SourceURL != "" {
		score += scoreHasSourceURL
	}
	return score
}
