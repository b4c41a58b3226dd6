// Package store persists listing records. The live pipeline only ever
// upserts; deletes happen exclusively through the offline duplicate
// resolver, in bounded-size batches.
package store

import (
	"context"

	"github.com/project-tktt/go-sublets/internal/domain"
)

// Store is the listing persistence contract. Lookup methods return
// (nil, nil) when no record matches.
type Store interface {
	Upsert(ctx context.Context, rec *domain.ListingRecord) error
	GetByID(ctx context.Context, id string) (*domain.ListingRecord, error)
	GetBySourceURL(ctx context.Context, sourceURL string) (*domain.ListingRecord, error)
	GetByContentHash(ctx context.Context, hash string) (*domain.ListingRecord, error)
	List(ctx context.Context) ([]*domain.ListingRecord, error)
	UpdateStatus(ctx context.Context, id string, status domain.ListingStatus) error
	DeleteBatch(ctx context.Context, ids []string) (int, error)
	Close() error
}
