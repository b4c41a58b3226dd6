package dedup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-tktt/go-sublets/internal/domain"
	"github.com/project-tktt/go-sublets/internal/store"
)

func seed(t *testing.T, s *store.MemoryStore, recs ...*domain.ListingRecord) {
	t.Helper()
	for _, rec := range recs {
		require.NoError(t, s.Upsert(context.Background(), rec))
	}
}

func TestPlanGroupsBySourceURL(t *testing.T) {
	t.Parallel()
	s := store.NewMemoryStore()
	seed(t, s,
		&domain.ListingRecord{ID: "a", SourceURL: "https://fb.com/p/1", ContentHash: "h1"},
		&domain.ListingRecord{
			ID: "b", SourceURL: "https://fb.com/p/1", ContentHash: "h2",
			Lat: domain.Float64Ptr(32.07), Lng: domain.Float64Ptr(34.77),
		},
		&domain.ListingRecord{ID: "c", SourceURL: "https://fb.com/p/2", ContentHash: "h3"},
	)

	groups, err := NewResolver(s, 0, nil).Plan(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 1)

	// b has coordinates, so it wins the group.
	assert.Equal(t, "b", groups[0].Keep)
	assert.Equal(t, []string{"a"}, groups[0].Delete)
	assert.Equal(t, 2, groups[0].Size)
}

func TestPlanURLlessRecordsGroupByHash(t *testing.T) {
	t.Parallel()
	s := store.NewMemoryStore()
	seed(t, s,
		&domain.ListingRecord{ID: "a", ContentHash: "same"},
		&domain.ListingRecord{ID: "b", ContentHash: "same"},
		&domain.ListingRecord{ID: "c", ContentHash: "other"},
		// A record with a URL never falls into a hash group, even when
		// the hash collides.
		&domain.ListingRecord{ID: "d", SourceURL: "https://fb.com/p/9", ContentHash: "same"},
	)

	groups, err := NewResolver(s, 0, nil).Plan(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "hash:same", groups[0].Key)
	assert.Equal(t, 2, groups[0].Size)
}

func TestPlanTieBreakIsFirstEncountered(t *testing.T) {
	t.Parallel()
	s := store.NewMemoryStore()
	// Identical quality: the earlier record survives, deterministically.
	seed(t, s,
		&domain.ListingRecord{ID: "first", SourceURL: "https://fb.com/p/1", ContentHash: "h"},
		&domain.ListingRecord{ID: "second", SourceURL: "https://fb.com/p/1", ContentHash: "h"},
	)

	for i := 0; i < 5; i++ {
		groups, err := NewResolver(s, 0, nil).Plan(context.Background())
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, "first", groups[0].Keep)
		assert.Equal(t, []string{"second"}, groups[0].Delete)
	}
}

func TestScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rec  domain.ListingRecord
		want int
	}{
		{"empty record", domain.ListingRecord{NeedsReview: true}, 0},
		{"clean review state only", domain.ListingRecord{}, 2},
		{
			name: "everything",
			rec: domain.ListingRecord{
				SourceURL:   "u",
				ContentHash: "h",
				Lat:         domain.Float64Ptr(1),
				Lng:         domain.Float64Ptr(1),
			},
			want: 6,
		},
		{
			name: "needs review with coordinates",
			rec: domain.ListingRecord{
				NeedsReview: true,
				Lat:         domain.Float64Ptr(1),
				Lng:         domain.Float64Ptr(1),
			},
			want: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Score(&tt.rec))
		})
	}
}

func TestApplyDeletesLosers(t *testing.T) {
	t.Parallel()
	s := store.NewMemoryStore()
	seed(t, s,
		&domain.ListingRecord{ID: "a", SourceURL: "https://fb.com/p/1", ContentHash: "h1"},
		&domain.ListingRecord{ID: "b", SourceURL: "https://fb.com/p/1", ContentHash: "h2"},
		&domain.ListingRecord{ID: "c", SourceURL: "https://fb.com/p/1", ContentHash: "h3"},
		&domain.ListingRecord{ID: "d", SourceURL: "https://fb.com/p/2", ContentHash: "h4"},
	)

	// Batch size 1 forces multiple delete round-trips.
	deleted, err := NewResolver(s, 1, nil).Apply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	remaining, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.Equal(t, "a", remaining[0].ID)
	assert.Equal(t, "d", remaining[1].ID)
}

type captureIndexer struct {
	deleted []string
}

func (c *captureIndexer) Delete(_ context.Context, ids []string) error {
	c.deleted = append(c.deleted, ids...)
	return nil
}

func TestApplyCleansSearchIndex(t *testing.T) {
	t.Parallel()
	s := store.NewMemoryStore()
	seed(t, s,
		&domain.ListingRecord{ID: "a", SourceURL: "https://fb.com/p/1", ContentHash: "h1"},
		&domain.ListingRecord{ID: "b", SourceURL: "https://fb.com/p/1", ContentHash: "h2"},
		&domain.ListingRecord{ID: "c", SourceURL: "https://fb.com/p/1", ContentHash: "h3"},
	)

	idx := &captureIndexer{}
	deleted, err := NewResolver(s, 1, idx).Apply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	// Every record pruned from the store is also pruned from the index.
	assert.ElementsMatch(t, []string{"b", "c"}, idx.deleted)
}

func TestApplyNoDuplicates(t *testing.T) {
	t.Parallel()
	s := store.NewMemoryStore()
	seed(t, s,
		&domain.ListingRecord{ID: "a", SourceURL: "https://fb.com/p/1"},
		&domain.ListingRecord{ID: "b", SourceURL: "https://fb.com/p/2"},
	)

	deleted, err := NewResolver(s, 0, nil).Apply(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
