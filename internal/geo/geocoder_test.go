package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGeocoder(t *testing.T, handler http.HandlerFunc) (*Geocoder, *int64) {
	t.Helper()
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	g := NewGeocoder(Config{
		BaseURL:   srv.URL,
		MinDelay:  time.Millisecond,
		UserAgent: "go-sublets-test",
	})
	return g, &calls
}

func TestGeocodeMemoized(t *testing.T) {
	t.Parallel()
	g, calls := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Dizengoff 100, Tel Aviv", r.URL.Query().Get("q"))
		w.Write([]byte(`[{"lat": "32.0781", "lon": "34.7740"}]`))
	})

	ctx := context.Background()
	p, err := g.Geocode(ctx, "Dizengoff 100, Tel Aviv")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.InDelta(t, 32.0781, p.Lat, 0.0001)
	assert.InDelta(t, 34.7740, p.Lng, 0.0001)

	// Same address again, with different casing and spacing: served from
	// cache, no second external call.
	p2, err := g.Geocode(ctx, "  dizengoff 100, tel aviv ")
	require.NoError(t, err)
	require.NotNil(t, p2)
	assert.Equal(t, *p, *p2)

	assert.Equal(t, int64(1), atomic.LoadInt64(calls))
	assert.Equal(t, 1, g.CacheSize())
}

func TestGeocodeNullResultCached(t *testing.T) {
	t.Parallel()
	g, calls := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		p, err := g.Geocode(ctx, "no such street 999")
		require.NoError(t, err)
		assert.Nil(t, p)
	}

	// The failed lookup is memoized like a hit.
	assert.Equal(t, int64(1), atomic.LoadInt64(calls))
	assert.Equal(t, 1, g.CacheSize())
}

func TestGeocodeServerErrorCached(t *testing.T) {
	t.Parallel()
	g, calls := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	ctx := context.Background()
	p, err := g.Geocode(ctx, "Allenby 40")
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = g.Geocode(ctx, "Allenby 40")
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Equal(t, int64(1), atomic.LoadInt64(calls))
}

func TestGeocodeEmptyQuery(t *testing.T) {
	t.Parallel()
	g, calls := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"lat": "1", "lon": "1"}]`))
	})

	p, err := g.Geocode(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Equal(t, int64(0), atomic.LoadInt64(calls))
	assert.Equal(t, 0, g.CacheSize())
}

func TestGeocodeCancelledContextNotCached(t *testing.T) {
	t.Parallel()
	g, _ := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"lat": "1", "lon": "1"}]`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Geocode(ctx, "Herzl 1")
	assert.Error(t, err)
	// A context failure is the caller's problem, not the address's; it
	// must not poison the cache.
	assert.Equal(t, 0, g.CacheSize())
}
