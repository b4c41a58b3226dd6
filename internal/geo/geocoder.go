// Package geo resolves address queries to coordinates through a
// Nominatim-compatible endpoint, with a process-lifetime memoized cache.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Point is a resolved coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Geocoder looks up coordinates for address queries. Results are
// memoized for the process lifetime, and failed lookups are cached as
// nil so a bad address is never retried on every call. The geocoder
// never falls back to a hardcoded coordinate; "no geocode" is a nil
// result and the caller decides how to degrade.
type Geocoder struct {
	client    *http.Client
	baseURL   string
	userAgent string
	limiter   *rate.Limiter

	mu    sync.Mutex
	cache map[string]*Point
}

// Config holds geocoder settings.
type Config struct {
	// BaseURL of a Nominatim-compatible search endpoint.
	BaseURL string
	// MinDelay between consecutive external lookups.
	MinDelay time.Duration
	// UserAgent sent with lookups (public Nominatim requires one).
	UserAgent string
}

// NewGeocoder creates a geocoder with an empty cache.
func NewGeocoder(cfg Config) *Geocoder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://nominatim.openstreetmap.org/search"
	}
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "go-sublets/1.0"
	}
	return &Geocoder{
		client:    &http.Client{Timeout: 15 * time.Second},
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		limiter:   rate.NewLimiter(rate.Every(cfg.MinDelay), 1),
		cache:     make(map[string]*Point),
	}
}

// Geocode resolves an address query. Returns nil (with nil error) when
// the lookup found nothing or previously failed for the same address.
func (g *Geocoder) Geocode(ctx context.Context, query string) (*Point, error) {
	key := cacheKey(query)
	if key == "" {
		return nil, nil
	}

	g.mu.Lock()
	if p, ok := g.cache[key]; ok {
		g.mu.Unlock()
		return p, nil
	}
	g.mu.Unlock()

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("geocode rate limit: %w", err)
	}

	p, err := g.lookup(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		// Cache the failure too; the same bad address should not incur
		// an external call per ingestion.
		g.store(key, nil)
		return nil, nil
	}

	g.store(key, p)
	return p, nil
}

// CacheSize reports the number of memoized lookups.
func (g *Geocoder) CacheSize() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.cache)
}

func (g *Geocoder) store(key string, p *Point) {
	g.mu.Lock()
	g.cache[key] = p
	g.mu.Unlock()
}

func cacheKey(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

func (g *Geocoder) lookup(ctx context.Context, query string) (*Point, error) {
	u := g.baseURL + "?" + url.Values{
		"q":      {query},
		"format": {"json"},
		"limit":  {"1"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var results []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no results for %q", query)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("parse lat: %w", err)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("parse lon: %w", err)
	}

	return &Point{Lat: lat, Lng: lng}, nil
}
