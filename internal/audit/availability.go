// Package audit periodically re-checks the source pages of available
// listings and expires the ones whose posts are gone.
package audit

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/project-tktt/go-sublets/internal/domain"
	"github.com/project-tktt/go-sublets/internal/store"
)

// Markers that source sites render on removed posts. Matched against
// the page body, lowercased.
var removedMarkers = []string{
	"content isn't available",
	"this content isn't available right now",
	"post has been removed",
	"הדף לא זמין",
	"התוכן אינו זמין",
}

// Config tunes the availability auditor.
type Config struct {
	UserAgent    string
	RequestDelay time.Duration
	MaxAge       time.Duration // listings older than this expire without a check
}

// Indexer propagates a status change to the secondary search index so
// expired listings stop surfacing in search.
type Indexer interface {
	Index(ctx context.Context, rec *domain.ListingRecord) error
}

// Auditor walks available listings and marks dead ones expired.
type Auditor struct {
	store     store.Store
	indexer   Indexer
	collector *colly.Collector
	maxAge    time.Duration
}

// NewAuditor creates an auditor over the given store. The indexer is
// optional; without one only the store sees the status change.
func NewAuditor(s store.Store, idx Indexer, cfg Config) *Auditor {
	c := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	if cfg.RequestDelay > 0 {
		c.Limit(&colly.LimitRule{
			DomainGlob: "*",
			Delay:      cfg.RequestDelay,
		})
	}
	maxAge := cfg.MaxAge
	if maxAge == 0 {
		maxAge = 60 * 24 * time.Hour
	}
	return &Auditor{store: s, indexer: idx, collector: c, maxAge: maxAge}
}

// Result summarizes one audit run.
type Result struct {
	Checked int `json:"checked"`
	Expired int `json:"expired"`
}

// Run audits every available listing once. A listing expires when it is
// older than MaxAge, or when its source page is gone or shows a
// removed-post marker. Listings without a source URL age out only.
func (a *Auditor) Run(ctx context.Context) (*Result, error) {
	records, err := a.store.List(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, rec := range records {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if rec.Status != domain.StatusAvailable {
			continue
		}
		result.Checked++

		if time.Since(rec.CreatedAt) > a.maxAge {
			a.expire(ctx, rec, result, "aged out")
			continue
		}
		if rec.SourceURL == "" {
			continue
		}
		if gone := a.checkGone(rec.SourceURL); gone {
			a.expire(ctx, rec, result, "source page gone")
		}
	}
	return result, nil
}

func (a *Auditor) expire(ctx context.Context, rec *domain.ListingRecord, result *Result, reason string) {
	if err := a.store.UpdateStatus(ctx, rec.ID, domain.StatusExpired); err != nil {
		log.Printf("audit: expire %s failed: %v", rec.ID, err)
		return
	}
	log.Printf("audit: expired %s (%s)", rec.ID, reason)
	result.Expired++

	if a.indexer != nil {
		rec.Status = domain.StatusExpired
		if err := a.indexer.Index(ctx, rec); err != nil {
			log.Printf("audit: search index update failed for %s: %v", rec.ID, err)
		}
	}
}

// checkGone fetches the source page and reports whether the post no
// longer exists. Transient failures (network, 5xx) report false: a
// listing is never expired on an inconclusive check.
func (a *Auditor) checkGone(sourceURL string) bool {
	var gone bool
	var statusCode int

	collector := a.collector.Clone()

	collector.OnHTML("body", func(el *colly.HTMLElement) {
		body := strings.ToLower(el.Text)
		for _, marker := range removedMarkers {
			if strings.Contains(body, marker) {
				gone = true
				return
			}
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			statusCode = r.StatusCode
		}
	})

	if err := collector.Visit(sourceURL); err != nil {
		// Malformed or unreachable URL; treat as inconclusive.
		return statusCode == 404 || statusCode == 410
	}

	if statusCode == 404 || statusCode == 410 {
		return true
	}
	return gone
}
