// Package images resolves candidate image URLs from scraped posts into
// CDN-safe URLs. Candidates may include plain page links; those are
// fetched and mined for an og:image tag.
package images

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// Resolver turns candidate URLs into directly-loadable image URLs.
type Resolver struct {
	client        *http.Client
	maxCandidates int
}

// NewResolver creates a resolver. maxCandidates bounds the number of
// candidates inspected per post.
func NewResolver(maxCandidates int) *Resolver {
	if maxCandidates <= 0 {
		maxCandidates = 8
	}
	return &Resolver{
		client:        &http.Client{Timeout: 10 * time.Second},
		maxCandidates: maxCandidates,
	}
}

// Resolve checks all candidates concurrently and returns the resolved
// image URLs in candidate order. Each candidate succeeds or drops out
// individually; one bad link never fails the rest.
func (r *Resolver) Resolve(ctx context.Context, candidates []string) []string {
	if len(candidates) > r.maxCandidates {
		candidates = candidates[:r.maxCandidates]
	}

	resolved := make([]string, len(candidates))
	var wg sync.WaitGroup
	for i, candidate := range candidates {
		wg.Add(1)
		go func(i int, candidate string) {
			defer wg.Done()
			resolved[i] = r.resolveOne(ctx, candidate)
		}(i, candidate)
	}
	wg.Wait()

	var result []string
	for _, u := range resolved {
		if u != "" {
			result = append(result, u)
		}
	}
	return result
}

func (r *Resolver) resolveOne(ctx context.Context, candidate string) string {
	u, err := url.Parse(candidate)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return ""
	}

	if hasImageExtension(u.Path) {
		return candidate
	}

	// Not an obvious image URL; fetch the page and look for og:image.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate, nil)
	if err != nil {
		return ""
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "image/") {
		return candidate
	}
	if !strings.HasPrefix(contentType, "text/html") {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return ""
	}
	og, _ := doc.Find(`meta[property="og:image"]`).Attr("content")
	if og == "" {
		og, _ = doc.Find(`meta[name="twitter:image"]`).Attr("content")
	}
	if og == "" || !strings.HasPrefix(og, "https://") {
		return ""
	}
	return og
}

func hasImageExtension(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
