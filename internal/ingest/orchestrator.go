// Package ingest drives batches of raw posts through
// normalize -> dedup pre-check -> extract -> geocode -> persist.
// Items are processed sequentially because the AI extraction call is
// subject to a hard external rate limit; a single item's failure never
// aborts the remaining items in the batch.
package ingest

import (
	"context"
	"fmt"
	"log"

	"github.com/project-tktt/go-sublets/internal/domain"
	"github.com/project-tktt/go-sublets/internal/extract"
	"github.com/project-tktt/go-sublets/internal/geo"
	"github.com/project-tktt/go-sublets/internal/hasher"
	"github.com/project-tktt/go-sublets/internal/normalizer"
	"github.com/project-tktt/go-sublets/internal/store"
)

// Geocoder resolves an address query to a coordinate; nil means no result.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*geo.Point, error)
}

// ImageResolver resolves candidate image URLs concurrently.
type ImageResolver interface {
	Resolve(ctx context.Context, candidates []string) []string
}

// Indexer mirrors persisted records into a secondary search index.
type Indexer interface {
	Index(ctx context.Context, rec *domain.ListingRecord) error
}

// Orchestrator sequences the ingestion pipeline for one batch at a time.
// All collaborators are injected; the geocode cache and rate limiters
// live inside the injected geocoder/extractors, not here.
type Orchestrator struct {
	store         store.Store
	ai            extract.FieldExtractor
	heuristic     extract.FieldExtractor
	geocoder      Geocoder
	images        ImageResolver
	indexer       Indexer
	norm          *normalizer.Normalizer
	parserVersion string
}

// Options configures an Orchestrator. Store and Heuristic are required;
// AI, Geocoder, Images and Indexer are optional collaborators.
type Options struct {
	Store         store.Store
	AI            extract.FieldExtractor
	Heuristic     extract.FieldExtractor
	Geocoder      Geocoder
	Images        ImageResolver
	Indexer       Indexer
	ParserVersion string
}

// NewOrchestrator validates configuration up front: a missing required
// collaborator is fatal for every batch and must surface immediately.
func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("orchestrator: store is required")
	}
	if opts.Heuristic == nil {
		return nil, fmt.Errorf("orchestrator: heuristic extractor is required")
	}
	if opts.ParserVersion == "" {
		opts.ParserVersion = "1.0"
	}
	return &Orchestrator{
		store:         opts.Store,
		ai:            opts.AI,
		heuristic:     opts.Heuristic,
		geocoder:      opts.Geocoder,
		images:        opts.Images,
		indexer:       opts.Indexer,
		norm:          normalizer.NewNormalizer(),
		parserVersion: opts.ParserVersion,
	}, nil
}

// ItemResult is the per-item outcome: a persisted id or an error.
type ItemResult struct {
	ID    string `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

// BatchResult aggregates a batch. Processed + Failed always equals the
// input length so callers can tell partial success from total failure.
type BatchResult struct {
	Success   bool         `json:"success"`
	Processed int          `json:"processed"`
	Failed    int          `json:"failed"`
	Results   []ItemResult `json:"results"`
}

// IngestBatch processes payloads sequentially. When the context expires
// mid-batch no new items are started; the in-flight item runs to
// completion and the remainder is recorded as failed.
func (o *Orchestrator) IngestBatch(ctx context.Context, payloads []map[string]any) *BatchResult {
	result := &BatchResult{Results: make([]ItemResult, 0, len(payloads))}

	for i, payload := range payloads {
		if ctx.Err() != nil {
			result.Failed++
			result.Results = append(result.Results, ItemResult{Error: "batch deadline exceeded"})
			continue
		}

		id, err := o.processItem(ctx, payload)
		if err != nil {
			log.Printf("ingest item %d failed: %v (text: %q)", i, err, previewText(payload))
			result.Failed++
			result.Results = append(result.Results, ItemResult{Error: err.Error()})
			continue
		}
		result.Processed++
		result.Results = append(result.Results, ItemResult{ID: id})
	}

	result.Success = result.Failed < len(payloads) || len(payloads) == 0
	return result
}

func (o *Orchestrator) processItem(ctx context.Context, payload map[string]any) (id string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("item panic: %v", r)
		}
	}()

	// 1. Normalize; malformed posts are permanently unprocessable.
	post, err := o.norm.Normalize(payload)
	if err != nil {
		return "", err
	}

	// 2. Pre-check by source URL. A hit is not a skip: re-ingestion
	// refreshes content, the upsert below merges instead of duplicating.
	existing, err := o.store.GetBySourceURL(ctx, post.SourceURL)
	if err != nil {
		return "", fmt.Errorf("dedup pre-check: %w", err)
	}

	// 3. Content-hash check: identical canonicalized text under a
	// different record is the duplicate resolver's problem, not worth a
	// second AI call. Posts whose text canonicalizes to nothing (photo
	// or link only) carry no hash at all; they would otherwise collapse
	// every URL-only post into one record.
	var hash string
	if hasher.Canonicalize(post.Text) != "" {
		hash = hasher.ContentHash(post.Text)
	}
	id = hasher.StableID(post)
	if existing != nil {
		id = existing.ID
	}
	if hash != "" {
		byHash, err := o.store.GetByContentHash(ctx, hash)
		if err != nil {
			return "", fmt.Errorf("content-hash check: %w", err)
		}
		if byHash != nil && byHash.ID != id {
			return byHash.ID, nil
		}
	}

	// 4. Extract: AI path when configured, heuristic fallback on any
	// AI failure.
	res := o.extractFields(ctx, post.Text, post.GroupContext)

	// 5. Geocode only with a non-empty query. On failure coordinates
	// stay null; the heuristic dictionary coordinate is a separate,
	// explicit fallback applied after.
	lat, lng := o.resolveCoordinates(ctx, res)

	var resolvedImages []string
	if o.images != nil && len(post.Images) > 0 {
		resolvedImages = o.images.Resolve(ctx, post.Images)
	}

	// 6. Upsert with merge semantics.
	rec := &domain.ListingRecord{
		ID:            id,
		SourceURL:     post.SourceURL,
		ContentHash:   hash,
		OriginalText:  post.Text,
		Price:         res.Fields.Price,
		Location:      res.Fields.Location,
		Dates:         res.Fields.Dates,
		Rooms:         res.Fields.Rooms,
		Type:          res.Fields.Type,
		Amenities:     res.Fields.Amenities,
		Images:        resolvedImages,
		Lat:           lat,
		Lng:           lng,
		ParserVersion: o.parserVersion,
	}

	prior := existing
	if prior == nil {
		if prior, err = o.store.GetByID(ctx, id); err != nil {
			return "", fmt.Errorf("load prior record: %w", err)
		}
	}
	mergeRecord(rec, prior)

	if err := o.store.Upsert(ctx, rec); err != nil {
		return "", fmt.Errorf("persist: %w", err)
	}

	if o.indexer != nil {
		if err := o.indexer.Index(ctx, rec); err != nil {
			log.Printf("search index update failed for %s: %v", rec.ID, err)
		}
	}

	return id, nil
}

// extractFields tries the AI strategy first and falls through to the
// heuristic on any failure. The heuristic never fails.
func (o *Orchestrator) extractFields(ctx context.Context, text, groupHint string) *extract.Result {
	if o.ai != nil {
		res, err := o.ai.Extract(ctx, text, groupHint)
		if err == nil && res != nil && res.Fields != nil {
			return res
		}
		if err != nil {
			log.Printf("ai extraction failed, using heuristic: %v", err)
		}
	}
	res, _ := o.heuristic.Extract(ctx, text, groupHint)
	return res
}

func (o *Orchestrator) resolveCoordinates(ctx context.Context, res *extract.Result) (*float64, *float64) {
	if o.geocoder != nil {
		if query := geocodeQuery(res.Fields.Location); query != "" {
			p, err := o.geocoder.Geocode(ctx, query)
			if err != nil {
				log.Printf("geocode failed for %q: %v", query, err)
			} else if p != nil {
				return domain.Float64Ptr(p.Lat), domain.Float64Ptr(p.Lng)
			}
		}
	}
	return res.Lat, res.Lng
}

// geocodeQuery builds the most specific query the extracted location
// supports, or "" when there is nothing to look up.
func geocodeQuery(loc *domain.Location) string {
	if loc == nil {
		return ""
	}
	switch {
	case loc.FullAddress != "":
		return loc.FullAddress
	case loc.Street != "" && loc.City != "":
		return loc.Street + ", " + loc.City
	case loc.Neighborhood != "" && loc.City != "":
		return loc.Neighborhood + ", " + loc.City
	case loc.City != "":
		return loc.City
	}
	return ""
}

// mergeRecord folds a prior record into a freshly-extracted one. A merge
// never downgrades a previously-resolved field to null, and never
// touches operator-owned fields (status, needs_review, created_at).
func mergeRecord(fresh, prior *domain.ListingRecord) {
	if prior == nil {
		fresh.Status = domain.StatusAvailable
		return
	}

	fresh.Status = prior.Status
	fresh.NeedsReview = prior.NeedsReview
	fresh.CreatedAt = prior.CreatedAt

	if fresh.SourceURL == "" {
		fresh.SourceURL = prior.SourceURL
	}
	if fresh.Lat == nil && prior.Lat != nil {
		fresh.Lat, fresh.Lng = prior.Lat, prior.Lng
	}
	if fresh.Price == nil {
		fresh.Price = prior.Price
	}
	if fresh.Location == nil {
		fresh.Location = prior.Location
	}
	if fresh.Dates == nil {
		fresh.Dates = prior.Dates
	}
	if fresh.Rooms == nil {
		fresh.Rooms = prior.Rooms
	}
	if fresh.Type == "" {
		fresh.Type = prior.Type
	}
	if len(fresh.Amenities) == 0 {
		fresh.Amenities = prior.Amenities
	}
	if len(fresh.Images) == 0 {
		fresh.Images = prior.Images
	}
}

func previewText(payload map[string]any) string {
	for _, key := range []string{"text", "message", "content"} {
		if v, ok := payload[key].(string); ok && v != "" {
			if len(v) > 60 {
				return v[:60] + "..."
			}
			return v
		}
	}
	return ""
}
