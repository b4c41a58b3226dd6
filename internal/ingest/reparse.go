package ingest

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/project-tktt/go-sublets/internal/domain"
)

// ReparseResult reports the field-level diff for one reparsed record.
type ReparseResult struct {
	ID     string         `json:"id"`
	Before map[string]any `json:"before"`
	After  map[string]any `json:"after"`
	Error  string         `json:"error,omitempty"`
}

// Reparse re-runs extraction against the stored original text of each
// record, bypassing dedup. The record is re-geocoded only when the
// resolved city differs from the stored one. One record's failure never
// aborts the rest.
func (o *Orchestrator) Reparse(ctx context.Context, ids []string) []ReparseResult {
	results := make([]ReparseResult, 0, len(ids))
	for _, id := range ids {
		res, err := o.reparseOne(ctx, id)
		if err != nil {
			results = append(results, ReparseResult{ID: id, Error: err.Error()})
			continue
		}
		results = append(results, *res)
	}
	return results
}

// ReparseBySourceURL reparses the record stored under a source URL.
func (o *Orchestrator) ReparseBySourceURL(ctx context.Context, sourceURL string) (*ReparseResult, error) {
	rec, err := o.store.GetBySourceURL(ctx, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("load record: %w", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("no record for source url %q", sourceURL)
	}
	return o.reparseOne(ctx, rec.ID)
}

func (o *Orchestrator) reparseOne(ctx context.Context, id string) (*ReparseResult, error) {
	prior, err := o.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load record: %w", err)
	}
	if prior == nil {
		return nil, fmt.Errorf("record %s not found", id)
	}
	if prior.OriginalText == "" {
		return nil, fmt.Errorf("record %s has no original text to reparse", id)
	}

	res := o.extractFields(ctx, prior.OriginalText, "")

	fresh := &domain.ListingRecord{
		ID:            prior.ID,
		SourceURL:     prior.SourceURL,
		ContentHash:   prior.ContentHash,
		OriginalText:  prior.OriginalText,
		Price:         res.Fields.Price,
		Location:      res.Fields.Location,
		Dates:         res.Fields.Dates,
		Rooms:         res.Fields.Rooms,
		Type:          res.Fields.Type,
		Amenities:     res.Fields.Amenities,
		Images:        prior.Images,
		Lat:           prior.Lat,
		Lng:           prior.Lng,
		ParserVersion: o.parserVersion,
	}

	// Re-geocode only when the resolved city changed; otherwise the
	// stored coordinates stand.
	if cityChanged(prior.Location, res.Fields.Location) {
		fresh.Lat, fresh.Lng = o.resolveCoordinates(ctx, res)
	}

	mergeRecord(fresh, prior)

	if err := o.store.Upsert(ctx, fresh); err != nil {
		return nil, fmt.Errorf("persist: %w", err)
	}
	if o.indexer != nil {
		if err := o.indexer.Index(ctx, fresh); err != nil {
			return nil, fmt.Errorf("search index: %w", err)
		}
	}

	return &ReparseResult{
		ID:     prior.ID,
		Before: fieldSnapshot(prior, diffKeys(prior, fresh)),
		After:  fieldSnapshot(fresh, diffKeys(prior, fresh)),
	}, nil
}

func cityChanged(before, after *domain.Location) bool {
	beforeCity, afterCity := "", ""
	if before != nil {
		beforeCity = before.City
	}
	if after != nil {
		afterCity = after.City
	}
	return afterCity != "" && afterCity != beforeCity
}

// diffKeys lists the extracted-field sections that changed.
func diffKeys(before, after *domain.ListingRecord) []string {
	b, a := fieldValues(before), fieldValues(after)
	var keys []string
	for name, bv := range b {
		if !reflect.DeepEqual(bv, a[name]) {
			keys = append(keys, name)
		}
	}
	sort.Strings(keys)
	return keys
}

// fieldValues spreads the record's extracted fields plus the
// reparse-relevant extras into diffable sections.
func fieldValues(rec *domain.ListingRecord) map[string]any {
	f := rec.Fields()
	return map[string]any{
		"price":          f.Price,
		"location":       f.Location,
		"dates":          f.Dates,
		"rooms":          f.Rooms,
		"type":           f.Type,
		"amenities":      f.Amenities,
		"lat":            rec.Lat,
		"lng":            rec.Lng,
		"parser_version": rec.ParserVersion,
	}
}

func fieldSnapshot(rec *domain.ListingRecord, keys []string) map[string]any {
	values := fieldValues(rec)
	snapshot := make(map[string]any, len(keys))
	for _, key := range keys {
		snapshot[key] = values[key]
	}
	return snapshot
}
