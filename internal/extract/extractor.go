// Package extract derives structured listing fields from raw post text.
// Two strategies implement the same contract: an AI extractor backed by
// a chat-completion model, and a deterministic heuristic extractor used
// when the AI path is unavailable, too slow, or bypassed.
package extract

import (
	"context"

	"github.com/project-tktt/go-sublets/internal/domain"
)

// Result is the output of an extraction strategy. Lat/Lng carry the
// heuristic extractor's dictionary coordinate when one was found; the
// AI path leaves them nil and relies on the geocoder downstream.
type Result struct {
	Fields *domain.ExtractedFields
	Lat    *float64
	Lng    *float64
}

// FieldExtractor is the extraction strategy contract. groupHint is an
// optional group-name hint from the scraper ("" when absent).
type FieldExtractor interface {
	Name() string
	Extract(ctx context.Context, text, groupHint string) (*Result, error)
}
