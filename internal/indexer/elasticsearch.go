// Package indexer mirrors persisted listings into Elasticsearch for
// search. The relational store stays the source of truth; indexing
// failures are logged by callers and never fail an ingest.
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/project-tktt/go-sublets/internal/domain"
)

// ElasticsearchIndexer indexes listings to Elasticsearch
type ElasticsearchIndexer struct {
	client    *elasticsearch.Client
	indexName string
}

// NewElasticsearchIndexer creates a new Elasticsearch indexer
func NewElasticsearchIndexer(addresses []string, indexName string) (*ElasticsearchIndexer, error) {
	cfg := elasticsearch.Config{
		Addresses: addresses,
	}

	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create es client: %w", err)
	}

	// Check connection
	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("es info: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("es error: %s", res.Status())
	}

	return &ElasticsearchIndexer{
		client:    client,
		indexName: indexName,
	}, nil
}

// Index indexes a single listing
func (i *ElasticsearchIndexer) Index(ctx context.Context, rec *domain.ListingRecord) error {
	data, err := json.Marshal(document(rec))
	if err != nil {
		return fmt.Errorf("marshal listing: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      i.indexName,
		DocumentID: rec.ID,
		Body:       bytes.NewReader(data),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("index request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index error: %s", res.Status())
	}

	return nil
}

// BulkIndex indexes multiple listings at once
func (i *ElasticsearchIndexer) BulkIndex(ctx context.Context, recs []*domain.ListingRecord) error {
	if len(recs) == 0 {
		return nil
	}

	var buf bytes.Buffer

	for _, rec := range recs {
		// Meta line
		meta := map[string]any{
			"index": map[string]any{
				"_index": i.indexName,
				"_id":    rec.ID,
			},
		}
		metaBytes, _ := json.Marshal(meta)
		buf.Write(metaBytes)
		buf.WriteByte('\n')

		// Document line
		docBytes, err := json.Marshal(document(rec))
		if err != nil {
			log.Printf("marshal listing %s: %v", rec.ID, err)
			continue
		}
		buf.Write(docBytes)
		buf.WriteByte('\n')
	}

	res, err := i.client.Bulk(bytes.NewReader(buf.Bytes()), i.client.Bulk.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("bulk request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk error: %s", res.Status())
	}

	// Parse response to check for individual errors
	var bulkRes struct {
		Errors bool `json:"errors"`
		Items  []struct {
			Index struct {
				ID     string `json:"_id"`
				Status int    `json:"status"`
				Error  struct {
					Type   string `json:"type"`
					Reason string `json:"reason"`
				} `json:"error"`
			} `json:"index"`
		} `json:"items"`
	}

	if err := json.NewDecoder(res.Body).Decode(&bulkRes); err != nil {
		return fmt.Errorf("parse bulk response: %w", err)
	}

	if bulkRes.Errors {
		for _, item := range bulkRes.Items {
			if item.Index.Status >= 400 {
				log.Printf("bulk index error for %s: %s - %s",
					item.Index.ID, item.Index.Error.Type, item.Index.Error.Reason)
			}
		}
	}

	return nil
}

// Delete removes listings from the index, mirroring store deletions
// made by the duplicate resolver.
func (i *ElasticsearchIndexer) Delete(ctx context.Context, ids []string) error {
	for _, id := range ids {
		req := esapi.DeleteRequest{Index: i.indexName, DocumentID: id}
		res, err := req.Do(ctx, i.client)
		if err != nil {
			return fmt.Errorf("delete request: %w", err)
		}
		res.Body.Close()
		// 404 means the listing was never indexed; nothing to do.
	}
	return nil
}

// document flattens a record into the search document shape. Nested
// extraction structs are spread into top-level fields so the mapping
// stays flat; coordinates become a single geo_point.
func document(rec *domain.ListingRecord) map[string]any {
	doc := map[string]any{
		"id":             rec.ID,
		"source_url":     rec.SourceURL,
		"content_hash":   rec.ContentHash,
		"original_text":  rec.OriginalText,
		"type":           rec.Type,
		"status":         rec.Status,
		"needs_review":   rec.NeedsReview,
		"images":         rec.Images,
		"created_at":     rec.CreatedAt,
		"last_parsed_at": rec.LastParsedAt,
		"parser_version": rec.ParserVersion,
	}

	if rec.Price != nil {
		doc["price_amount"] = rec.Price.Amount
		doc["price_currency"] = rec.Price.Currency
		doc["price_period"] = rec.Price.Period
	}
	if rec.Location != nil {
		doc["city"] = rec.Location.City
		doc["neighborhood"] = rec.Location.Neighborhood
		doc["street"] = rec.Location.Street
		doc["full_address"] = rec.Location.FullAddress
		doc["location_confidence"] = rec.Location.Confidence
	}
	if rec.Dates != nil {
		doc["start_date"] = rec.Dates.StartDate
		doc["end_date"] = rec.Dates.EndDate
		doc["is_flexible"] = rec.Dates.IsFlexible
	}
	if rec.Rooms != nil {
		doc["total_rooms"] = rec.Rooms.TotalRooms
		doc["is_studio"] = rec.Rooms.IsStudio
	}
	if len(rec.Amenities) > 0 {
		var amenities []string
		for name, present := range rec.Amenities {
			if present {
				amenities = append(amenities, name)
			}
		}
		doc["amenities"] = amenities
	}
	if rec.HasCoordinates() {
		doc["coordinates"] = map[string]float64{"lat": *rec.Lat, "lon": *rec.Lng}
	}
	return doc
}

// EnsureIndex creates the index with Hebrew-friendly settings if it doesn't exist
func (i *ElasticsearchIndexer) EnsureIndex(ctx context.Context) error {
	// Check if index exists
	res, err := i.client.Indices.Exists([]string{i.indexName})
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()

	if res.StatusCode == 200 {
		return nil // Index already exists
	}

	// Mixed Hebrew/English text tokenizes fine with the standard
	// tokenizer; asciifolding handles transliterated street names.
	mapping := `{
		"settings": {
			"analysis": {
				"analyzer": {
					"listing_analyzer": {
						"type": "custom",
						"tokenizer": "standard",
						"filter": ["lowercase", "asciifolding"]
					}
				}
			}
		},
		"mappings": {
			"properties": {
				"id": {"type": "keyword"},
				"source_url": {"type": "keyword"},
				"content_hash": {"type": "keyword"},
				"original_text": {"type": "text", "analyzer": "listing_analyzer"},
				"type": {"type": "keyword"},
				"status": {"type": "keyword"},
				"needs_review": {"type": "boolean"},
				"price_amount": {"type": "float"},
				"price_currency": {"type": "keyword"},
				"price_period": {"type": "keyword"},
				"city": {"type": "keyword"},
				"neighborhood": {
					"type": "text",
					"analyzer": "listing_analyzer",
					"fields": {"keyword": {"type": "keyword"}}
				},
				"street": {
					"type": "text",
					"analyzer": "listing_analyzer",
					"fields": {"keyword": {"type": "keyword"}}
				},
				"full_address": {"type": "text", "analyzer": "listing_analyzer"},
				"location_confidence": {"type": "keyword"},
				"start_date": {"type": "keyword"},
				"end_date": {"type": "keyword"},
				"is_flexible": {"type": "boolean"},
				"total_rooms": {"type": "float"},
				"is_studio": {"type": "boolean"},
				"amenities": {"type": "keyword"},
				"images": {"type": "keyword"},
				"coordinates": {"type": "geo_point"},
				"created_at": {"type": "date"},
				"last_parsed_at": {"type": "date"},
				"parser_version": {"type": "keyword"}
			}
		}
	}`

	res, err = i.client.Indices.Create(
		i.indexName,
		i.client.Indices.Create.WithBody(bytes.NewReader([]byte(mapping))),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("create index error: %s", res.Status())
	}

	return nil
}
