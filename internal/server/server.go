// Package server exposes the ingestion pipeline over HTTP: a webhook
// for raw post batches, manual reparse, and duplicate resolution.
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/project-tktt/go-sublets/internal/dedup"
	"github.com/project-tktt/go-sublets/internal/ingest"
)

// Ingestor is the slice of the orchestrator the handlers need.
type Ingestor interface {
	IngestBatch(ctx context.Context, payloads []map[string]any) *ingest.BatchResult
	Reparse(ctx context.Context, ids []string) []ingest.ReparseResult
	ReparseBySourceURL(ctx context.Context, sourceURL string) (*ingest.ReparseResult, error)
}

// Resolver is the slice of the duplicate resolver the handlers need.
type Resolver interface {
	Plan(ctx context.Context) ([]dedup.Group, error)
	Apply(ctx context.Context) (int, error)
}

// Publisher enqueues raw payloads for asynchronous ingestion.
type Publisher interface {
	PublishBatch(ctx context.Context, payloads []map[string]any) error
}

// Server wires HTTP routes to the pipeline.
type Server struct {
	ingestor  Ingestor
	resolver  Resolver
	publisher Publisher
	engine    *gin.Engine
}

// New creates the HTTP server and registers routes. publisher may be
// nil, in which case async ingestion is rejected.
func New(ingestor Ingestor, resolver Resolver, publisher Publisher) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		ingestor:  ingestor,
		resolver:  resolver,
		publisher: publisher,
		engine:    gin.New(),
	}
	s.engine.Use(gin.Recovery())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.handleHealth)

	api := s.engine.Group("/api")
	api.POST("/listings/ingest", s.handleIngest)
	api.POST("/listings/reparse", s.handleReparse)
	api.GET("/duplicates", s.handleDuplicatesPlan)
	api.POST("/duplicates/resolve", s.handleDuplicatesResolve)
}

// Run starts the HTTP listener.
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleIngest accepts either a single raw post object or an array of
// them. Item-level failures are reported per item; only a structurally
// invalid body is a 400.
func (s *Server) handleIngest(c *gin.Context) {
	// The body may be an object or an array, so bind from raw bytes
	// instead of ShouldBindJSON, which consumes the body on first use.
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable request body"})
		return
	}

	var payloads []map[string]any
	if err := json.Unmarshal(body, &payloads); err != nil {
		var single map[string]any
		if err := json.Unmarshal(body, &single); err != nil || len(single) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "body must be a post object or an array of post objects"})
			return
		}
		payloads = []map[string]any{single}
	}
	if len(payloads) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty batch"})
		return
	}

	// ?async=true hands the batch to the queue instead of processing
	// inline; the worker picks it up.
	if c.Query("async") == "true" {
		if s.publisher == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "async ingestion is not configured"})
			return
		}
		if err := s.publisher.PublishBatch(c.Request.Context(), payloads); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"enqueued": len(payloads)})
		return
	}

	result := s.ingestor.IngestBatch(c.Request.Context(), payloads)
	c.JSON(http.StatusOK, result)
}

type reparseRequest struct {
	ID        string   `json:"id"`
	IDs       []string `json:"ids"`
	SourceURL string   `json:"sourceUrl"`
}

func (s *Server) handleReparse(c *gin.Context) {
	var req reparseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	switch {
	case req.SourceURL != "":
		res, err := s.ingestor.ReparseBySourceURL(c.Request.Context(), req.SourceURL)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": []ingest.ReparseResult{*res}})
	case req.ID != "":
		c.JSON(http.StatusOK, gin.H{"results": s.ingestor.Reparse(c.Request.Context(), []string{req.ID})})
	case len(req.IDs) > 0:
		c.JSON(http.StatusOK, gin.H{"results": s.ingestor.Reparse(c.Request.Context(), req.IDs)})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "one of id, ids or sourceUrl is required"})
	}
}

func (s *Server) handleDuplicatesPlan(c *gin.Context) {
	groups, err := s.resolver.Plan(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if groups == nil {
		groups = []dedup.Group{}
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

func (s *Server) handleDuplicatesResolve(c *gin.Context) {
	deleted, err := s.resolver.Apply(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
