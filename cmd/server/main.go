package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/project-tktt/go-sublets/internal/config"
	"github.com/project-tktt/go-sublets/internal/dedup"
	"github.com/project-tktt/go-sublets/internal/extract"
	"github.com/project-tktt/go-sublets/internal/geo"
	"github.com/project-tktt/go-sublets/internal/images"
	"github.com/project-tktt/go-sublets/internal/indexer"
	"github.com/project-tktt/go-sublets/internal/ingest"
	"github.com/project-tktt/go-sublets/internal/queue"
	"github.com/project-tktt/go-sublets/internal/server"
	"github.com/project-tktt/go-sublets/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting Listing API Service")

	// Load configuration (.env is optional, env vars win)
	_ = godotenv.Load()
	cfg := config.Load()

	// Initialize Postgres store
	st, err := store.NewPostgresStore(cfg.Postgres.ConnectionString, cfg.Postgres.TableName)
	if err != nil {
		log.Fatalf("Postgres connection failed: %v", err)
	}
	defer st.Close()
	log.Printf("Postgres connected, table: %s", cfg.Postgres.TableName)

	// Initialize Elasticsearch indexer (optional; search only)
	var esIndexer ingest.Indexer
	var searchCleanup dedup.Indexer
	es, err := indexer.NewElasticsearchIndexer(cfg.Elasticsearch.Addresses, cfg.Elasticsearch.Index)
	if err != nil {
		log.Printf("Warning: Elasticsearch unavailable, search indexing disabled: %v", err)
	} else {
		if err := es.EnsureIndex(context.Background()); err != nil {
			log.Printf("Warning: Failed to ensure index: %v", err)
		}
		esIndexer = es
		searchCleanup = es
		log.Printf("Elasticsearch connected, index: %s", cfg.Elasticsearch.Index)
	}

	// Initialize AI extractor (optional; heuristic covers its absence)
	var ai extract.FieldExtractor
	if cfg.OpenAI.APIKey != "" {
		aiExt, err := extract.NewAIExtractor(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.MinDelay, cfg.OpenAI.Timeout)
		if err != nil {
			log.Fatalf("OpenAI extractor init failed: %v", err)
		}
		ai = aiExt
		log.Printf("AI extraction enabled, model: %s", cfg.OpenAI.Model)
	} else {
		log.Println("OPENAI_API_KEY not set, heuristic extraction only")
	}

	geocoder := geo.NewGeocoder(geo.Config{
		BaseURL:   cfg.Geocoder.BaseURL,
		UserAgent: cfg.Geocoder.UserAgent,
		MinDelay:  cfg.Geocoder.MinDelay,
	})

	orchestrator, err := ingest.NewOrchestrator(ingest.Options{
		Store:         st,
		AI:            ai,
		Heuristic:     extract.NewHeuristic(extract.TelAvivLexicon()),
		Geocoder:      geocoder,
		Images:        images.NewResolver(0),
		Indexer:       esIndexer,
		ParserVersion: cfg.Ingest.ParserVersion,
	})
	if err != nil {
		log.Fatalf("Orchestrator init failed: %v", err)
	}

	resolver := dedup.NewResolver(st, cfg.Ingest.DeleteBatchSize, searchCleanup)

	// Redis is optional for the API: without it the webhook still works
	// synchronously, only ?async=true is unavailable.
	var publisher server.Publisher
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Printf("Warning: Redis unavailable, async ingestion disabled: %v", err)
	} else {
		publisher = queue.NewPublisher(rdb, cfg.Redis.ListingQueue)
		log.Println("Redis connected, async ingestion enabled")
	}

	srv := server.New(orchestrator, resolver, publisher)
	log.Printf("Listening on %s", cfg.Server.Addr)
	if err := srv.Run(cfg.Server.Addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
