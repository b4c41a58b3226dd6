package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/project-tktt/go-sublets/internal/config"
	"github.com/project-tktt/go-sublets/internal/extract"
	"github.com/project-tktt/go-sublets/internal/geo"
	"github.com/project-tktt/go-sublets/internal/images"
	"github.com/project-tktt/go-sublets/internal/indexer"
	"github.com/project-tktt/go-sublets/internal/ingest"
	"github.com/project-tktt/go-sublets/internal/queue"
	"github.com/project-tktt/go-sublets/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting Listing Worker Service")

	// Load configuration (.env is optional, env vars win)
	_ = godotenv.Load()
	cfg := config.Load()

	// Initialize Redis client
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Test Redis connection
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("Redis connection failed: %v", err)
	}
	log.Println("Redis connected")

	// Initialize Postgres store
	st, err := store.NewPostgresStore(cfg.Postgres.ConnectionString, cfg.Postgres.TableName)
	if err != nil {
		log.Fatalf("Postgres connection failed: %v", err)
	}
	defer st.Close()
	log.Printf("Postgres connected, table: %s", cfg.Postgres.TableName)

	// Initialize Elasticsearch indexer
	var esIndexer ingest.Indexer
	es, err := indexer.NewElasticsearchIndexer(cfg.Elasticsearch.Addresses, cfg.Elasticsearch.Index)
	if err != nil {
		log.Printf("Warning: Elasticsearch unavailable, search indexing disabled: %v", err)
	} else {
		if err := es.EnsureIndex(ctx); err != nil {
			log.Printf("Warning: Failed to ensure index: %v", err)
		}
		esIndexer = es
		log.Printf("Elasticsearch connected, index: %s", cfg.Elasticsearch.Index)
	}

	// Initialize AI extractor
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

	consumer := queue.NewConsumer(rdb, cfg.Redis.ListingQueue, 5*time.Second)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup

	// Start consumer loop (queue -> normalize -> extract -> persist)
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := consumer.Run(ctx, cfg.Ingest.BatchSize, func(batch []map[string]any) {
			result := orchestrator.IngestBatch(ctx, batch)
			if backlog, err := consumer.QueueLength(ctx); err == nil {
				log.Printf("batch done: processed=%d failed=%d backlog=%d", result.Processed, result.Failed, backlog)
			} else {
				log.Printf("batch done: processed=%d failed=%d", result.Processed, result.Failed)
			}
		})
		if err != nil && err != context.Canceled {
			log.Printf("Consumer error: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutdown signal received, stopping...")
	cancel()

	// Wait for goroutines to finish
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Graceful shutdown complete")
	case <-time.After(30 * time.Second):
		log.Println("Shutdown timeout, forcing exit")
	}
}
