package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/project-tktt/go-sublets/internal/audit"
	"github.com/project-tktt/go-sublets/internal/config"
	"github.com/project-tktt/go-sublets/internal/dedup"
	"github.com/project-tktt/go-sublets/internal/indexer"
	"github.com/project-tktt/go-sublets/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting Listing Maintenance Service")

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

	// Elasticsearch is optional: without it the relational store is still
	// maintained, the search index just drifts until the next sync.
	var search *indexer.ElasticsearchIndexer
	var searchCleanup dedup.Indexer
	var searchUpdate audit.Indexer
	es, err := indexer.NewElasticsearchIndexer(cfg.Elasticsearch.Addresses, cfg.Elasticsearch.Index)
	if err != nil {
		log.Printf("Warning: Elasticsearch unavailable, search index maintenance disabled: %v", err)
	} else {
		if err := es.EnsureIndex(context.Background()); err != nil {
			log.Printf("Warning: Failed to ensure index: %v", err)
		}
		search = es
		searchCleanup = es
		searchUpdate = es
		log.Printf("Elasticsearch connected, index: %s", cfg.Elasticsearch.Index)
	}

	resolver := dedup.NewResolver(st, cfg.Ingest.DeleteBatchSize, searchCleanup)
	auditor := audit.NewAuditor(st, searchUpdate, audit.Config{
		UserAgent:    cfg.Audit.UserAgent,
		RequestDelay: cfg.Audit.RequestDelay,
		MaxAge:       time.Duration(cfg.Audit.MaxAgeDays) * 24 * time.Hour,
	})

	runOnce := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		deleted, err := resolver.Apply(ctx)
		if err != nil {
			log.Printf("Duplicate resolution failed: %v", err)
		} else {
			log.Printf("Duplicate resolution done, deleted=%d", deleted)
		}

		res, err := auditor.Run(ctx)
		if err != nil {
			log.Printf("Availability audit failed: %v", err)
			return
		}
		log.Printf("Availability audit done, checked=%d expired=%d", res.Checked, res.Expired)

		// Full re-sync heals any drift the per-item updates missed.
		if search != nil {
			records, err := st.List(ctx)
			if err != nil {
				log.Printf("Search index sync failed: %v", err)
			} else if err := search.BulkIndex(ctx, records); err != nil {
				log.Printf("Search index sync failed: %v", err)
			} else {
				log.Printf("Search index sync done, indexed=%d", len(records))
			}
		}
	}

	// --once runs a single maintenance pass and exits
	if len(os.Args) > 1 && os.Args[1] == "--once" {
		runOnce()
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.Audit.Schedule, runOnce); err != nil {
		log.Fatalf("Invalid maintenance schedule %q: %v", cfg.Audit.Schedule, err)
	}
	c.Start()
	log.Printf("Maintenance scheduled: %s", cfg.Audit.Schedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutdown signal received, stopping...")
	<-c.Stop().Done()
	log.Println("Graceful shutdown complete")
}
