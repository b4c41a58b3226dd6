package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Consumer consumes raw post payloads from the Redis ingestion queue
type Consumer struct {
	client    *redis.Client
	queueName string
	timeout   time.Duration
}

// NewConsumer creates a new queue consumer
func NewConsumer(client *redis.Client, queueName string, timeout time.Duration) *Consumer {
	if queueName == "" {
		queueName = "listings:raw"
	}
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Consumer{
		client:    client,
		queueName: queueName,
		timeout:   timeout,
	}
}

// QueueLength returns the current backlog depth.
func (c *Consumer) QueueLength(ctx context.Context) (int64, error) {
	return c.client.LLen(ctx, c.queueName).Result()
}

// ConsumeBatch consumes up to maxBatch payloads from the queue.
// Uses BRPOP to block-wait for the first item (prevents CPU spinning),
// then non-blocking RPOP to quickly fill the rest of the batch.
func (c *Consumer) ConsumeBatch(ctx context.Context, maxBatch int) ([]map[string]any, error) {
	payloads := make([]map[string]any, 0, maxBatch)

	result, err := c.client.BRPop(ctx, c.timeout, c.queueName).Result()
	if err != nil {
		if err == redis.Nil {
			return payloads, nil // Timeout, nothing queued
		}
		return nil, fmt.Errorf("brpop: %w", err)
	}

	if len(result) >= 2 {
		var payload map[string]any
		if err := json.Unmarshal([]byte(result[1]), &payload); err == nil {
			payloads = append(payloads, payload)
		}
	}

	for i := 1; i < maxBatch; i++ {
		result, err := c.client.RPop(ctx, c.queueName).Result()
		if err != nil {
			if err == redis.Nil {
				break // Queue drained
			}
			return payloads, fmt.Errorf("rpop: %w", err)
		}

		var payload map[string]any
		if err := json.Unmarshal([]byte(result), &payload); err != nil {
			continue // Skip malformed payloads
		}

		payloads = append(payloads, payload)
	}

	return payloads, nil
}

// Run starts a continuous consumer loop, handing batches to the handler.
func (c *Consumer) Run(ctx context.Context, maxBatch int, handler func([]map[string]any)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := c.ConsumeBatch(ctx, maxBatch)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("consume error: %v", err)
			time.Sleep(time.Second)
			continue
		}

		if len(batch) == 0 {
			continue // Timeout, try again
		}

		handler(batch)
	}
}
