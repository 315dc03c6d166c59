package store

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/newscollector/config"
)

const embeddingKeyPrefix = "emb:"

// Conn opens a Redis connection and verifies it with a ping.
func Conn(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		DialTimeout: cfg.Timeout,
		Password:    cfg.Password,
		DB:          cfg.DB,
	})

	pong, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	if pong != "PONG" {
		return nil, fmt.Errorf("expected PONG, got %s", pong)
	}

	return client, nil
}

// EmbeddingCache stores embedding vectors in Redis keyed by a hash of the
// embedded text. Cache failures are treated as misses; the cache must never
// fail a deduplication run.
type EmbeddingCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

func NewEmbeddingCache(client *redis.Client, ttl time.Duration, logger *log.Logger) *EmbeddingCache {
	if logger == nil {
		logger = log.Default()
	}
	return &EmbeddingCache{client: client, ttl: ttl, logger: logger}
}

func embeddingKey(text string) string {
	sum := sha1.Sum([]byte(text))
	return embeddingKeyPrefix + hex.EncodeToString(sum[:])
}

func (c *EmbeddingCache) Get(ctx context.Context, text string) ([]float32, bool) {
	val, err := c.client.Get(ctx, embeddingKey(text)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Printf("embedding cache read failed: %v", err)
		}
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal([]byte(val), &vec); err != nil {
		c.logger.Printf("embedding cache entry corrupt, ignoring: %v", err)
		return nil, false
	}
	return vec, true
}

func (c *EmbeddingCache) Set(ctx context.Context, text string, vec []float32) {
	data, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, embeddingKey(text), data, c.ttl).Err(); err != nil {
		c.logger.Printf("embedding cache write failed: %v", err)
	}
}
