package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stammtisch-app/stammtisch/internal/pkg/env"
)

var (
	client *redis.Client
	ctx    = context.Background()
)

// SetupCache initializes the connection to the Redis cache server
func SetupCache() {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := env.GetEnv("CACHE_PORT", "6379")

	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       0, // use default DB
	})

	// Test the connection
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Printf("Warning: Could not connect to Redis cache: %v", err)
	} else {
		log.Printf("Successfully connected to Redis cache: %s", pong)
	}
}

// GetClient returns the Redis client instance
func GetClient() *redis.Client {
	if client == nil {
		SetupCache()
	}
	return client
}

// Set stores a value in the cache with the given key and expiration time
func Set(key string, value interface{}, expiration time.Duration) error {
	return GetClient().Set(ctx, key, value, expiration).Err()
}

// Get retrieves a value from the cache by key
func Get(key string) (string, error) {
	return GetClient().Get(ctx, key).Result()
}

// Delete removes a value from the cache by key
func Delete(key string) error {
	return GetClient().Del(ctx, key).Err()
}

// WebhookSeenCache is a best-effort, Redis-backed fast path in front of the
// database dedup row for webhook events. Losing an entry is harmless; the
// unique index on the event table remains authoritative.
type WebhookSeenCache struct{}

func NewWebhookSeenCache() *WebhookSeenCache {
	return &WebhookSeenCache{}
}

// Seen reports whether the key was recorded within its window.
func (s *WebhookSeenCache) Seen(ctx context.Context, key string) (bool, error) {
	n, err := GetClient().Exists(ctx, "webhook:seen:"+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkSeen records the key for the given window. Only successfully processed
// events are marked, so a redelivery after a failure is not short-circuited.
func (s *WebhookSeenCache) MarkSeen(ctx context.Context, key string, window time.Duration) error {
	return GetClient().Set(ctx, "webhook:seen:"+key, 1, window).Err()
}
