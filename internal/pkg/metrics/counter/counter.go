package counter

import (
	"context"
	"strconv"
	"time"

	"github.com/stammtisch-app/stammtisch/internal/pkg/cache"
)

const webhookCountersKey = "billing:counters:webhook"

// Maintenance sweep names recorded via MarkSweepRun.
const (
	SweepExpiry = "expiry"
	SweepDedup  = "dedup"
)

// Webhook counter fields.
const (
	FieldReceived   = "received"
	FieldProcessed  = "processed"
	FieldDuplicates = "duplicates"
	FieldIgnored    = "ignored"
	FieldRejected   = "rejected"
	FieldFailed     = "failed"
)

// AddWebhook increments the given webhook counter field in Redis.
func AddWebhook(field string) error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, webhookCountersKey, field, 1).Err()
}

// WebhookStats returns the current webhook counters.
func WebhookStats() (map[string]int64, error) {
	ctx := context.Background()
	raw, err := cache.GetClient().HGetAll(ctx, webhookCountersKey).Result()
	if err != nil {
		return nil, err
	}
	stats := make(map[string]int64, len(raw))
	for field, value := range raw {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		stats[field] = n
	}
	return stats, nil
}

// ResetWebhook clears the webhook counters.
func ResetWebhook() error {
	return cache.Delete(webhookCountersKey)
}

// MarkSweepRun records when the named maintenance sweep last completed.
func MarkSweepRun(name string) error {
	return cache.Set("billing:sweep:last:"+name, time.Now().UTC().Format(time.RFC3339), 0)
}

// LastSweepRun returns when the named sweep last completed, or "" if never.
func LastSweepRun(name string) string {
	value, err := cache.Get("billing:sweep:last:" + name)
	if err != nil {
		return ""
	}
	return value
}
