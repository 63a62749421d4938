package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers webhook event IDs so at-least-once deliveries from the
// chat channel are processed at most once.
type Deduper interface {
	// Seen records the event ID and reports whether it was already recorded.
	Seen(ctx context.Context, eventID string) (bool, error)
}

type redisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) Deduper {
	return &redisDeduper{
		client: client,
		ttl:    ttl,
	}
}

func (d *redisDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	key := fmt.Sprintf("clinic:webhook:event:%s", eventID)

	ok, err := d.client.SetNX(ctx, key, "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("record webhook event: %w", err)
	}

	// SetNX returns false when the key already existed
	return !ok, nil
}
