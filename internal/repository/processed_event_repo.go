package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProcessedEventRepository remembers Stripe event IDs that were fully handled
// so redeliveries can be acknowledged without reprocessing.
type ProcessedEventRepository interface {
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

const processedEventKeyPrefix = "stripe:event:"

type redisProcessedEventRepo struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisProcessedEventRepo stores markers with the given TTL. A zero TTL keeps them forever.
func NewRedisProcessedEventRepo(client *redis.Client, ttl time.Duration) ProcessedEventRepository {
	return &redisProcessedEventRepo{client: client, ttl: ttl}
}

func (r *redisProcessedEventRepo) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	n, err := r.client.Exists(ctx, processedEventKeyPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("check processed event %s: %w", eventID, err)
	}
	return n > 0, nil
}

func (r *redisProcessedEventRepo) MarkProcessed(ctx context.Context, eventID string) error {
	key := processedEventKeyPrefix + eventID
	if err := r.client.Set(ctx, key, time.Now().UTC().Format(time.RFC3339), r.ttl).Err(); err != nil {
		return fmt.Errorf("mark processed event %s: %w", eventID, err)
	}
	return nil
}

type noopProcessedEventRepo struct{}

// NewNoopProcessedEventRepo is used when Redis is not configured; every event is processed.
func NewNoopProcessedEventRepo() ProcessedEventRepository {
	return noopProcessedEventRepo{}
}

func (noopProcessedEventRepo) IsProcessed(context.Context, string) (bool, error) { return false, nil }
func (noopProcessedEventRepo) MarkProcessed(context.Context, string) error       { return nil }
