package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/actuallystonmai/dineright-service/internal/domain"
)

const defaultTTL = 10 * time.Minute

type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func buildKey(userID int64) string {
	return fmt.Sprintf("rec:user:%d", userID)
}

// Get recommendations from cache; found is false on a miss
func (c *Cache) Get(ctx context.Context, userID int64) ([]domain.RecommendedRestaurant, bool, error) {
	key := buildKey(userID)
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get recommendations from cache: %w", err)
	}

	var recs []domain.RecommendedRestaurant
	if err := json.Unmarshal([]byte(val), &recs); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal recommendations %s: %w", key, err)
	}
	return recs, true, nil
}

// Store recommendations in cache
func (c *Cache) Set(ctx context.Context, userID int64, recs []domain.RecommendedRestaurant) error {
	key := buildKey(userID)
	val, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("failed to marshal recommendations: %w", err)
	}

	if err := c.client.Set(ctx, key, val, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set recommendations in cache: %w", err)
	}
	return nil
}

// Clear user cache: used when a refresh is requested
func (c *Cache) ClearUserCache(ctx context.Context, userID int64) error {
	if err := c.client.Del(ctx, buildKey(userID)).Err(); err != nil {
		return fmt.Errorf("cache delete %s: %w", buildKey(userID), err)
	}
	return nil
}

// Ping connectivity
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
