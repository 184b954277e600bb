package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// MetricsCache is a short-TTL Redis cache for computed score reports and
// leaderboard snapshots. Best effort: a miss or a Redis failure sends the
// caller back to a full recompute, never to an error response.
type MetricsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewMetricsCache connects to Redis and verifies the connection
func NewMetricsCache(redisURL string, ttl time.Duration) (*MetricsCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &MetricsCache{client: client, ttl: ttl}, nil
}

// NewMetricsCacheWithClient creates a cache from an existing Redis client
func NewMetricsCacheWithClient(client *redis.Client, ttl time.Duration) *MetricsCache {
	return &MetricsCache{client: client, ttl: ttl}
}

func scoreKey(id string) string { return "civic:score:" + id }
func leaderboardKey(dept string) string {
	if dept == "" {
		return "civic:leaderboard:all"
	}
	return "civic:leaderboard:" + dept
}

// StoreScore caches a computed score report for a worker
func (c *MetricsCache) StoreScore(ctx context.Context, workerID string, report any) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal score report: %w", err)
	}
	return c.client.Set(ctx, scoreKey(workerID), data, c.ttl).Err()
}

// LoadScore loads a cached score report into dest. Returns false on a miss.
func (c *MetricsCache) LoadScore(ctx context.Context, workerID string, dest any) (bool, error) {
	data, err := c.client.Get(ctx, scoreKey(workerID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load score report: %w", err)
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("unmarshal score report: %w", err)
	}
	return true, nil
}

// InvalidateScore drops a worker's cached score after a lifecycle event
// that changes their metrics. Leaderboard snapshots rank every active
// worker, so a single metric change stales all of them; they go too.
func (c *MetricsCache) InvalidateScore(ctx context.Context, workerID string) error {
	if err := c.client.Del(ctx, scoreKey(workerID)).Err(); err != nil {
		return err
	}

	iter := c.client.Scan(ctx, 0, "civic:leaderboard:*", 0).Iterator()
	var stale []string
	for iter.Next(ctx) {
		stale = append(stale, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan leaderboard keys: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}
	return c.client.Del(ctx, stale...).Err()
}

// StoreLeaderboard caches a computed leaderboard snapshot
func (c *MetricsCache) StoreLeaderboard(ctx context.Context, department string, board any) error {
	data, err := json.Marshal(board)
	if err != nil {
		return fmt.Errorf("marshal leaderboard: %w", err)
	}
	return c.client.Set(ctx, leaderboardKey(department), data, c.ttl).Err()
}

// LoadLeaderboard loads a cached leaderboard into dest. Returns false on a miss.
func (c *MetricsCache) LoadLeaderboard(ctx context.Context, department string, dest any) (bool, error) {
	data, err := c.client.Get(ctx, leaderboardKey(department)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load leaderboard: %w", err)
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("unmarshal leaderboard: %w", err)
	}
	return true, nil
}

// Close closes the Redis connection
func (c *MetricsCache) Close() error {
	return c.client.Close()
}

// Ping checks if Redis is reachable
func (c *MetricsCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
