package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bilgisen/newsbyte/internal/utils"
)

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisMemo remembers rejected videos in Redis with a TTL so later runs skip
// them without spending metadata or transcript calls.
type RedisMemo struct {
	client *redis.Client
	prefix string
}

func NewRedisMemo(client *redis.Client, prefix string) *RedisMemo {
	return &RedisMemo{
		client: client,
		prefix: prefix + "rejected:",
	}
}

func (r *RedisMemo) key(videoID string) string {
	return r.prefix + utils.ShortHash(videoID)
}

func (r *RedisMemo) IsRejected(ctx context.Context, videoID string) (bool, error) {
	exists, err := r.client.Exists(ctx, r.key(videoID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists error: %w", err)
	}
	return exists > 0, nil
}

// Reason returns why a video was rejected, or "" if it is not memoized.
func (r *RedisMemo) Reason(ctx context.Context, videoID string) (string, error) {
	reason, err := r.client.Get(ctx, r.key(videoID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get error: %w", err)
	}
	return reason, nil
}

func (r *RedisMemo) MarkRejected(ctx context.Context, videoID, reason string, ttl time.Duration) error {
	return r.client.Set(ctx, r.key(videoID), reason, ttl).Err()
}

func (r *RedisMemo) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 0).Iterator()
	var keys []string

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("error scanning keys: %w", err)
	}

	if len(keys) > 0 {
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("error deleting keys: %w", err)
		}
	}

	return nil
}
