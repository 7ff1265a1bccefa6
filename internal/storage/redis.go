package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bilgisen/newsbyte/internal/models"
)

// RedisStore keeps each record as a JSON string with sorted-set indexes on
// cached_at (overall, per channel and per genre). Scores are unix millis;
// exact boundaries are re-checked against the decoded record.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    Clock
}

// NewRedisStore wraps an existing client. Keys are namespaced under prefix.
func NewRedisStore(client *redis.Client, prefix string, clock Clock) *RedisStore {
	if clock == nil {
		clock = time.Now
	}
	return &RedisStore{client: client, prefix: prefix, now: clock}
}

func (r *RedisStore) itemKey(videoURL string) string { return r.prefix + "item:" + videoURL }
func (r *RedisStore) cachedKey() string              { return r.prefix + "idx:cached" }
func (r *RedisStore) channelKey(id string) string    { return r.prefix + "idx:channel:" + id }
func (r *RedisStore) genreKey(g models.Genre) string { return r.prefix + "idx:genre:" + string(g) }

// maxUpsertAttempts bounds the optimistic retries when another writer
// touches the same record between WATCH and EXEC.
const maxUpsertAttempts = 5

func (r *RedisStore) Upsert(ctx context.Context, item *models.NewsItem) error {
	if err := prepare(item, r.now()); err != nil {
		return err
	}

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", item.VideoURL, err)
	}

	key := r.itemKey(item.VideoURL)
	member := redis.Z{Score: float64(item.CachedAt.UnixMilli()), Member: item.VideoURL}

	// The previous record decides which index entries go stale, so it is
	// read under WATCH and the write aborts if it changed meanwhile.
	txf := func(tx *redis.Tx) error {
		old, err := r.read(ctx, tx, item.VideoURL)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if old != nil {
				if old.ChannelID != "" && old.ChannelID != item.ChannelID {
					pipe.ZRem(ctx, r.channelKey(old.ChannelID), item.VideoURL)
				}
				if old.Genre != item.Genre {
					pipe.ZRem(ctx, r.genreKey(old.Genre), item.VideoURL)
				}
			}
			pipe.Set(ctx, key, data, 0)
			pipe.ZAdd(ctx, r.cachedKey(), member)
			pipe.ZAdd(ctx, r.genreKey(item.Genre), member)
			if item.ChannelID != "" {
				pipe.ZAdd(ctx, r.channelKey(item.ChannelID), member)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxUpsertAttempts; attempt++ {
		err = r.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("upsert %s: %w", item.VideoURL, err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, videoURL string) (*models.NewsItem, error) {
	return r.read(ctx, r.client, videoURL)
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *RedisStore) read(ctx context.Context, c getter, videoURL string) (*models.NewsItem, error) {
	data, err := c.Get(ctx, r.itemKey(videoURL)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", videoURL, err)
	}

	var item models.NewsItem
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("decode %s: %w", videoURL, err)
	}
	return &item, nil
}

func (r *RedisStore) IsFresh(ctx context.Context, videoURL string, maxAge time.Duration) (bool, *models.NewsItem, error) {
	item, err := r.Get(ctx, videoURL)
	if errors.Is(err, ErrNotFound) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	return isFresh(item.CachedAt, r.now(), maxAge), item, nil
}

func (r *RedisStore) Query(ctx context.Context, q Query) ([]models.NewsItem, error) {
	index := r.cachedKey()
	switch {
	case q.ChannelID != "":
		index = r.channelKey(q.ChannelID)
	case len(q.Genres) == 1:
		index = r.genreKey(q.Genres[0])
	}

	minScore := "-inf"
	if !q.MinCachedAt.IsZero() {
		minScore = strconv.FormatInt(q.MinCachedAt.UnixMilli(), 10)
	}

	// With nothing left for matchesQuery but the exact time boundary, a
	// limited query only needs the head of the index.
	indexed := len(q.Genres) == 0 || (q.ChannelID == "" && len(q.Genres) == 1)
	if indexed && q.Limit > 0 {
		out, ok, err := r.queryHead(ctx, index, minScore, q)
		if err != nil || ok {
			return out, err
		}
	}

	members, err := r.client.ZRevRangeByScore(ctx, index, &redis.ZRangeBy{Min: minScore, Max: "+inf"}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis query %s: %w", index, err)
	}
	out, err := r.collect(ctx, members, q)
	if err != nil {
		return nil, err
	}
	if len(out) > q.Limit && q.Limit > 0 {
		out = out[:q.Limit]
	}
	return out, nil
}

// queryHead reads the newest q.Limit index members plus any sharing the
// lowest score among them, since scores only have millisecond precision.
// ok is false when records were dropped after loading and the head no
// longer fills the limit.
func (r *RedisStore) queryHead(ctx context.Context, index, minScore string, q Query) ([]models.NewsItem, bool, error) {
	head, err := r.client.ZRevRangeByScoreWithScores(ctx, index, &redis.ZRangeBy{
		Min:   minScore,
		Max:   "+inf",
		Count: int64(q.Limit),
	}).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis query %s: %w", index, err)
	}

	members := make([]string, 0, len(head))
	seen := make(map[string]bool, len(head))
	for _, z := range head {
		m, _ := z.Member.(string)
		members = append(members, m)
		seen[m] = true
	}

	full := len(head) == q.Limit
	if full {
		edge := strconv.FormatFloat(head[len(head)-1].Score, 'f', -1, 64)
		ties, err := r.client.ZRevRangeByScore(ctx, index, &redis.ZRangeBy{Min: edge, Max: edge}).Result()
		if err != nil {
			return nil, false, fmt.Errorf("redis query %s: %w", index, err)
		}
		for _, m := range ties {
			if !seen[m] {
				members = append(members, m)
				seen[m] = true
			}
		}
	}

	out, err := r.collect(ctx, members, q)
	if err != nil {
		return nil, false, err
	}
	if len(out) < q.Limit && full {
		return nil, false, nil
	}
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, true, nil
}

// collect loads members and keeps the records matching q, newest first.
func (r *RedisStore) collect(ctx context.Context, members []string, q Query) ([]models.NewsItem, error) {
	items, err := r.load(ctx, members)
	if err != nil {
		return nil, err
	}

	out := make([]models.NewsItem, 0, len(items))
	for i := range items {
		if matchesQuery(&items[i], q) {
			out = append(out, items[i])
		}
	}
	sortNewest(out)
	return out, nil
}

func (r *RedisStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.NewsItem, error) {
	members, err := r.client.ZRangeByScore(ctx, r.cachedKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list before: %w", err)
	}

	items, err := r.load(ctx, members)
	if err != nil {
		return nil, err
	}

	out := make([]models.NewsItem, 0, len(items))
	for _, item := range items {
		if item.CachedAt.Before(cutoff) {
			out = append(out, item)
		}
	}
	sortOldest(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *RedisStore) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	stale, err := r.ListBefore(ctx, r.now().Add(-maxAge), 0)
	if err != nil {
		return 0, err
	}
	if err := r.remove(ctx, stale); err != nil {
		return 0, err
	}
	return int64(len(stale)), nil
}

func (r *RedisStore) DeleteChannel(ctx context.Context, channelID string) (int64, error) {
	if channelID == "" {
		return r.clear(ctx)
	}

	members, err := r.client.ZRange(ctx, r.channelKey(channelID), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("redis channel members: %w", err)
	}
	items, err := r.load(ctx, members)
	if err != nil {
		return 0, err
	}
	if err := r.remove(ctx, items); err != nil {
		return 0, err
	}
	if err := r.client.Del(ctx, r.channelKey(channelID)).Err(); err != nil {
		return 0, fmt.Errorf("redis delete channel index: %w", err)
	}
	return int64(len(items)), nil
}

func (r *RedisStore) Stats(ctx context.Context, since time.Time) (*Stats, error) {
	members, err := r.client.ZRange(ctx, r.cachedKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis stats: %w", err)
	}
	items, err := r.load(ctx, members)
	if err != nil {
		return nil, err
	}

	b := newStatsBuilder(since)
	for i := range items {
		b.add(&items[i])
	}
	return b.build(), nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close is a no-op; the client is owned by whoever created it.
func (r *RedisStore) Close() error { return nil }

// load fetches records for index members, skipping entries whose record is gone.
func (r *RedisStore) load(ctx context.Context, members []string) ([]models.NewsItem, error) {
	if len(members) == 0 {
		return nil, nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = r.itemKey(m)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	items := make([]models.NewsItem, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var item models.NewsItem
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			return nil, fmt.Errorf("decode %s: %w", members[i], err)
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *RedisStore) remove(ctx context.Context, items []models.NewsItem) error {
	if len(items) == 0 {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, item := range items {
			pipe.Del(ctx, r.itemKey(item.VideoURL))
			pipe.ZRem(ctx, r.cachedKey(), item.VideoURL)
			pipe.ZRem(ctx, r.genreKey(item.Genre), item.VideoURL)
			if item.ChannelID != "" {
				pipe.ZRem(ctx, r.channelKey(item.ChannelID), item.VideoURL)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis remove: %w", err)
	}
	return nil
}

func (r *RedisStore) clear(ctx context.Context) (int64, error) {
	total, err := r.client.ZCard(ctx, r.cachedKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("redis count: %w", err)
	}

	iter := r.client.Scan(ctx, 0, r.prefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("error scanning keys: %w", err)
	}

	if len(keys) > 0 {
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			return 0, fmt.Errorf("error deleting keys: %w", err)
		}
	}
	return total, nil
}
