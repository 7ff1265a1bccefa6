package storage

import (
	"context"
	"sync"
	"time"

	"github.com/bilgisen/newsbyte/internal/models"
)

// MemoryStore keeps records in process memory. It backs tests and
// STORE_BACKEND=memory when neither SQLite nor Redis is wanted.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]models.NewsItem
	now   Clock
}

// NewMemoryStore returns an empty store. A nil clock uses time.Now.
func NewMemoryStore(clock Clock) *MemoryStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{
		items: make(map[string]models.NewsItem),
		now:   clock,
	}
}

func (m *MemoryStore) Upsert(ctx context.Context, item *models.NewsItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := prepare(item, m.now()); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.VideoURL] = cloneItem(*item)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, videoURL string) (*models.NewsItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[videoURL]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneItem(item)
	return &out, nil
}

func (m *MemoryStore) IsFresh(ctx context.Context, videoURL string, maxAge time.Duration) (bool, *models.NewsItem, error) {
	item, err := m.Get(ctx, videoURL)
	if err == ErrNotFound {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	return isFresh(item.CachedAt, m.now(), maxAge), item, nil
}

func (m *MemoryStore) Query(ctx context.Context, q Query) ([]models.NewsItem, error) {
	m.mu.RLock()
	out := make([]models.NewsItem, 0)
	for _, item := range m.items {
		if matchesQuery(&item, q) {
			out = append(out, cloneItem(item))
		}
	}
	m.mu.RUnlock()

	sortNewest(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *MemoryStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.NewsItem, error) {
	m.mu.RLock()
	out := make([]models.NewsItem, 0)
	for _, item := range m.items {
		if item.CachedAt.Before(cutoff) {
			out = append(out, cloneItem(item))
		}
	}
	m.mu.RUnlock()

	sortOldest(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for key, item := range m.items {
		if item.CachedAt.Before(cutoff) {
			delete(m.items, key)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryStore) DeleteChannel(ctx context.Context, channelID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if channelID == "" {
		removed := int64(len(m.items))
		m.items = make(map[string]models.NewsItem)
		return removed, nil
	}

	var removed int64
	for key, item := range m.items {
		if item.ChannelID == channelID {
			delete(m.items, key)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryStore) Stats(ctx context.Context, since time.Time) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b := newStatsBuilder(since)
	for _, item := range m.items {
		b.add(&item)
	}
	return b.build(), nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (m *MemoryStore) Close() error { return nil }

// cloneItem copies the pointer field so callers cannot mutate stored state.
func cloneItem(item models.NewsItem) models.NewsItem {
	if item.SummaryCreatedAt != nil {
		t := *item.SummaryCreatedAt
		item.SummaryCreatedAt = &t
	}
	return item
}
