package cache

import (
	"context"
	"sync"
	"time"
)

type memoEntry struct {
	reason  string
	expires time.Time
}

// MemoryMemo is the in-process rejection memo used when Redis is not configured.
type MemoryMemo struct {
	mu   sync.Mutex
	data map[string]memoEntry
	now  func() time.Time
}

// NewMemoryMemo returns an empty memo. A nil clock uses time.Now.
func NewMemoryMemo(clock func() time.Time) *MemoryMemo {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryMemo{
		data: make(map[string]memoEntry),
		now:  clock,
	}
}

func (m *MemoryMemo) IsRejected(ctx context.Context, videoID string) (bool, error) {
	reason, _ := m.Reason(ctx, videoID)
	return reason != "", nil
}

func (m *MemoryMemo) Reason(ctx context.Context, videoID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.data[videoID]
	if !ok {
		return "", nil
	}
	if !entry.expires.IsZero() && !m.now().Before(entry.expires) {
		delete(m.data, videoID)
		return "", nil
	}
	return entry.reason, nil
}

func (m *MemoryMemo) MarkRejected(ctx context.Context, videoID, reason string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memoEntry{reason: reason}
	if ttl > 0 {
		entry.expires = m.now().Add(ttl)
	}
	m.data[videoID] = entry
	return nil
}

func (m *MemoryMemo) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.data = make(map[string]memoEntry)
	m.mu.Unlock()
	return nil
}
