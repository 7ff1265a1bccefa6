package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilgisen/newsbyte/internal/models"
	"github.com/bilgisen/newsbyte/internal/storage"
)

type fakeArchiver struct {
	batches [][]models.NewsItem
	err     error
}

func (f *fakeArchiver) Archive(ctx context.Context, items []models.NewsItem) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.batches = append(f.batches, items)
	return "batch", nil
}

// seed writes n items at each of the given ages relative to base.
func seed(t *testing.T, ages ...time.Duration) (storage.Store, *time.Time) {
	t.Helper()
	base := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	now := base
	store := storage.NewMemoryStore(func() time.Time { return now })
	for i, age := range ages {
		now = base.Add(-age)
		id := string(rune('a'+i)) + "aaaaaaaaaa"
		require.NoError(t, store.Upsert(context.Background(), &models.NewsItem{VideoID: id, Title: id, Transcript: "text"}))
	}
	now = base
	return store, &now
}

func TestSweepOnce_ArchivesThenPrunes(t *testing.T) {
	day := 24 * time.Hour
	store, now := seed(t, 10*day, 8*day, 9*day, time.Hour)
	arch := &fakeArchiver{}

	s := NewSweeper(store, arch, 7*day, time.Hour).WithClock(func() time.Time { return *now })
	s.batchSize = 2

	res, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Archived)
	assert.Equal(t, int64(3), res.Pruned)
	require.Len(t, arch.batches, 2)
	assert.Equal(t, "aaaaaaaaaaa", arch.batches[0][0].VideoID, "oldest first")

	left, err := store.Query(context.Background(), storage.Query{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "daaaaaaaaaa", left[0].VideoID)
}

func TestSweepOnce_ArchiveFailureKeepsRecords(t *testing.T) {
	store, now := seed(t, 10*24*time.Hour)
	s := NewSweeper(store, &fakeArchiver{err: errors.New("bucket gone")}, 7*24*time.Hour, 0).
		WithClock(func() time.Time { return *now })

	_, err := s.SweepOnce(context.Background())
	assert.ErrorContains(t, err, "bucket gone")

	left, err := store.Query(context.Background(), storage.Query{})
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestSweepOnce_NoArchiver(t *testing.T) {
	store, _ := seed(t, 10*24*time.Hour, time.Hour)
	s := NewSweeper(store, nil, 7*24*time.Hour, 0)

	res, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Archived)
	assert.Equal(t, int64(1), res.Pruned)
}

func TestRun_StopsOnCancel(t *testing.T) {
	store, _ := seed(t)
	s := NewSweeper(store, nil, time.Hour, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
