package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisMemo(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	client, err := Connect(ctx, "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	defer client.Close()

	memo := NewRedisMemo(client, "newsbyte:")

	rejected, err := memo.IsRejected(ctx, "aaaaaaaaaaa")
	require.NoError(t, err)
	assert.False(t, rejected)

	require.NoError(t, memo.MarkRejected(ctx, "aaaaaaaaaaa", "short", time.Hour))
	require.NoError(t, memo.MarkRejected(ctx, "bbbbbbbbbbb", "no_transcript", time.Hour))

	rejected, err = memo.IsRejected(ctx, "aaaaaaaaaaa")
	require.NoError(t, err)
	assert.True(t, rejected)

	reason, err := memo.Reason(ctx, "bbbbbbbbbbb")
	require.NoError(t, err)
	assert.Equal(t, "no_transcript", reason)

	mr.FastForward(2 * time.Hour)
	rejected, err = memo.IsRejected(ctx, "aaaaaaaaaaa")
	require.NoError(t, err)
	assert.False(t, rejected, "entry should expire with its TTL")

	require.NoError(t, memo.MarkRejected(ctx, "ccccccccccc", "filtered_noise", time.Hour))
	require.NoError(t, client.Set(ctx, "unrelated", "keep", 0).Err())
	require.NoError(t, memo.Clear(ctx))

	rejected, err = memo.IsRejected(ctx, "ccccccccccc")
	require.NoError(t, err)
	assert.False(t, rejected)
	assert.True(t, mr.Exists("unrelated"), "Clear must only touch memo keys")
}

func TestConnectBadURL(t *testing.T) {
	_, err := Connect(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestMemoryMemo(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	memo := NewMemoryMemo(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, memo.MarkRejected(ctx, "aaaaaaaaaaa", "short", time.Hour))

	rejected, _ := memo.IsRejected(ctx, "aaaaaaaaaaa")
	assert.True(t, rejected)

	now = now.Add(time.Hour)
	rejected, _ = memo.IsRejected(ctx, "aaaaaaaaaaa")
	assert.False(t, rejected)

	require.NoError(t, memo.MarkRejected(ctx, "bbbbbbbbbbb", "too_short", 0))
	require.NoError(t, memo.Clear(ctx))
	rejected, _ = memo.IsRejected(ctx, "bbbbbbbbbbb")
	assert.False(t, rejected)
}
