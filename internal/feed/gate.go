package feed

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/bilgisen/newsbyte/internal/logger"
)

// DefaultMinDuration separates shorts from regular uploads.
const DefaultMinDuration = 60 * time.Second

// MetadataProvider reports a video's length.
type MetadataProvider interface {
	Duration(ctx context.Context, videoID string) (time.Duration, error)
}

// DurationGate rejects videos shorter than a minimum length. It fails closed:
// a metadata error of any kind counts as short.
type DurationGate struct {
	meta        MetadataProvider
	minDuration time.Duration
	log         *zerolog.Logger
}

func NewDurationGate(meta MetadataProvider, minDuration time.Duration) *DurationGate {
	if minDuration <= 0 {
		minDuration = DefaultMinDuration
	}
	return &DurationGate{
		meta:        meta,
		minDuration: minDuration,
		log:         logger.Get(),
	}
}

// IsShort reports whether the video should be skipped as a short.
func (g *DurationGate) IsShort(ctx context.Context, videoID string) bool {
	d, err := g.meta.Duration(ctx, videoID)
	if err != nil {
		g.log.Debug().Err(err).Str("video_id", videoID).Msg("Duration unavailable, treating as short")
		return true
	}
	return d < g.minDuration
}
