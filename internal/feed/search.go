package feed

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/bilgisen/newsbyte/internal/logger"
	"github.com/bilgisen/newsbyte/internal/youtube"
)

// SearchProvider lists candidate videos. An error means the search itself
// failed, which is different from an empty result.
type SearchProvider interface {
	Search(ctx context.Context, params youtube.SearchParams) ([]youtube.Video, error)
}

// FallbackSearch asks the primary provider first and, when it fails, the
// secondary. Typical wiring is the Data API backed by the channel feed, which
// keeps channel-scoped runs alive once the API quota is spent.
type FallbackSearch struct {
	primary   SearchProvider
	secondary SearchProvider
	log       *zerolog.Logger
}

func NewFallbackSearch(primary, secondary SearchProvider) *FallbackSearch {
	return &FallbackSearch{primary: primary, secondary: secondary, log: logger.Get()}
}

func (s *FallbackSearch) Search(ctx context.Context, params youtube.SearchParams) ([]youtube.Video, error) {
	videos, err := s.primary.Search(ctx, params)
	if err == nil {
		return videos, nil
	}

	s.log.Warn().Err(err).Str("channel_id", params.ChannelID).Msg("Primary search failed, trying fallback")
	videos, fallbackErr := s.secondary.Search(ctx, params)
	if fallbackErr != nil {
		return nil, errors.Join(err, fallbackErr)
	}
	return videos, nil
}
