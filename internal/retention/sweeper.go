package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bilgisen/newsbyte/internal/logger"
	"github.com/bilgisen/newsbyte/internal/models"
	"github.com/bilgisen/newsbyte/internal/storage"
)

const DefaultBatchSize = 200

// Archiver stores expired items somewhere outside the cache.
type Archiver interface {
	Archive(ctx context.Context, items []models.NewsItem) (string, error)
}

// Result describes one sweep.
type Result struct {
	Archived int      `json:"archived"`
	Pruned   int64    `json:"pruned"`
	Objects  []string `json:"objects,omitempty"`
}

// Sweeper removes records older than MaxAge, archiving them first when an
// Archiver is set. Records are never pruned if archiving fails.
type Sweeper struct {
	store     storage.Store
	archiver  Archiver
	maxAge    time.Duration
	interval  time.Duration
	batchSize int
	now       func() time.Time
	log       *zerolog.Logger
}

func NewSweeper(store storage.Store, archiver Archiver, maxAge, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:     store,
		archiver:  archiver,
		maxAge:    maxAge,
		interval:  interval,
		batchSize: DefaultBatchSize,
		now:       time.Now,
		log:       logger.Component("retention"),
	}
}

// WithClock overrides the sweeper's notion of now.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

func (s *Sweeper) SweepOnce(ctx context.Context) (*Result, error) {
	res := &Result{}
	if s.archiver != nil {
		expired, err := s.store.ListBefore(ctx, s.now().Add(-s.maxAge), 0)
		if err != nil {
			return nil, fmt.Errorf("list expired: %w", err)
		}
		for start := 0; start < len(expired); start += s.batchSize {
			end := min(start+s.batchSize, len(expired))
			key, err := s.archiver.Archive(ctx, expired[start:end])
			if err != nil {
				return res, fmt.Errorf("archive expired: %w", err)
			}
			res.Archived += end - start
			res.Objects = append(res.Objects, key)
		}
	}

	pruned, err := s.store.Prune(ctx, s.maxAge)
	if err != nil {
		return res, fmt.Errorf("prune: %w", err)
	}
	res.Pruned = pruned

	s.log.Info().
		Int("archived", res.Archived).
		Int64("pruned", res.Pruned).
		Dur("max_age", s.maxAge).
		Msg("Retention sweep finished")
	return res, nil
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.Error().Err(err).Msg("Retention sweep failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
