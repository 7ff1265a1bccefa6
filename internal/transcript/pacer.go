package transcript

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/bilgisen/newsbyte/internal/utils"
)

// Pacer spaces out transcript requests: at most one per minimum interval,
// each followed by a random jitter so requests never land on a fixed cadence.
type Pacer struct {
	limiter   *rate.Limiter
	jitterMin time.Duration
	jitterMax time.Duration
	sleep     utils.SleepFunc
}

// NewPacer builds a pacer. A zero interval disables the minimum spacing.
func NewPacer(minInterval, jitterMin, jitterMax time.Duration) *Pacer {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Pacer{
		limiter:   rate.NewLimiter(limit, 1),
		jitterMin: jitterMin,
		jitterMax: jitterMax,
		sleep:     utils.Sleep,
	}
}

// WithSleep replaces the jitter sleep, mostly for tests.
func (p *Pacer) WithSleep(sleep utils.SleepFunc) *Pacer {
	p.sleep = sleep
	return p
}

// Wait blocks until the next request may be sent.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	return p.sleep(ctx, utils.Jitter(p.jitterMin, p.jitterMax))
}
