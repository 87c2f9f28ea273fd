// Package ratelimit bounds publish throughput per channel: a rolling-window
// capacity computed from the ledger, plus a pacing delay between sequential
// publishes inside one cycle so remote APIs never see bursts.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"dealcast/internal/models"
)

// Policy is one channel's throughput configuration.
type Policy struct {
	MaxPerWindow int           // 0 disables the rolling-window cap
	Window       time.Duration // trailing window for MaxPerWindow
	MaxPerRun    int           // 0 disables the per-cycle cap
	PacingDelay  time.Duration // delay between sequential publishes
}

// WindowCounter is the slice of the ledger the limiter needs.
type WindowCounter interface {
	RecentCount(ctx context.Context, channel models.Channel, window time.Duration) (int, error)
}

// Capacity returns how many more posts the channel may publish right now:
// maxPerWindow minus the succeeded count in the trailing window, floored at
// zero, then clamped by the per-run cap. Ledger errors propagate so the
// caller aborts instead of guessing.
func Capacity(ctx context.Context, counter WindowCounter, channel models.Channel, pol Policy) (int, error) {
	capLeft := pol.MaxPerRun
	if capLeft <= 0 {
		capLeft = int(^uint(0) >> 1)
	}

	if pol.MaxPerWindow > 0 && pol.Window > 0 {
		n, err := counter.RecentCount(ctx, channel, pol.Window)
		if err != nil {
			return 0, err
		}
		left := pol.MaxPerWindow - n
		if left < 0 {
			left = 0
		}
		if left < capLeft {
			capLeft = left
		}
	}
	return capLeft, nil
}

// Pacer enforces the inter-post delay. The first Wait in a cycle returns
// immediately (the limiter starts with one token); every later Wait blocks
// until the pacing delay has elapsed since the previous publish.
type Pacer struct {
	lim *rate.Limiter
}

func NewPacer(delay time.Duration) *Pacer {
	if delay <= 0 {
		return &Pacer{}
	}
	return &Pacer{lim: rate.NewLimiter(rate.Every(delay), 1)}
}

func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.lim == nil {
		return nil
	}
	return p.lim.Wait(ctx)
}
