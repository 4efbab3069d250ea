package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Pacer enforces a minimum interval between calls across all users of one
// instance. The update run shares a single Pacer for every instrument, so
// the external source sees at most one request per interval regardless of
// which symbol is being fetched.
type Pacer struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	sleep    func(context.Context, time.Duration) error
}

// NewPacer creates a pacer with the given minimum inter-call interval.
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{interval: interval, sleep: sleepCtx}
}

// Wait blocks until at least the configured interval has passed since the
// previous Wait returned a slot. The first call never blocks. Returns the
// context error if cancelled while waiting.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	now := time.Now()
	var delay time.Duration
	if !p.last.IsZero() {
		if elapsed := now.Sub(p.last); elapsed < p.interval {
			delay = p.interval - elapsed
		}
	}
	p.last = now.Add(delay)
	p.mu.Unlock()

	if delay <= 0 {
		return nil
	}
	return p.sleep(ctx, delay)
}

// Interval returns the configured minimum interval.
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
