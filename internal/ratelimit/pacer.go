package ratelimit

import (
	"context"
	"time"
)

// Pacer enforces a fixed delay between sequential items in a batch. It is
// an explicit throttle policy against the external platform: removing the
// delay is an out-of-band decision, not a tunable default.
type Pacer interface {
	Wait(ctx context.Context) error
}

type intervalPacer struct {
	interval time.Duration
	last     time.Time
}

// NewPacer returns a pacer that spaces calls at least interval apart.
func NewPacer(interval time.Duration) Pacer {
	return &intervalPacer{interval: interval}
}

func (p *intervalPacer) Wait(ctx context.Context) error {
	if p.interval <= 0 {
		return ctx.Err()
	}

	now := time.Now()
	if p.last.IsZero() {
		p.last = now
		return ctx.Err()
	}

	wait := p.interval - now.Sub(p.last)
	if wait <= 0 {
		p.last = now
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		p.last = time.Now()
		return nil
	}
}

type nopPacer struct{}

// NewNopPacer returns a pacer with zero delay, for tests.
func NewNopPacer() Pacer { return nopPacer{} }

func (nopPacer) Wait(ctx context.Context) error { return ctx.Err() }
