// Package refresh runs the periodic order refetch.
package refresh

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Func refetches whatever the dashboard shows.
type Func func(ctx context.Context) error

// Poller calls fn every interval. A zero interval disables polling.
type Poller struct {
	interval time.Duration
	fn       Func
	log      *zap.Logger
}

func NewPoller(interval time.Duration, fn Func, log *zap.Logger) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{interval: interval, fn: fn, log: log}
}

// Enabled reports whether Run will poll.
func (p *Poller) Enabled() bool {
	return p.interval > 0
}

// Run polls until ctx is done. Failures are logged and the next attempt
// waits for the next tick.
func (p *Poller) Run(ctx context.Context) error {
	if !p.Enabled() {
		p.log.Info("auto-refresh disabled")
		return nil
	}
	p.log.Info("auto-refresh started", zap.Duration("interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.fn(ctx); err != nil && ctx.Err() == nil {
				p.log.Warn("auto-refresh failed", zap.Error(err))
			}
		}
	}
}
