package listcache

import (
	"context"
	"time"
)

// startSweeper runs Sweep every interval until Close.
func (c *Cache) startSweeper(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	c.stop = cancel
	c.done = make(chan struct{})
	go c.sweepLoop(ctx, interval)
}

func (c *Cache) sweepLoop(ctx context.Context, interval time.Duration) {
	defer close(c.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-ctx.Done():
			c.opt.Logger.Debug("listcache: sweeper stopped")
			return
		}
	}
}
