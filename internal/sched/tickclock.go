// internal/sched/tickclock.go

package sched

import (
	"sync"
	"sync/atomic"
	"time"
)

// TickClock is the periodic compare-match source. It emits ticks and counts
// them atomically; a tick that finds the channel full is counted as an overrun
// instead of blocking the timer.
type TickClock struct {
	Ch       chan struct{}
	count    atomic.Int64
	overruns atomic.Int64
	stop     chan struct{}
	once     sync.Once
}

// NewTickClock creates a clock but does not start it.
func NewTickClock(buffer int) *TickClock {
	return &TickClock{
		Ch:   make(chan struct{}, buffer),
		stop: make(chan struct{}),
	}
}

// Start begins emitting ticks at the given interval.
func (c *TickClock) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.count.Add(1)
				select {
				case c.Ch <- struct{}{}:
				default:
					c.overruns.Add(1)
				}
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop signals the clock to stop emitting ticks. It is safe to call twice.
func (c *TickClock) Stop() {
	c.once.Do(func() { close(c.stop) })
}

// Count returns the current tick count atomically.
func (c *TickClock) Count() int64 {
	return c.count.Load()
}

// Overruns returns how many ticks were dropped because the dispatcher was
// still busy with earlier ones.
func (c *TickClock) Overruns() int64 {
	return c.overruns.Load()
}
