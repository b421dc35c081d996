package environment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-automation/internal/events"
	"github.com/nerrad567/gray-logic-automation/internal/scheduler"
)

// Clock publishes events.Tick at a fixed interval.
type Clock struct {
	interval time.Duration
	pub      Publisher
	sched    scheduler.Scheduler
	now      func() time.Time
	logger   Logger

	mu     sync.Mutex
	handle scheduler.Handle
}

// NewClock creates a clock.
func NewClock(interval time.Duration, pub Publisher, sched scheduler.Scheduler) *Clock {
	return &Clock{
		interval: interval,
		pub:      pub,
		sched:    sched,
		now:      time.Now,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger.
func (c *Clock) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// Start publishes one tick immediately and then one per interval.
func (c *Clock) Start(ctx context.Context) error {
	c.tick(ctx)

	h, err := c.sched.ScheduleRecurring(c.interval, func() { c.tick(ctx) })
	if err != nil {
		return fmt.Errorf("scheduling clock: %w", err)
	}
	c.mu.Lock()
	c.handle = h
	c.mu.Unlock()
	return nil
}

// Stop cancels the ticks.
func (c *Clock) Stop() error {
	c.mu.Lock()
	h := c.handle
	c.handle = scheduler.Handle{}
	c.mu.Unlock()
	if h.IsZero() {
		return nil
	}
	return c.sched.Cancel(h)
}

func (c *Clock) tick(ctx context.Context) {
	if err := c.pub.Publish(ctx, events.Tick{At: c.now()}, ""); err != nil {
		c.logger.Debug("tick dropped", "error", err)
	}
}
