package environment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nathan-osman/go-sunrise"

	"github.com/nerrad567/gray-logic-automation/internal/events"
	"github.com/nerrad567/gray-logic-automation/internal/scheduler"
)

// defaultCheckInterval is how often Daylight re-evaluates the phase.
const defaultCheckInterval = time.Minute

// DaylightConfig configures the daylight adapter.
type DaylightConfig struct {
	Latitude  float64
	Longitude float64
	Location  *time.Location

	// SunriseOffset shifts the start of day (positive = later).
	SunriseOffset time.Duration
	// SunsetOffset shifts the start of night (negative = earlier).
	SunsetOffset time.Duration

	CheckInterval time.Duration
}

// Daylight publishes events.DaylightChanged on phase transitions.
//
// Thread Safety: all methods are safe for concurrent use.
type Daylight struct {
	cfg   DaylightConfig
	pub   Publisher
	sched scheduler.Scheduler
	now   func() time.Time

	logger Logger

	mu      sync.Mutex
	ctx     context.Context
	current events.DaylightChanged
	known   bool
	handle  scheduler.Handle
}

// NewDaylight creates a daylight adapter.
func NewDaylight(cfg DaylightConfig, pub Publisher, sched scheduler.Scheduler) *Daylight {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = defaultCheckInterval
	}
	return &Daylight{
		cfg:    cfg,
		pub:    pub,
		sched:  sched,
		now:    time.Now,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger.
func (d *Daylight) SetLogger(logger Logger) {
	if logger != nil {
		d.logger = logger
	}
}

// Start publishes the current phase and begins periodic checks.
func (d *Daylight) Start(ctx context.Context) error {
	d.mu.Lock()
	d.ctx = ctx
	d.mu.Unlock()

	d.check(true)

	h, err := d.sched.ScheduleRecurring(d.cfg.CheckInterval, func() { d.check(false) })
	if err != nil {
		return fmt.Errorf("scheduling daylight checks: %w", err)
	}
	d.mu.Lock()
	d.handle = h
	d.mu.Unlock()
	return nil
}

// Stop cancels periodic checks.
func (d *Daylight) Stop() error {
	d.mu.Lock()
	h := d.handle
	d.handle = scheduler.Handle{}
	d.mu.Unlock()
	if h.IsZero() {
		return nil
	}
	return d.sched.Cancel(h)
}

// Current returns the last published phase.
func (d *Daylight) Current() (events.DaylightChanged, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current, d.known
}

// Compute returns the daylight state at t.
//
// When the sun neither rises nor sets on t's date (polar day or night) the
// previous phase is kept, defaulting to day.
func (d *Daylight) Compute(t time.Time) events.DaylightChanged {
	local := t.In(d.cfg.Location)
	rise, set := sunrise.SunriseSunset(d.cfg.Latitude, d.cfg.Longitude, local.Year(), local.Month(), local.Day())

	if rise.IsZero() || set.IsZero() {
		d.mu.Lock()
		phase := d.current.Phase
		d.mu.Unlock()
		if phase == "" {
			phase = events.PhaseDay
		}
		return events.DaylightChanged{Phase: phase}
	}

	rise = rise.Add(d.cfg.SunriseOffset)
	set = set.Add(d.cfg.SunsetOffset)

	phase := events.PhaseNight
	if !t.Before(rise) && t.Before(set) {
		phase = events.PhaseDay
	}
	return events.DaylightChanged{
		Phase:   phase,
		Sunrise: rise.In(d.cfg.Location),
		Sunset:  set.In(d.cfg.Location),
	}
}

// check publishes when the phase differs from the last one, or always when
// force is set.
func (d *Daylight) check(force bool) {
	next := d.Compute(d.now())

	d.mu.Lock()
	changed := !d.known || d.current.Phase != next.Phase
	d.current = next
	d.known = true
	ctx := d.ctx
	d.mu.Unlock()

	if !changed && !force {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.logger.Info("daylight phase", "phase", next.Phase, "sunrise", next.Sunrise, "sunset", next.Sunset)
	if err := d.pub.Publish(ctx, next, ""); err != nil {
		d.logger.Warn("publishing daylight failed", "error", err)
	}
}
