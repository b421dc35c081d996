package automation

import (
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-automation/internal/actuator"
	"github.com/nerrad567/gray-logic-automation/internal/bus"
	"github.com/nerrad567/gray-logic-automation/internal/events"
)

// FlavorRollerShutter drives shutters from daylight and temperature.
const FlavorRollerShutter = "roller_shutter"

// RollerShutterOptions configure a RollerShutter.
type RollerShutterOptions struct {
	// OpenNotBefore holds shutters closed in the morning until this time.
	OpenNotBefore TimeOfDay

	// HeatProtection closes shutters during the day once the outdoor
	// temperature reaches HeatThreshold.
	HeatProtection bool
	HeatThreshold  float64

	Location *time.Location
}

// RollerShutter closes shutters at dusk, opens them after sunrise (but not
// before OpenNotBefore), and keeps them closed on hot days. The rule's
// cooldown provides the minimum spacing between movements.
type RollerShutter struct {
	shutters []string
	opts     RollerShutterOptions

	lastTick    time.Time
	dark        *bool
	temperature *float64
	position    actuator.State
}

// NewRollerShutter creates the behaviour.
func NewRollerShutter(shutters []string, opts RollerShutterOptions) *RollerShutter {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &RollerShutter{shutters: shutters, opts: opts}
}

// Flavor implements Behavior.
func (s *RollerShutter) Flavor() string { return FlavorRollerShutter }

// Dependencies implements Behavior.
func (s *RollerShutter) Dependencies() []Dependency {
	deps := []Dependency{
		{Kind: events.KindTick},
		{Kind: events.KindDaylight},
	}
	if s.opts.HeatProtection {
		deps = append(deps, Dependency{Kind: events.KindOutdoorTemperature})
	}
	return deps
}

// Observe implements Behavior.
func (s *RollerShutter) Observe(env bus.Envelope) {
	switch p := env.Payload().(type) {
	case events.Tick:
		s.lastTick = p.At
	case events.DaylightChanged:
		dark := p.IsDark()
		s.dark = &dark
	case events.OutdoorTemperatureChanged:
		c := p.Celsius
		s.temperature = &c
	}
}

// Evaluate implements Behavior.
func (s *RollerShutter) Evaluate(now time.Time) (*Command, error) {
	if !s.lastTick.IsZero() {
		now = s.lastTick
	}
	if s.dark == nil {
		return nil, fmt.Errorf("%w: daylight", ErrDependencyUnavailable)
	}

	var want actuator.State
	var reason string
	switch {
	case *s.dark:
		want, reason = actuator.StateClosed, "sunset"
	case s.opts.HeatProtection && s.temperature != nil && *s.temperature >= s.opts.HeatThreshold:
		want, reason = actuator.StateClosed, fmt.Sprintf("heat protection at %.1f°C", *s.temperature)
	case Of(now, s.opts.Location) >= s.opts.OpenNotBefore:
		want, reason = actuator.StateOpen, "sunrise"
	default:
		return nil, nil
	}

	if want == s.position {
		return nil, nil
	}
	return &Command{Actuators: s.shutters, State: want, Reason: reason}, nil
}

// Committed implements Behavior.
func (s *RollerShutter) Committed(cmd Command) {
	s.position = cmd.State
}

// Reset implements Behavior.
func (s *RollerShutter) Reset() {
	s.lastTick = time.Time{}
	s.dark = nil
	s.temperature = nil
	s.position = ""
}
