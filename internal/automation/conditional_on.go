package automation

import (
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-automation/internal/actuator"
	"github.com/nerrad567/gray-logic-automation/internal/bus"
	"github.com/nerrad567/gray-logic-automation/internal/events"
)

// FlavorConditionalOn turns an area on while motion is present in the dark.
const FlavorConditionalOn = "conditional_on"

// ConditionalOn switches the area's actuators on when motion is detected and
// it is dark, and off again once motion clears or daylight returns. It only
// switches off what it switched on itself.
type ConditionalOn struct {
	area      string
	actuators []string

	motion *bool
	dark   *bool
	active bool
}

// NewConditionalOn creates the behaviour for area.
func NewConditionalOn(area string, actuators []string) *ConditionalOn {
	return &ConditionalOn{area: area, actuators: actuators}
}

// Flavor implements Behavior.
func (c *ConditionalOn) Flavor() string { return FlavorConditionalOn }

// Dependencies implements Behavior.
func (c *ConditionalOn) Dependencies() []Dependency {
	return []Dependency{
		{Kind: events.KindMotion, Context: c.area},
		{Kind: events.KindDaylight},
	}
}

// Observe implements Behavior.
//
// Motion must belong to the rule's area. A payload without an area is
// attributed to its envelope context, so "hallway" motion never reaches a
// "hall" rule through the substring filter.
func (c *ConditionalOn) Observe(env bus.Envelope) {
	switch p := env.Payload().(type) {
	case events.MotionChanged:
		area := p.Area
		if area == "" {
			area = env.Context()
		}
		if area != "" && area != c.area {
			return
		}
		detected := p.Detected
		c.motion = &detected
	case events.DaylightChanged:
		dark := p.IsDark()
		c.dark = &dark
	}
}

// Evaluate implements Behavior.
func (c *ConditionalOn) Evaluate(time.Time) (*Command, error) {
	switch {
	case c.dark == nil:
		return nil, fmt.Errorf("%w: daylight", ErrDependencyUnavailable)
	case c.motion == nil:
		return nil, fmt.Errorf("%w: motion in %s", ErrDependencyUnavailable, c.area)
	}

	want := *c.motion && *c.dark
	switch {
	case want && !c.active:
		return &Command{Actuators: c.actuators, State: actuator.StateOn, Reason: "motion detected while dark"}, nil
	case !want && c.active:
		reason := "motion cleared"
		if !*c.dark {
			reason = "daylight"
		}
		return &Command{Actuators: c.actuators, State: actuator.StateOff, Reason: reason}, nil
	default:
		return nil, nil
	}
}

// Committed implements Behavior.
func (c *ConditionalOn) Committed(cmd Command) {
	c.active = cmd.State == actuator.StateOn
}

// Reset implements Behavior.
func (c *ConditionalOn) Reset() {
	c.motion = nil
	c.dark = nil
	c.active = false
}
