package automation

import (
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-automation/internal/actuator"
	"github.com/nerrad567/gray-logic-automation/internal/bus"
	"github.com/nerrad567/gray-logic-automation/internal/events"
)

// FlavorTurnOnAndOff switches actuators on inside a daily window.
const FlavorTurnOnAndOff = "turn_on_and_off"

// TurnOnAndOff keeps actuators on inside a daily time window and off
// outside it. It is driven by clock ticks; with onlyWhenDark it also needs
// daylight and stays off during the day.
type TurnOnAndOff struct {
	actuators    []string
	window       Window
	onlyWhenDark bool
	loc          *time.Location

	lastTick time.Time
	dark     *bool
	active   bool
}

// NewTurnOnAndOff creates the behaviour. A nil loc uses time.Local.
func NewTurnOnAndOff(actuators []string, window Window, onlyWhenDark bool, loc *time.Location) *TurnOnAndOff {
	if loc == nil {
		loc = time.Local
	}
	return &TurnOnAndOff{
		actuators:    actuators,
		window:       window,
		onlyWhenDark: onlyWhenDark,
		loc:          loc,
	}
}

// Flavor implements Behavior.
func (t *TurnOnAndOff) Flavor() string { return FlavorTurnOnAndOff }

// Dependencies implements Behavior.
func (t *TurnOnAndOff) Dependencies() []Dependency {
	deps := []Dependency{{Kind: events.KindTick}}
	if t.onlyWhenDark {
		deps = append(deps, Dependency{Kind: events.KindDaylight})
	}
	return deps
}

// Observe implements Behavior.
func (t *TurnOnAndOff) Observe(env bus.Envelope) {
	switch p := env.Payload().(type) {
	case events.Tick:
		t.lastTick = p.At
	case events.DaylightChanged:
		dark := p.IsDark()
		t.dark = &dark
	}
}

// Evaluate implements Behavior.
func (t *TurnOnAndOff) Evaluate(now time.Time) (*Command, error) {
	if !t.lastTick.IsZero() {
		now = t.lastTick
	}
	if t.onlyWhenDark && t.dark == nil {
		return nil, fmt.Errorf("%w: daylight", ErrDependencyUnavailable)
	}

	inWindow := t.window.Contains(Of(now, t.loc))
	want := inWindow && (!t.onlyWhenDark || *t.dark)

	switch {
	case want && !t.active:
		return &Command{Actuators: t.actuators, State: actuator.StateOn, Reason: "window " + t.window.String() + " open"}, nil
	case !want && t.active:
		reason := "window " + t.window.String() + " closed"
		if inWindow {
			reason = "daylight"
		}
		return &Command{Actuators: t.actuators, State: actuator.StateOff, Reason: reason}, nil
	default:
		return nil, nil
	}
}

// Committed implements Behavior.
func (t *TurnOnAndOff) Committed(cmd Command) {
	t.active = cmd.State == actuator.StateOn
}

// Reset implements Behavior.
func (t *TurnOnAndOff) Reset() {
	t.lastTick = time.Time{}
	t.dark = nil
	t.active = false
}
