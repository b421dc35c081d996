package automation

import (
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-automation/internal/actuator"
	"github.com/nerrad567/gray-logic-automation/internal/bus"
	"github.com/nerrad567/gray-logic-automation/internal/events"
)

func env(p bus.Payload) bus.Envelope {
	return bus.NewEnvelope(p, "", time.Time{})
}

func at(hh, mm int) time.Time {
	return time.Date(2026, 6, 21, hh, mm, 0, 0, time.UTC)
}

// step feeds envelopes to a behaviour, evaluates, and commits any command.
func step(t *testing.T, b Behavior, now time.Time, payloads ...bus.Payload) *Command {
	t.Helper()
	for _, p := range payloads {
		b.Observe(env(p))
	}
	cmd, err := b.Evaluate(now)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if cmd != nil {
		b.Committed(*cmd)
	}
	return cmd
}

func wantState(t *testing.T, cmd *Command, want actuator.State) {
	t.Helper()
	switch {
	case want == "" && cmd != nil:
		t.Errorf("got command %s, want none", cmd.State)
	case want != "" && cmd == nil:
		t.Errorf("got no command, want %s", want)
	case want != "" && cmd.State != want:
		t.Errorf("got command %s, want %s", cmd.State, want)
	}
}

// ─── ConditionalOn ──────────────────────────────────────────────────────────

func TestConditionalOn_Dependencies(t *testing.T) {
	c := NewConditionalOn("hallway", []string{"l"})
	deps := c.Dependencies()
	if len(deps) != 2 {
		t.Fatalf("Dependencies() = %d, want 2", len(deps))
	}
	if deps[0].Kind != events.KindMotion || deps[0].Context != "hallway" {
		t.Errorf("motion dependency = %+v", deps[0])
	}
	if deps[1].Kind != events.KindDaylight || deps[1].Context != "" {
		t.Errorf("daylight dependency = %+v", deps[1])
	}
}

func TestConditionalOn_Sequence(t *testing.T) {
	c := NewConditionalOn("hallway", []string{"hallway-light"})
	night := events.DaylightChanged{Phase: events.PhaseNight}
	day := events.DaylightChanged{Phase: events.PhaseDay}
	motion := func(d bool) events.MotionChanged {
		return events.MotionChanged{Area: "hallway", Detected: d}
	}

	wantState(t, step(t, c, at(22, 0), night, motion(true)), actuator.StateOn)
	wantState(t, step(t, c, at(22, 1), motion(true)), "")
	wantState(t, step(t, c, at(22, 2), motion(false)), actuator.StateOff)
	wantState(t, step(t, c, at(22, 3), motion(false)), "")
	wantState(t, step(t, c, at(22, 4), motion(true)), actuator.StateOn)
	wantState(t, step(t, c, at(6, 0), day), actuator.StateOff)
	wantState(t, step(t, c, at(6, 1), motion(true)), "")
}

func TestConditionalOn_NeverOffWithoutOn(t *testing.T) {
	c := NewConditionalOn("hallway", []string{"hallway-light"})
	wantState(t, step(t, c, at(12, 0),
		events.DaylightChanged{Phase: events.PhaseDay},
		events.MotionChanged{Area: "hallway", Detected: false},
	), "")
}

func TestConditionalOn_IgnoresOtherArea(t *testing.T) {
	c := NewConditionalOn("hall", []string{"l"})
	c.Observe(env(events.DaylightChanged{Phase: events.PhaseNight}))
	c.Observe(env(events.MotionChanged{Area: "hallway", Detected: true}))

	if _, err := c.Evaluate(at(22, 0)); !errors.Is(err, ErrDependencyUnavailable) {
		t.Errorf("Evaluate() error = %v, want ErrDependencyUnavailable", err)
	}
}

func TestConditionalOn_MissingDependencies(t *testing.T) {
	c := NewConditionalOn("hallway", []string{"l"})
	if _, err := c.Evaluate(at(0, 0)); !errors.Is(err, ErrDependencyUnavailable) {
		t.Errorf("no values: error = %v", err)
	}
	c.Observe(env(events.MotionChanged{Area: "hallway", Detected: true}))
	if _, err := c.Evaluate(at(0, 0)); !errors.Is(err, ErrDependencyUnavailable) {
		t.Errorf("no daylight: error = %v", err)
	}
}

func TestConditionalOn_Reset(t *testing.T) {
	c := NewConditionalOn("hallway", []string{"l"})
	step(t, c, at(22, 0), events.DaylightChanged{Phase: events.PhaseNight}, events.MotionChanged{Area: "hallway", Detected: true})
	c.Reset()
	if _, err := c.Evaluate(at(22, 0)); !errors.Is(err, ErrDependencyUnavailable) {
		t.Errorf("after Reset error = %v, want ErrDependencyUnavailable", err)
	}
}

// ─── TurnOnAndOff ───────────────────────────────────────────────────────────

func TestTurnOnAndOff_Window(t *testing.T) {
	b := NewTurnOnAndOff([]string{"porch"}, Window{From: 18 * 60, To: 23 * 60}, false, time.UTC)

	if len(b.Dependencies()) != 1 || b.Dependencies()[0].Kind != events.KindTick {
		t.Errorf("Dependencies() = %+v", b.Dependencies())
	}

	wantState(t, step(t, b, time.Time{}, events.Tick{At: at(17, 59)}), "")
	wantState(t, step(t, b, time.Time{}, events.Tick{At: at(18, 0)}), actuator.StateOn)
	wantState(t, step(t, b, time.Time{}, events.Tick{At: at(20, 0)}), "")
	wantState(t, step(t, b, time.Time{}, events.Tick{At: at(23, 0)}), actuator.StateOff)
	wantState(t, step(t, b, time.Time{}, events.Tick{At: at(23, 30)}), "")
}

func TestTurnOnAndOff_CrossesMidnight(t *testing.T) {
	b := NewTurnOnAndOff([]string{"path"}, Window{From: 22 * 60, To: 6 * 60}, false, time.UTC)

	wantState(t, step(t, b, time.Time{}, events.Tick{At: at(23, 0)}), actuator.StateOn)
	wantState(t, step(t, b, time.Time{}, events.Tick{At: at(2, 0)}), "")
	wantState(t, step(t, b, time.Time{}, events.Tick{At: at(6, 0)}), actuator.StateOff)
}

func TestTurnOnAndOff_OnlyWhenDark(t *testing.T) {
	b := NewTurnOnAndOff([]string{"porch"}, Window{From: 16 * 60, To: 23 * 60}, true, time.UTC)

	if len(b.Dependencies()) != 2 {
		t.Fatalf("Dependencies() = %d, want 2", len(b.Dependencies()))
	}

	b.Observe(env(events.Tick{At: at(17, 0)}))
	if _, err := b.Evaluate(time.Time{}); !errors.Is(err, ErrDependencyUnavailable) {
		t.Errorf("no daylight: error = %v", err)
	}

	wantState(t, step(t, b, time.Time{}, events.DaylightChanged{Phase: events.PhaseDay}), "")
	wantState(t, step(t, b, time.Time{}, events.DaylightChanged{Phase: events.PhaseNight}), actuator.StateOn)
	wantState(t, step(t, b, time.Time{}, events.DaylightChanged{Phase: events.PhaseDay}), actuator.StateOff)
}

func TestTurnOnAndOff_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	b := NewTurnOnAndOff([]string{"porch"}, Window{From: 18 * 60, To: 19 * 60}, false, loc)

	// 16:30 UTC is 18:30 local.
	wantState(t, step(t, b, time.Time{}, events.Tick{At: at(16, 30)}), actuator.StateOn)
}

// ─── RollerShutter ──────────────────────────────────────────────────────────

func TestRollerShutter_DayNight(t *testing.T) {
	s := NewRollerShutter([]string{"office-shutter"}, RollerShutterOptions{
		OpenNotBefore: 7 * 60,
		Location:      time.UTC,
	})

	if len(s.Dependencies()) != 2 {
		t.Errorf("Dependencies() = %d, want 2 without heat protection", len(s.Dependencies()))
	}

	wantState(t, step(t, s, time.Time{}, events.Tick{At: at(21, 0)}, events.DaylightChanged{Phase: events.PhaseNight}), actuator.StateClosed)
	wantState(t, step(t, s, time.Time{}, events.Tick{At: at(22, 0)}), "")

	// Sunrise at 05:30 but not open before 07:00.
	wantState(t, step(t, s, time.Time{}, events.Tick{At: at(5, 30)}, events.DaylightChanged{Phase: events.PhaseDay}), "")
	wantState(t, step(t, s, time.Time{}, events.Tick{At: at(6, 59)}), "")
	wantState(t, step(t, s, time.Time{}, events.Tick{At: at(7, 0)}), actuator.StateOpen)
	wantState(t, step(t, s, time.Time{}, events.Tick{At: at(8, 0)}), "")
}

func TestRollerShutter_HeatProtection(t *testing.T) {
	s := NewRollerShutter([]string{"office-shutter"}, RollerShutterOptions{
		HeatProtection: true,
		HeatThreshold:  28,
		Location:       time.UTC,
	})

	if len(s.Dependencies()) != 3 {
		t.Errorf("Dependencies() = %d, want 3", len(s.Dependencies()))
	}

	wantState(t, step(t, s, time.Time{}, events.Tick{At: at(9, 0)}, events.DaylightChanged{Phase: events.PhaseDay}), actuator.StateOpen)
	wantState(t, step(t, s, time.Time{}, events.OutdoorTemperatureChanged{Celsius: 27.9}), "")
	wantState(t, step(t, s, time.Time{}, events.OutdoorTemperatureChanged{Celsius: 28}), actuator.StateClosed)
	wantState(t, step(t, s, time.Time{}, events.OutdoorTemperatureChanged{Celsius: 31}), "")
	wantState(t, step(t, s, time.Time{}, events.OutdoorTemperatureChanged{Celsius: 24}), actuator.StateOpen)
}

func TestRollerShutter_MissingDaylight(t *testing.T) {
	s := NewRollerShutter([]string{"s"}, RollerShutterOptions{})
	s.Observe(env(events.Tick{At: at(9, 0)}))
	if _, err := s.Evaluate(time.Time{}); !errors.Is(err, ErrDependencyUnavailable) {
		t.Errorf("error = %v, want ErrDependencyUnavailable", err)
	}
}

// ─── TimeOfDay ──────────────────────────────────────────────────────────────

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{"00:00", 0, false},
		{"07:30", 7*60 + 30, false},
		{"23:59", 23*60 + 59, false},
		{"24:00", 0, true},
		{"7pm", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTimeOfDay(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidDefinition) {
				t.Errorf("error %v should wrap ErrInvalidDefinition", err)
			}
			if got != tt.want {
				t.Errorf("ParseTimeOfDay(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestWindow_Contains(t *testing.T) {
	tests := []struct {
		name string
		w    Window
		at   TimeOfDay
		want bool
	}{
		{"inside", Window{60, 120}, 90, true},
		{"at start", Window{60, 120}, 60, true},
		{"at end", Window{60, 120}, 120, false},
		{"before", Window{60, 120}, 30, false},
		{"wrap late", Window{22 * 60, 6 * 60}, 23 * 60, true},
		{"wrap early", Window{22 * 60, 6 * 60}, 5 * 60, true},
		{"wrap outside", Window{22 * 60, 6 * 60}, 12 * 60, false},
		{"empty", Window{60, 60}, 60, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.w.Contains(tt.at); got != tt.want {
				t.Errorf("%s.Contains(%s) = %v, want %v", tt.w, tt.at, got, tt.want)
			}
		})
	}
}
