package automation

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock time as minutes since midnight.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM" (24h).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%w: time of day %q: %w", ErrInvalidDefinition, s, err)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

// Of returns the time of day of t in loc.
func Of(t time.Time, loc *time.Location) TimeOfDay {
	if loc != nil {
		t = t.In(loc)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

// String formats as "HH:MM".
func (d TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(d)/60, int(d)%60)
}

// Window is a daily time range [From, To). A window whose From is after its
// To wraps past midnight. From == To is an empty window.
type Window struct {
	From TimeOfDay
	To   TimeOfDay
}

// Contains reports whether d falls inside the window.
func (w Window) Contains(d TimeOfDay) bool {
	switch {
	case w.From == w.To:
		return false
	case w.From < w.To:
		return d >= w.From && d < w.To
	default:
		return d >= w.From || d < w.To
	}
}

// String formats as "HH:MM-HH:MM".
func (w Window) String() string {
	return w.From.String() + "-" + w.To.String()
}
