package actuator

import "context"

// State is a desired actuator output.
type State string

const (
	StateOn     State = "on"
	StateOff    State = "off"
	StateOpen   State = "open"
	StateClosed State = "closed"
)

// Type is the kind of physical actuator.
type Type string

const (
	// TypeSwitch covers lamps, sockets and relays (on/off).
	TypeSwitch Type = "switch"

	// TypeShutter covers roller shutters and blinds (open/closed).
	TypeShutter Type = "shutter"
)

// Accepts reports whether s is a valid state for actuators of type t.
func (t Type) Accepts(s State) bool {
	switch t {
	case TypeSwitch:
		return s == StateOn || s == StateOff
	case TypeShutter:
		return s == StateOpen || s == StateClosed
	default:
		return false
	}
}

// Actuator is one addressable output.
type Actuator struct {
	ID       string `json:"id"`
	Area     string `json:"area"`
	Type     Type   `json:"type"`
	Protocol string `json:"protocol"`
	Address  string `json:"address"`
	Enabled  bool   `json:"enabled"`
}

// Status is an actuator plus its last commanded state.
type Status struct {
	Actuator
	State State `json:"state,omitempty"`
}

// Sink accepts state-change commands.
//
// Commands are not idempotent; callers must not repeat a command for one
// logical trigger.
type Sink interface {
	SetState(ctx context.Context, id string, state State) error
}

type sourceKey struct{}

// Source values recorded with each command.
const (
	SourceAutomation = "automation"
	SourceAPI        = "api"
)

// WithSource tags ctx with the originator of a command.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFrom returns the command originator stored in ctx, defaulting to
// SourceAutomation.
func SourceFrom(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return SourceAutomation
}
