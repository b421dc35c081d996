package actuator

import (
	"errors"
	"fmt"
)

// Domain errors for the actuator package.
var (
	// ErrUnknownActuator is returned for an id with no configured actuator.
	ErrUnknownActuator = errors.New("actuator: unknown actuator")

	// ErrDisabled is returned when commanding a disabled actuator.
	ErrDisabled = errors.New("actuator: disabled")

	// ErrInvalidState is returned when a state does not apply to the
	// actuator's type (e.g. "open" for a switch).
	ErrInvalidState = errors.New("actuator: invalid state")

	// ErrCommandFailed is returned when the command could not be delivered.
	ErrCommandFailed = errors.New("actuator: command failed")
)

// CommandError carries the reason a command was rejected.
type CommandError struct {
	ActuatorID string
	State      State
	Err        error
}

// Error implements error.
func (e *CommandError) Error() string {
	return fmt.Sprintf("actuator %s: setting %s: %v", e.ActuatorID, e.State, e.Err)
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error {
	return e.Err
}
