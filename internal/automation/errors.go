package automation

import "errors"

// Domain errors for the automation package.
//
// Rule failures are never returned to publishers; they are wrapped in these
// sentinels and reported to diagnostics. Check them with errors.Is():
//
//	if errors.Is(err, automation.ErrRuleNotFound) {
//	    // handle not found case
//	}
var (
	// ErrRuleNotFound is returned when an automation ID does not exist.
	ErrRuleNotFound = errors.New("automation: not found")

	// ErrDisposed is returned when activating a disposed rule.
	ErrDisposed = errors.New("automation: disposed")

	// ErrAlreadyActive is returned when activating a rule twice.
	ErrAlreadyActive = errors.New("automation: already active")

	// ErrDependencyUnavailable means a condition needs a value that has not
	// arrived yet. The condition is treated as not satisfied.
	ErrDependencyUnavailable = errors.New("automation: dependency unavailable")

	// ErrCommandDispatch wraps an actuator sink failure.
	ErrCommandDispatch = errors.New("automation: command dispatch failed")

	// ErrScheduler wraps a timer registration or cancellation failure.
	ErrScheduler = errors.New("automation: scheduler failure")

	// ErrUnknownFlavor is returned by the factory for an unknown rule type.
	ErrUnknownFlavor = errors.New("automation: unknown flavor")

	// ErrInvalidDefinition is returned when a rule definition is incomplete.
	ErrInvalidDefinition = errors.New("automation: invalid definition")

	// ErrNoActuators is returned when a rule resolves no actuators.
	ErrNoActuators = errors.New("automation: no actuators")
)
