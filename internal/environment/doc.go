// Package environment publishes the ambient inputs automations depend on:
// the daylight phase and the clock tick.
//
// Daylight computes sunrise and sunset for the site location (with optional
// offsets) and publishes events.DaylightChanged whenever the phase flips,
// plus once at start so rules do not wait for the next dusk. Clock publishes
// events.Tick at a fixed interval.
//
// Both run on a scheduler.Scheduler and publish on the bus with an empty
// context, so every rule receives them regardless of its area filter.
package environment
