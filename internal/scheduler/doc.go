// Package scheduler provides timer callbacks for automations.
//
// Scheduler is the port automations depend on; TimerScheduler is the
// in-process implementation. Callbacks run on their own goroutine, never on
// the goroutine that scheduled them.
package scheduler
