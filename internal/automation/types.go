package automation

import (
	"time"

	"github.com/nerrad567/gray-logic-automation/internal/actuator"
	"github.com/nerrad567/gray-logic-automation/internal/bus"
)

// State is a rule lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateArmed     State = "armed"
	StateTriggered State = "triggered"
	StateCooldown  State = "cooldown"
	StateDisposed  State = "disposed"
)

// Dependency is one bus subscription a behaviour needs.
type Dependency struct {
	Kind    *bus.Kind
	Context string
}

// Command is a desired actuator output produced by a behaviour.
type Command struct {
	Actuators []string       `json:"actuators"`
	State     actuator.State `json:"state"`
	Reason    string         `json:"reason"`
}

// Behavior is the condition and action of one rule flavor. The Rule owns the
// lifecycle and calls every method with its lock held, so implementations
// need no synchronisation of their own.
//
// A behaviour must return a command only when the desired output differs
// from the one it last committed; the sink is not idempotent.
type Behavior interface {
	// Flavor names the rule type, e.g. "conditional_on".
	Flavor() string

	// Dependencies lists the kinds and contexts to subscribe to.
	Dependencies() []Dependency

	// Observe updates the cached view from an envelope.
	Observe(env bus.Envelope)

	// Evaluate returns the command to dispatch, or nil when nothing changes.
	// A missing dependency yields ErrDependencyUnavailable.
	Evaluate(now time.Time) (*Command, error)

	// Committed records that cmd was accepted by every actuator.
	Committed(cmd Command)

	// Reset discards every cached value.
	Reset()
}

// Status is a point-in-time view of a rule.
type Status struct {
	ID            string        `json:"id"`
	Area          string        `json:"area"`
	Flavor        string        `json:"flavor"`
	State         State         `json:"state"`
	Cooldown      time.Duration `json:"cooldown_ns"`
	Subscriptions int           `json:"subscriptions"`
	TimerPending  bool          `json:"timer_pending"`
	Triggers      int           `json:"triggers"`
	LastTrigger   *time.Time    `json:"last_trigger,omitempty"`
	LastError     string        `json:"last_error,omitempty"`
}

// Trigger outcomes.
const (
	TriggerOK     = "ok"
	TriggerFailed = "failed"
)

// TriggerRecord is the history entry for one dispatch attempt.
type TriggerRecord struct {
	ID           string         `json:"id"`
	AutomationID string         `json:"automation_id"`
	Area         string         `json:"area"`
	Flavor       string         `json:"flavor"`
	Actuators    []string       `json:"actuators"`
	State        actuator.State `json:"state"`
	Reason       string         `json:"reason"`
	Status       string         `json:"status"`
	Error        string         `json:"error,omitempty"`
	TriggeredAt  time.Time      `json:"triggered_at"`
}
