// Package automation provides the rule engine for Gray Logic Core.
//
// A rule is a state machine that subscribes to bus payloads, keeps the
// latest value of each dependency, and commands actuators when its
// condition changes. Rule flavors (ConditionalOn, TurnOnAndOff,
// RollerShutter) supply only the condition and action; the lifecycle is
// shared.
//
// Architecture:
//
//	┌───────────────────────────────────────────────────────┐
//	│                  Engine (engine.go)                    │
//	│  Register / Remove / RemoveArea / List / Close         │
//	│  ┌──────────────┐    ┌──────────────┐                 │
//	│  │   Factory    │───▶│     Rule     │                 │
//	│  │ (factory.go) │    │  (rule.go)   │                 │
//	│  └──────────────┘    └──────────────┘                 │
//	│        │                    │                          │
//	│        ▼                    ▼                          │
//	│  ┌──────────────────────────────────────────────┐     │
//	│  │  Per-envelope pipeline (rule lock held)       │     │
//	│  │  1. Observe: update cached dependency values  │     │
//	│  │  2. Evaluate (Armed only)                     │     │
//	│  │  3. Dispatch command to actuator.Sink         │     │
//	│  │  4. Arm cooldown timer via scheduler          │     │
//	│  └──────────────────────────────────────────────┘     │
//	│  After unlock: state events, trigger history          │
//	└───────────────────────────────────────────────────────┘
//
// # Lifecycle
//
//	Idle ──Activate──▶ Armed ──condition──▶ Triggered ──▶ Cooldown ──timer──▶ Armed
//	  any state ──Dispose──▶ Disposed
//
// With a zero cooldown a rule returns to Armed straight after dispatch. A
// failed dispatch returns it to Armed without retrying, and so does a
// scheduler failure while arming the cooldown. While in Cooldown a rule
// keeps updating its cached values but does not evaluate. When the timer
// fires the rule evaluates once against those values and dispatches only a
// command that differs from the last one sent, so a motion sensor that
// cleared during the cooldown still switches the light off.
//
// # Identity
//
// A rule's ID is "<flavor>:<area>". Registering a rule whose ID is already
// live disposes the old instance first.
//
// # Thread Safety
//
// Engine and Rule are safe for concurrent use. Each rule serialises its own
// events on a private mutex.
//
// # Usage
//
//	engine := automation.NewEngine(b, sink, sched, journal, repo, log)
//	factory := automation.NewFactory(sink, loc, automation.Defaults{Cooldown: time.Minute})
//
//	spec, err := factory.Build("hallway", automation.Definition{Flavor: automation.FlavorConditionalOn})
//	if err != nil {
//	    return err
//	}
//	rule, err := engine.Register(spec)
package automation
