package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-automation/internal/actuator"
	"github.com/nerrad567/gray-logic-automation/internal/bus"
	"github.com/nerrad567/gray-logic-automation/internal/diagnostics"
	"github.com/nerrad567/gray-logic-automation/internal/scheduler"
)

// defaultCommandTimeout bounds one dispatch to the actuator sink.
const defaultCommandTimeout = 5 * time.Second

// Subscriber is the part of the bus a rule needs. *bus.Bus satisfies it.
type Subscriber interface {
	Subscribe(kind *bus.Kind, filter string, handler bus.Handler) (bus.Token, error)
	Unsubscribe(token bus.Token) bool
}

// Ports are the collaborators a rule talks to.
type Ports struct {
	Bus       Subscriber
	Sink      actuator.Sink
	Scheduler scheduler.Scheduler
	Reporter  diagnostics.Reporter
}

// Hooks are invoked after the rule lock has been released.
type Hooks struct {
	OnTransition func(id string, from, to State)
	OnTrigger    func(rec TriggerRecord)
}

type transition struct {
	from, to State
}

// Rule runs one Behavior through the Idle → Armed → Triggered → Cooldown →
// Armed lifecycle.
//
// Every envelope, timer callback and Dispose call is serialised on the rule's
// own mutex, so a behaviour never sees two events at once. At most one
// cooldown timer is pending; arming a new one cancels the previous one, and
// a generation counter makes a late-firing cancelled timer a no-op.
//
// Thread Safety: all methods are safe for concurrent use.
type Rule struct {
	id       string
	area     string
	behavior Behavior
	cooldown time.Duration
	ports    Ports
	hooks    Hooks
	logger   Logger
	now      func() time.Time

	commandTimeout time.Duration

	mu          sync.Mutex
	state       State
	tokens      []bus.Token
	timer       scheduler.Handle
	generation  uint64
	triggers    int
	lastTrigger time.Time
	lastState   actuator.State
	lastError   string
}

// NewRule creates an Idle rule. Call Activate to subscribe it.
//
// Parameters:
//   - area: the area the rule governs (part of its ID and its context filter)
//   - behavior: the condition/action implementation
//   - cooldown: minimum spacing between actions; zero re-arms immediately
//   - ports: bus, sink, scheduler and diagnostics collaborators
func NewRule(area string, behavior Behavior, cooldown time.Duration, ports Ports) *Rule {
	if ports.Reporter == nil {
		ports.Reporter = diagnostics.Nop()
	}
	return &Rule{
		id:             NewID(behavior.Flavor(), area),
		area:           area,
		behavior:       behavior,
		cooldown:       cooldown,
		ports:          ports,
		logger:         noopLogger{},
		now:            time.Now,
		commandTimeout: defaultCommandTimeout,
		state:          StateIdle,
	}
}

// SetLogger sets the logger for the rule.
func (r *Rule) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// SetHooks installs lifecycle callbacks. Call before Activate.
func (r *Rule) SetHooks(h Hooks) {
	r.hooks = h
}

// SetCommandTimeout overrides the per-dispatch timeout.
func (r *Rule) SetCommandTimeout(d time.Duration) {
	if d > 0 {
		r.commandTimeout = d
	}
}

// ID returns the rule's stable identity.
func (r *Rule) ID() string { return r.id }

// Area returns the area the rule governs.
func (r *Rule) Area() string { return r.area }

// State returns the current lifecycle state.
func (r *Rule) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Tokens returns the live subscription tokens held by the rule.
func (r *Rule) Tokens() []bus.Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bus.Token, len(r.tokens))
	copy(out, r.tokens)
	return out
}

// Status returns a snapshot of the rule.
func (r *Rule) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := Status{
		ID:            r.id,
		Area:          r.area,
		Flavor:        r.behavior.Flavor(),
		State:         r.state,
		Cooldown:      r.cooldown,
		Subscriptions: len(r.tokens),
		TimerPending:  !r.timer.IsZero(),
		Triggers:      r.triggers,
		LastError:     r.lastError,
	}
	if !r.lastTrigger.IsZero() {
		t := r.lastTrigger
		st.LastTrigger = &t
	}
	return st
}

// Activate subscribes to every dependency and arms the rule.
//
// Returns ErrDisposed for a disposed rule and ErrAlreadyActive if the rule
// has already been activated. A failed subscription rolls back the ones made
// so far and leaves the rule Idle.
func (r *Rule) Activate() error {
	r.mu.Lock()
	switch r.state {
	case StateIdle:
	case StateDisposed:
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDisposed, r.id)
	default:
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyActive, r.id)
	}

	for _, dep := range r.behavior.Dependencies() {
		token, err := r.ports.Bus.Subscribe(dep.Kind, dep.Context, r.handle)
		if err != nil {
			r.unsubscribeAll()
			r.mu.Unlock()
			return fmt.Errorf("subscribing %s to %s: %w", r.id, dep.Kind, err)
		}
		r.tokens = append(r.tokens, token)
	}
	r.state = StateArmed
	r.mu.Unlock()

	r.logger.Info("automation armed", "automation", r.id, "subscriptions", len(r.behavior.Dependencies()))
	r.notify([]transition{{StateIdle, StateArmed}})
	return nil
}

// Dispose unsubscribes every token, cancels any pending timer and discards
// cached values. An evaluation already running completes first. Disposing
// twice is a no-op.
func (r *Rule) Dispose() {
	r.mu.Lock()
	if r.state == StateDisposed {
		r.mu.Unlock()
		return
	}
	from := r.state

	r.unsubscribeAll()
	if err := r.cancelTimer(); err != nil {
		r.ports.Reporter.Report(diagnostics.SeverityWarning, "automation timer cancel failed",
			"automation", r.id, "error", err)
	}
	r.generation++
	r.behavior.Reset()
	r.lastState = ""
	r.state = StateDisposed
	r.mu.Unlock()

	r.logger.Info("automation disposed", "automation", r.id)
	r.notify([]transition{{from, StateDisposed}})
}

// handle is the bus handler for every dependency. It never returns an
// error: failures are reported and recovered here.
func (r *Rule) handle(ctx context.Context, env bus.Envelope) error {
	r.mu.Lock()
	if r.state == StateIdle || r.state == StateDisposed {
		r.mu.Unlock()
		return nil
	}

	r.behavior.Observe(env)
	if r.state != StateArmed {
		r.mu.Unlock()
		return nil
	}

	now := env.Timestamp()
	if now.IsZero() {
		now = r.now()
	}
	r.evaluate(ctx, now, env.Kind().Name(), false, nil)
	return nil
}

// evaluate runs the behaviour against the cached view of an Armed rule and
// dispatches its command. A deferred evaluation only dispatches a command
// that differs from the last one sent. moves are transitions already made
// under the lock and are announced with the rest. Caller holds r.mu;
// evaluate releases it.
func (r *Rule) evaluate(ctx context.Context, now time.Time, cause string, deferred bool, moves []transition) {
	cmd, err := r.behavior.Evaluate(now)
	if err != nil {
		r.lastError = err.Error()
		r.mu.Unlock()
		r.notify(moves)
		severity := diagnostics.SeverityError
		if errors.Is(err, ErrDependencyUnavailable) {
			severity = diagnostics.SeverityWarning
		}
		r.ports.Reporter.Report(severity, "automation condition not evaluated",
			"automation", r.id, "cause", cause, "error", err)
		return
	}
	if cmd == nil || (deferred && cmd.State == r.lastState) {
		r.mu.Unlock()
		r.notify(moves)
		return
	}

	moves = append(moves, transition{StateArmed, StateTriggered})
	r.state = StateTriggered
	rec := TriggerRecord{
		ID:           uuid.NewString(),
		AutomationID: r.id,
		Area:         r.area,
		Flavor:       r.behavior.Flavor(),
		Actuators:    cmd.Actuators,
		State:        cmd.State,
		Reason:       cmd.Reason,
		Status:       TriggerOK,
		TriggeredAt:  now.UTC(),
	}

	var reports []func()
	if err := r.dispatch(ctx, *cmd); err != nil {
		r.lastError = err.Error()
		r.state = StateArmed
		moves = append(moves, transition{StateTriggered, StateArmed})
		rec.Status = TriggerFailed
		rec.Error = err.Error()
		reports = append(reports, func() {
			r.ports.Reporter.Report(diagnostics.SeverityError, "automation command dispatch failed",
				"automation", r.id, "state", cmd.State, "error", err)
		})
	} else {
		r.behavior.Committed(*cmd)
		r.lastState = cmd.State
		r.triggers++
		r.lastTrigger = now
		r.lastError = ""
		moves = append(moves, r.enterCooldown(&reports)...)
	}
	r.mu.Unlock()

	r.logger.Info("automation triggered",
		"automation", r.id,
		"state", cmd.State,
		"reason", cmd.Reason,
		"status", rec.Status,
	)
	for _, report := range reports {
		report()
	}
	r.notify(moves)
	if r.hooks.OnTrigger != nil {
		r.hooks.OnTrigger(rec)
	}
}

// dispatch sends cmd to every actuator. It stops at the first failure.
func (r *Rule) dispatch(ctx context.Context, cmd Command) error {
	ctx, cancel := context.WithTimeout(actuator.WithSource(ctx, actuator.SourceAutomation), r.commandTimeout)
	defer cancel()

	for _, id := range cmd.Actuators {
		if err := r.ports.Sink.SetState(ctx, id, cmd.State); err != nil {
			return fmt.Errorf("%w: %w", ErrCommandDispatch, err)
		}
	}
	return nil
}

// enterCooldown moves Triggered to Cooldown, or straight back to Armed when
// there is no cooldown or the timer cannot be armed. Caller holds r.mu.
func (r *Rule) enterCooldown(reports *[]func()) []transition {
	if r.cooldown <= 0 {
		r.state = StateArmed
		return []transition{{StateTriggered, StateArmed}}
	}

	if err := r.armTimer(); err != nil {
		r.lastError = err.Error()
		r.state = StateArmed
		*reports = append(*reports, func() {
			r.ports.Reporter.Report(diagnostics.SeverityError, "automation cooldown not armed",
				"automation", r.id, "error", err)
		})
		return []transition{{StateTriggered, StateArmed}}
	}
	r.state = StateCooldown
	return []transition{{StateTriggered, StateCooldown}}
}

// armTimer cancels any pending timer and schedules the cooldown expiry.
// Caller holds r.mu.
func (r *Rule) armTimer() error {
	if err := r.cancelTimer(); err != nil {
		return err
	}
	r.generation++
	gen := r.generation
	h, err := r.ports.Scheduler.ScheduleOnce(r.cooldown, func() { r.cooldownElapsed(gen) })
	if err != nil {
		return fmt.Errorf("%w: scheduling cooldown: %w", ErrScheduler, err)
	}
	r.timer = h
	return nil
}

// cancelTimer drops the pending timer, if any. Caller holds r.mu.
func (r *Rule) cancelTimer() error {
	if r.timer.IsZero() {
		return nil
	}
	h := r.timer
	r.timer = scheduler.Handle{}
	if err := r.ports.Scheduler.Cancel(h); err != nil {
		return fmt.Errorf("%w: cancelling %s: %w", ErrScheduler, h, err)
	}
	return nil
}

func (r *Rule) cooldownElapsed(gen uint64) {
	r.mu.Lock()
	if gen != r.generation || r.state != StateCooldown {
		r.mu.Unlock()
		return
	}
	r.timer = scheduler.Handle{}
	r.state = StateArmed
	r.logger.Debug("automation cooldown elapsed", "automation", r.id)

	// Values cached during the cooldown are applied now; sensors report
	// only on change.
	r.evaluate(context.Background(), r.now(), "cooldown", true, []transition{{StateCooldown, StateArmed}})
}

// unsubscribeAll releases every token. Caller holds r.mu.
func (r *Rule) unsubscribeAll() {
	for _, t := range r.tokens {
		r.ports.Bus.Unsubscribe(t)
	}
	r.tokens = nil
}

func (r *Rule) notify(moves []transition) {
	if r.hooks.OnTransition == nil {
		return
	}
	for _, m := range moves {
		r.hooks.OnTransition(r.id, m.from, m.to)
	}
}
