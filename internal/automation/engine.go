package automation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-automation/internal/actuator"
	"github.com/nerrad567/gray-logic-automation/internal/bus"
	"github.com/nerrad567/gray-logic-automation/internal/diagnostics"
	"github.com/nerrad567/gray-logic-automation/internal/events"
	"github.com/nerrad567/gray-logic-automation/internal/scheduler"
)

// Logger defines the logging interface used by the Engine and rules.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Bus is the part of the bus the engine needs. *bus.Bus satisfies it.
type Bus interface {
	Subscriber
	Publish(ctx context.Context, payload bus.Payload, scope string) error
}

// historyTimeout bounds one trigger history write.
const historyTimeout = 2 * time.Second

// Engine owns the live rules.
//
// It creates, activates and disposes rules, publishes their state changes as
// events.AutomationStateChanged, and records every dispatch attempt in the
// trigger history.
//
// Thread Safety: all methods are safe for concurrent use.
type Engine struct {
	bus      Bus
	sink     actuator.Sink
	sched    scheduler.Scheduler
	reporter diagnostics.Reporter
	repo     Repository // may be nil
	logger   Logger
	metrics  *Metrics

	commandTimeout time.Duration
	onTrigger      func(TriggerRecord)

	mu    sync.RWMutex
	rules map[string]*Rule
}

// NewEngine creates an automation engine.
//
// Parameters:
//   - b: bus for subscriptions and state notifications
//   - sink: actuator command sink shared by all rules
//   - sched: scheduler for cooldown timers
//   - reporter: diagnostics collaborator (nil discards reports)
//   - repo: trigger history store (may be nil)
//   - logger: Logger instance (nil disables logging)
func NewEngine(b Bus, sink actuator.Sink, sched scheduler.Scheduler, reporter diagnostics.Reporter, repo Repository, logger Logger) *Engine {
	if logger == nil {
		logger = noopLogger{}
	}
	if reporter == nil {
		reporter = diagnostics.Nop()
	}
	return &Engine{
		bus:            b,
		sink:           sink,
		sched:          sched,
		reporter:       reporter,
		repo:           repo,
		logger:         logger,
		commandTimeout: defaultCommandTimeout,
		rules:          make(map[string]*Rule),
	}
}

// SetMetrics enables Prometheus instrumentation.
func (e *Engine) SetMetrics(m *Metrics) {
	e.metrics = m
}

// SetCommandTimeout sets the per-dispatch timeout given to new rules.
func (e *Engine) SetCommandTimeout(d time.Duration) {
	if d > 0 {
		e.commandTimeout = d
	}
}

// SetTriggerObserver registers fn to receive every trigger record, in
// addition to the repository (used for the time-series export).
func (e *Engine) SetTriggerObserver(fn func(TriggerRecord)) {
	e.onTrigger = fn
}

// Register creates, activates and stores a rule. A rule with the same ID is
// disposed first.
//
// Returns:
//   - *Rule: the armed rule
//   - error: wrapped subscription error if activation failed
func (e *Engine) Register(spec RuleSpec) (*Rule, error) {
	rule := NewRule(spec.Area, spec.Behavior, spec.Cooldown, Ports{
		Bus:       e.bus,
		Sink:      e.sink,
		Scheduler: e.sched,
		Reporter:  e.reporter,
	})
	rule.SetLogger(e.logger)
	rule.SetCommandTimeout(e.commandTimeout)
	rule.SetHooks(Hooks{
		OnTransition: e.transitioned,
		OnTrigger:    e.triggered,
	})

	e.mu.Lock()
	defer e.mu.Unlock()

	if old, ok := e.rules[rule.ID()]; ok {
		e.logger.Info("replacing automation", "automation", rule.ID())
		old.Dispose()
		delete(e.rules, rule.ID())
	}

	if err := rule.Activate(); err != nil {
		e.observeRules()
		return nil, fmt.Errorf("activating %s: %w", rule.ID(), err)
	}
	e.rules[rule.ID()] = rule
	e.observeRules()
	return rule, nil
}

// Remove disposes the rule with id.
func (e *Engine) Remove(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rule, ok := e.rules[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	rule.Dispose()
	delete(e.rules, id)
	e.observeRules()
	return nil
}

// RemoveArea disposes every rule governing area and returns how many were
// removed. Used when an area is reconfigured.
func (e *Engine) RemoveArea(area string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	removed := 0
	for id, rule := range e.rules {
		if rule.Area() != area {
			continue
		}
		rule.Dispose()
		delete(e.rules, id)
		removed++
	}
	e.observeRules()
	if removed > 0 {
		e.logger.Info("area automations removed", "area", area, "count", removed)
	}
	return removed
}

// Get returns the rule with id.
func (e *Engine) Get(id string) (*Rule, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rule, ok := e.rules[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return rule, nil
}

// List returns the status of every rule sorted by ID.
func (e *Engine) List() []Status {
	e.mu.RLock()
	rules := make([]*Rule, 0, len(e.rules))
	for _, r := range e.rules {
		rules = append(rules, r)
	}
	e.mu.RUnlock()

	out := make([]Status, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Triggers returns the trigger history of one automation, newest first.
func (e *Engine) Triggers(ctx context.Context, id string, limit int) ([]TriggerRecord, error) {
	if e.repo == nil {
		return nil, nil
	}
	return e.repo.ListTriggers(ctx, id, limit)
}

// RecentTriggers returns the newest trigger records across all automations.
func (e *Engine) RecentTriggers(ctx context.Context, limit int) ([]TriggerRecord, error) {
	if e.repo == nil {
		return nil, nil
	}
	return e.repo.ListRecentTriggers(ctx, limit)
}

// Close disposes every rule.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, rule := range e.rules {
		rule.Dispose()
		delete(e.rules, id)
	}
	e.observeRules()
	e.logger.Info("automation engine closed")
}

func (e *Engine) transitioned(id string, from, to State) {
	if e.metrics != nil {
		e.metrics.Transitions.WithLabelValues(string(to)).Inc()
	}
	e.logger.Debug("automation state changed", "automation", id, "from", from, "to", to)

	change := events.AutomationStateChanged{ID: id, From: string(from), To: string(to)}
	if err := e.bus.Publish(context.Background(), change, id); err != nil {
		e.logger.Debug("automation state notification dropped", "automation", id, "error", err)
	}
}

func (e *Engine) triggered(rec TriggerRecord) {
	if e.metrics != nil {
		e.metrics.Triggers.WithLabelValues(rec.Flavor, rec.Status).Inc()
	}
	if e.onTrigger != nil {
		e.onTrigger(rec)
	}
	if e.repo == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()
	if err := e.repo.RecordTrigger(ctx, rec); err != nil {
		e.reporter.Report(diagnostics.SeverityWarning, "automation trigger not recorded",
			"automation", rec.AutomationID, "error", err)
	}
}

// observeRules updates the rule gauge. Caller holds e.mu.
func (e *Engine) observeRules() {
	if e.metrics != nil {
		e.metrics.Rules.Set(float64(len(e.rules)))
	}
}
