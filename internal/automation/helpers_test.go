package automation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-automation/internal/actuator"
	"github.com/nerrad567/gray-logic-automation/internal/bus"
	"github.com/nerrad567/gray-logic-automation/internal/diagnostics"
	"github.com/nerrad567/gray-logic-automation/internal/events"
	"github.com/nerrad567/gray-logic-automation/internal/scheduler"
)

// ─── Fake Scheduler ─────────────────────────────────────────────────────────

// fakeScheduler records callbacks; tests fire them explicitly.
type fakeScheduler struct {
	mu          sync.Mutex
	callbacks   map[scheduler.Handle]func()
	delays      map[scheduler.Handle]time.Duration
	order       []scheduler.Handle
	cancelled   []scheduler.Handle
	maxPending  int
	scheduleErr error
	cancelErr   error
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{
		callbacks: make(map[scheduler.Handle]func()),
		delays:    make(map[scheduler.Handle]time.Duration),
	}
}

func (f *fakeScheduler) ScheduleOnce(delay time.Duration, fn func()) (scheduler.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scheduleErr != nil {
		return scheduler.Handle{}, f.scheduleErr
	}
	h := scheduler.Handle(uuid.New())
	f.callbacks[h] = fn
	f.delays[h] = delay
	f.order = append(f.order, h)
	if len(f.callbacks) > f.maxPending {
		f.maxPending = len(f.callbacks)
	}
	return h, nil
}

func (f *fakeScheduler) ScheduleRecurring(time.Duration, func()) (scheduler.Handle, error) {
	return scheduler.Handle{}, errors.New("not supported by fake")
}

func (f *fakeScheduler) Cancel(h scheduler.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return f.cancelErr
	}
	delete(f.callbacks, h)
	f.cancelled = append(f.cancelled, h)
	return nil
}

func (f *fakeScheduler) pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.callbacks)
}

// last returns the most recently scheduled handle and its callback, even if
// it has since been cancelled.
func (f *fakeScheduler) last() (scheduler.Handle, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.order) == 0 {
		return scheduler.Handle{}, false
	}
	return f.order[len(f.order)-1], true
}

// fire runs the callback for h as the real scheduler would. It reports
// whether h was still pending.
func (f *fakeScheduler) fire(h scheduler.Handle) bool {
	f.mu.Lock()
	fn, ok := f.callbacks[h]
	delete(f.callbacks, h)
	f.mu.Unlock()
	if ok {
		fn()
	}
	return ok
}

// fireLast fires the most recently scheduled pending callback.
func (f *fakeScheduler) fireLast() bool {
	h, ok := f.last()
	if !ok {
		return false
	}
	return f.fire(h)
}

// ─── Mock Sink ──────────────────────────────────────────────────────────────

type sinkCall struct {
	ID     string
	State  actuator.State
	Source string
}

type mockSink struct {
	mu     sync.Mutex
	calls  []sinkCall
	failOn string
}

func (m *mockSink) SetState(ctx context.Context, id string, state actuator.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != "" && m.failOn == id {
		return &actuator.CommandError{ActuatorID: id, State: state, Err: actuator.ErrCommandFailed}
	}
	m.calls = append(m.calls, sinkCall{ID: id, State: state, Source: actuator.SourceFrom(ctx)})
	return nil
}

func (m *mockSink) all() []sinkCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sinkCall, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *mockSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// ─── Mock Reporter ──────────────────────────────────────────────────────────

type report struct {
	Severity diagnostics.Severity
	Message  string
}

type mockReporter struct {
	mu      sync.Mutex
	reports []report
}

func (m *mockReporter) Report(severity diagnostics.Severity, message string, _ ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, report{Severity: severity, Message: message})
}

func (m *mockReporter) bySeverity(s diagnostics.Severity) []report {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []report
	for _, r := range m.reports {
		if r.Severity == s {
			out = append(out, r)
		}
	}
	return out
}

// ─── Stub Behavior ──────────────────────────────────────────────────────────

var kindStub = bus.NewKind("stub", nil)

type stubPayload struct{ Qualifies bool }

func (stubPayload) Kind() *bus.Kind { return kindStub }

// stubBehavior commands "stub-light" on for every qualifying envelope it
// evaluates, ignoring edge tracking so cooldown suppression is visible.
type stubBehavior struct {
	mu          sync.Mutex
	qualifies   bool
	observed    int
	evaluating  int
	maxParallel int
	evalErr     error
	resets      int
	delay       time.Duration
}

func (s *stubBehavior) Flavor() string { return "stub" }

func (s *stubBehavior) Dependencies() []Dependency {
	return []Dependency{{Kind: kindStub}}
}

func (s *stubBehavior) Observe(env bus.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observed++
	if p, ok := env.Payload().(stubPayload); ok {
		s.qualifies = p.Qualifies
	}
}

func (s *stubBehavior) Evaluate(time.Time) (*Command, error) {
	s.mu.Lock()
	s.evaluating++
	if s.evaluating > s.maxParallel {
		s.maxParallel = s.evaluating
	}
	qualifies, err, delay := s.qualifies, s.evalErr, s.delay
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	s.mu.Lock()
	s.evaluating--
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if !qualifies {
		return nil, nil
	}
	return &Command{Actuators: []string{"stub-light"}, State: actuator.StateOn, Reason: "stub"}, nil
}

func (s *stubBehavior) Committed(Command) {}

func (s *stubBehavior) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	s.qualifies = false
}

// ─── Transition Recorder ────────────────────────────────────────────────────

type transitionLog struct {
	mu    sync.Mutex
	moves []transition
	recs  []TriggerRecord
}

func (l *transitionLog) hooks() Hooks {
	return Hooks{
		OnTransition: func(_ string, from, to State) {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.moves = append(l.moves, transition{from, to})
		},
		OnTrigger: func(rec TriggerRecord) {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.recs = append(l.recs, rec)
		},
	}
}

func (l *transitionLog) transitions() []transition {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]transition, len(l.moves))
	copy(out, l.moves)
	return out
}

func (l *transitionLog) records() []TriggerRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]TriggerRecord, len(l.recs))
	copy(out, l.recs)
	return out
}

// ─── Fixtures ───────────────────────────────────────────────────────────────

type fixture struct {
	bus      *bus.Bus
	sink     *mockSink
	sched    *fakeScheduler
	reporter *mockReporter
	log      *transitionLog
}

func newFixture() *fixture {
	return &fixture{
		bus:      bus.New(),
		sink:     &mockSink{},
		sched:    newFakeScheduler(),
		reporter: &mockReporter{},
		log:      &transitionLog{},
	}
}

func (f *fixture) ports() Ports {
	return Ports{Bus: f.bus, Sink: f.sink, Scheduler: f.sched, Reporter: f.reporter}
}

// newRule creates and activates a rule wired to the fixture.
func (f *fixture) newRule(area string, b Behavior, cooldown time.Duration) (*Rule, error) {
	r := NewRule(area, b, cooldown, f.ports())
	r.SetHooks(f.log.hooks())
	if err := r.Activate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (f *fixture) publish(p bus.Payload, scope string) {
	_ = f.bus.Publish(context.Background(), p, scope)
}

func (f *fixture) dark() {
	f.publish(events.DaylightChanged{Phase: events.PhaseNight}, "")
}

func (f *fixture) light() {
	f.publish(events.DaylightChanged{Phase: events.PhaseDay}, "")
}

func (f *fixture) motion(area string, detected bool) {
	f.publish(events.MotionChanged{SensorID: "pir-" + area, Area: area, Detected: detected}, area)
}
