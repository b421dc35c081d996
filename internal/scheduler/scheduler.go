package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Domain errors for the scheduler package.
var (
	// ErrClosed is returned when scheduling on a closed scheduler.
	ErrClosed = errors.New("scheduler: closed")

	// ErrInvalidInterval is returned for a non-positive recurring interval.
	ErrInvalidInterval = errors.New("scheduler: interval must be positive")

	// ErrNilCallback is returned when scheduling without a callback.
	ErrNilCallback = errors.New("scheduler: callback cannot be nil")
)

// Handle identifies a scheduled callback for cancellation.
type Handle uuid.UUID

// String returns the canonical UUID form of the handle.
func (h Handle) String() string {
	return uuid.UUID(h).String()
}

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool {
	return h == Handle{}
}

// Scheduler registers one-shot and recurring callbacks.
//
// Cancel must not wait for a callback that is already running, and cancelling
// an unknown or already-fired handle is a no-op.
type Scheduler interface {
	ScheduleOnce(delay time.Duration, fn func()) (Handle, error)
	ScheduleRecurring(interval time.Duration, fn func()) (Handle, error)
	Cancel(h Handle) error
}

// Logger defines the logging interface used by TimerScheduler.
type Logger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Error(string, ...any) {}

type entry struct {
	timer *time.Timer
	stop  chan struct{} // recurring only
}

// TimerScheduler implements Scheduler on runtime timers.
//
// Thread Safety: all methods are safe for concurrent use.
type TimerScheduler struct {
	mu      sync.Mutex
	entries map[Handle]*entry
	closed  bool
	logger  Logger
}

// New creates a TimerScheduler.
func New() *TimerScheduler {
	return &TimerScheduler{
		entries: make(map[Handle]*entry),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for callback panics.
func (s *TimerScheduler) SetLogger(logger Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if logger != nil {
		s.logger = logger
	}
}

// ScheduleOnce runs fn once after delay. A non-positive delay fires
// immediately on another goroutine.
func (s *TimerScheduler) ScheduleOnce(delay time.Duration, fn func()) (Handle, error) {
	if fn == nil {
		return Handle{}, ErrNilCallback
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Handle{}, ErrClosed
	}

	h := Handle(uuid.New())
	e := &entry{}
	e.timer = time.AfterFunc(delay, func() {
		if !s.take(h, e) {
			return
		}
		s.run(h, fn)
	})
	s.entries[h] = e
	return h, nil
}

// ScheduleRecurring runs fn every interval until cancelled. Runs never
// overlap; a slow callback delays the next one.
func (s *TimerScheduler) ScheduleRecurring(interval time.Duration, fn func()) (Handle, error) {
	if fn == nil {
		return Handle{}, ErrNilCallback
	}
	if interval <= 0 {
		return Handle{}, fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Handle{}, ErrClosed
	}

	h := Handle(uuid.New())
	e := &entry{stop: make(chan struct{})}
	s.entries[h] = e

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-e.stop:
				return
			case <-ticker.C:
				// A stop may race the tick; prefer the stop.
				select {
				case <-e.stop:
					return
				default:
				}
				s.run(h, fn)
			}
		}
	}()
	return h, nil
}

// Cancel stops the callback for h. Unknown handles are ignored.
func (s *TimerScheduler) Cancel(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if e, ok := s.entries[h]; ok {
		delete(s.entries, h)
		e.cancel()
	}
	return nil
}

// Pending returns the number of live handles.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close cancels every pending callback. Further scheduling fails with
// ErrClosed.
func (s *TimerScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for h, e := range s.entries {
		e.cancel()
		delete(s.entries, h)
	}
}

func (e *entry) cancel() {
	if e.timer != nil {
		e.timer.Stop()
	}
	if e.stop != nil {
		close(e.stop)
	}
}

// take removes a one-shot entry as it fires. It returns false when the
// handle was cancelled in the meantime.
func (s *TimerScheduler) take(h Handle, e *entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.entries[h]; !ok || cur != e {
		return false
	}
	delete(s.entries, h)
	return true
}

func (s *TimerScheduler) run(h Handle, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			logger := s.logger
			s.mu.Unlock()
			logger.Error("scheduler callback panic recovered",
				"handle", h.String(),
				"panic", r,
			)
		}
	}()
	fn()
}
