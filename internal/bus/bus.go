package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-automation/internal/diagnostics"
)

// Logger defines the logging interface used by the Bus.
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

// Bus dispatches published payloads to matching subscriptions.
//
// Each matched handler runs on its own goroutine and Publish returns once
// every one of them has completed. A failing or panicking handler is
// reported and never affects the other handlers or the publisher.
//
// Thread Safety: all methods are safe for concurrent use.
type Bus struct {
	registry *Registry
	logger   Logger
	reporter diagnostics.Reporter
	metrics  *Metrics
	now      func() time.Time
	closed   atomic.Bool
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the bus logger.
func WithLogger(logger Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithReporter sets where handler failures are reported.
func WithReporter(r diagnostics.Reporter) Option {
	return func(b *Bus) {
		if r != nil {
			b.reporter = r
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(b *Bus) { b.metrics = m }
}

// WithClock overrides the time source used to stamp envelopes.
func WithClock(now func() time.Time) Option {
	return func(b *Bus) {
		if now != nil {
			b.now = now
		}
	}
}

// New creates a Bus with an empty registry.
func New(opts ...Option) *Bus {
	b := &Bus{
		registry: NewRegistry(),
		logger:   noopLogger{},
		reporter: diagnostics.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Registry exposes the underlying subscription registry.
func (b *Bus) Registry() *Registry {
	return b.registry
}

// Subscribe registers handler for payloads of kind (or any descendant kind)
// whose context matches filter. An empty filter accepts every context.
func (b *Bus) Subscribe(kind *Kind, filter string, handler Handler) (Token, error) {
	if handler == nil {
		return Token{}, ErrNilHandler
	}
	if b.closed.Load() {
		return Token{}, ErrClosed
	}

	token := b.registry.Register(kind, handler, filter)
	b.observeSubscriptions()

	b.logger.Debug("bus subscription added",
		"token", token.String(),
		"kind", kind.Name(),
		"context", filter,
	)
	return token, nil
}

// Unsubscribe removes the subscription for token. It reports whether a live
// subscription was removed; unsubscribing a dead token is a no-op.
func (b *Bus) Unsubscribe(token Token) bool {
	removed := b.registry.Unregister(token)
	if removed {
		b.observeSubscriptions()
		b.logger.Debug("bus subscription removed", "token", token.String())
	}
	return removed
}

// IsSubscribed reports whether token identifies a live subscription.
func (b *Bus) IsSubscribed(token Token) bool {
	return b.registry.IsRegistered(token)
}

// SubscriptionCount returns the number of live subscriptions.
func (b *Bus) SubscriptionCount() int {
	return b.registry.Len()
}

// Publish wraps payload in a fresh envelope and dispatches it.
//
// Handler errors are never returned; the only errors are ErrNilPayload and
// ErrClosed.
func (b *Bus) Publish(ctx context.Context, payload Payload, scope string) error {
	if payload == nil || payload.Kind() == nil {
		return ErrNilPayload
	}
	return b.PublishEnvelope(ctx, NewEnvelope(payload, scope, b.now()))
}

// PublishEnvelope dispatches a prebuilt envelope.
func (b *Bus) PublishEnvelope(ctx context.Context, env Envelope) error {
	if env.Kind() == nil {
		return ErrNilPayload
	}
	if b.closed.Load() {
		return ErrClosed
	}

	kind := env.Kind().Name()
	start := time.Now()
	matched := b.registry.Matching(env.Kind(), env.Context())

	if b.metrics != nil {
		b.metrics.Published.WithLabelValues(kind).Inc()
	}

	b.dispatch(ctx, env, matched)

	if b.metrics != nil {
		b.metrics.DispatchDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}
	return nil
}

// Close removes every subscription and rejects further publishes.
func (b *Bus) Close() {
	if b.closed.Swap(true) {
		return
	}
	b.registry.Clear()
	b.observeSubscriptions()
	b.logger.Info("bus closed")
}

// dispatch invokes every matched handler and waits for all of them.
// A single match runs inline.
func (b *Bus) dispatch(ctx context.Context, env Envelope, subs []Subscription) {
	switch len(subs) {
	case 0:
		return
	case 1:
		b.invoke(ctx, env, subs[0])
		return
	}

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s Subscription) {
			defer wg.Done()
			b.invoke(ctx, env, s)
		}(sub)
	}
	wg.Wait()
}

// invoke runs one handler with panic recovery and failure reporting.
func (b *Bus) invoke(ctx context.Context, env Envelope, sub Subscription) {
	kind := env.Kind().Name()

	defer func() {
		if r := recover(); r != nil {
			b.handlerFailed(&HandlerError{
				Token: sub.Token,
				Kind:  kind,
				Err:   fmt.Errorf("panic: %v", r),
			})
		}
	}()

	if b.metrics != nil {
		b.metrics.Delivered.WithLabelValues(kind).Inc()
	}

	if err := sub.Handler(ctx, env); err != nil {
		b.handlerFailed(&HandlerError{Token: sub.Token, Kind: kind, Err: err})
	}
}

func (b *Bus) handlerFailed(herr *HandlerError) {
	if b.metrics != nil {
		b.metrics.HandlerFailures.WithLabelValues(herr.Kind).Inc()
	}
	b.reporter.Report(diagnostics.SeverityError, "bus handler failed",
		"token", herr.Token.String(),
		"kind", herr.Kind,
		"error", herr.Err,
	)
}

func (b *Bus) observeSubscriptions() {
	if b.metrics != nil {
		b.metrics.Subscriptions.Set(float64(b.registry.Len()))
	}
}

// Handle adapts a typed function to a Handler. Envelopes whose payload is
// not a T fail with ErrPayloadMismatch, so Handle is meant for
// subscriptions to a leaf kind implemented by exactly one Go type.
func Handle[T Payload](fn func(ctx context.Context, payload T, env Envelope) error) Handler {
	return func(ctx context.Context, env Envelope) error {
		p, ok := env.Payload().(T)
		if !ok {
			return fmt.Errorf("%w: got %T", ErrPayloadMismatch, env.Payload())
		}
		return fn(ctx, p, env)
	}
}
