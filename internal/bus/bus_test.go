package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nerrad567/gray-logic-automation/internal/diagnostics"
)

func TestBus_PublishDeliversToMatchingHandlers(t *testing.T) {
	b := New()
	ctx := context.Background()

	var baseCalls, derivedCalls, otherCalls atomic.Int32
	mustSubscribe(t, b, kindBase, "", func(context.Context, Envelope) error {
		baseCalls.Add(1)
		return nil
	})
	mustSubscribe(t, b, kindDerived, "", func(context.Context, Envelope) error {
		derivedCalls.Add(1)
		return nil
	})
	mustSubscribe(t, b, kindOther, "", func(context.Context, Envelope) error {
		otherCalls.Add(1)
		return nil
	})

	if err := b.Publish(ctx, derivedPayload{Value: 1}, ""); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := b.Publish(ctx, basePayload{Value: 2}, ""); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if got := baseCalls.Load(); got != 2 {
		t.Errorf("base handler called %d times, want 2", got)
	}
	if got := derivedCalls.Load(); got != 1 {
		t.Errorf("derived handler called %d times, want 1", got)
	}
	if got := otherCalls.Load(); got != 0 {
		t.Errorf("other handler called %d times, want 0", got)
	}
}

func TestBus_SubscribeAnyReceivesEverything(t *testing.T) {
	b := New()
	var calls atomic.Int32
	mustSubscribe(t, b, KindAny, "", func(context.Context, Envelope) error {
		calls.Add(1)
		return nil
	})

	for _, p := range []Payload{basePayload{}, leafPayload{}, siblingPayload{}, otherPayload{}} {
		if err := b.Publish(context.Background(), p, ""); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}
	if got := calls.Load(); got != 4 {
		t.Errorf("any handler called %d times, want 4", got)
	}
}

func TestBus_ContextFilter(t *testing.T) {
	b := New()
	var kitchen, all atomic.Int32
	mustSubscribe(t, b, kindBase, "kitchen", func(context.Context, Envelope) error {
		kitchen.Add(1)
		return nil
	})
	mustSubscribe(t, b, kindBase, "", func(context.Context, Envelope) error {
		all.Add(1)
		return nil
	})

	ctx := context.Background()
	_ = b.Publish(ctx, basePayload{}, "kitchen")
	_ = b.Publish(ctx, basePayload{}, "hallway")
	_ = b.Publish(ctx, basePayload{}, "")

	if got := kitchen.Load(); got != 2 {
		t.Errorf("kitchen handler called %d times, want 2", got)
	}
	if got := all.Load(); got != 3 {
		t.Errorf("unfiltered handler called %d times, want 3", got)
	}
}

func TestBus_EnvelopeFields(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := New(WithClock(func() time.Time { return fixed }))

	var got Envelope
	mustSubscribe(t, b, kindBase, "", func(_ context.Context, env Envelope) error {
		got = env
		return nil
	})

	_ = b.Publish(context.Background(), basePayload{Value: 7}, "  kitchen  ")

	if got.Context() != "kitchen" {
		t.Errorf("Context() = %q, want trimmed %q", got.Context(), "kitchen")
	}
	if !got.Timestamp().Equal(fixed) {
		t.Errorf("Timestamp() = %v, want %v", got.Timestamp(), fixed)
	}
	if p, ok := got.Payload().(basePayload); !ok || p.Value != 7 {
		t.Errorf("Payload() = %#v", got.Payload())
	}
	if got.Kind() != kindBase {
		t.Errorf("Kind() = %v, want base", got.Kind())
	}
}

func TestBus_HandlerFailureIsolated(t *testing.T) {
	rep := &mockReporter{}
	b := New(WithReporter(rep))

	var ok1, ok2 atomic.Int32
	mustSubscribe(t, b, kindBase, "", func(context.Context, Envelope) error {
		ok1.Add(1)
		return nil
	})
	failing := mustSubscribe(t, b, kindBase, "", func(context.Context, Envelope) error {
		return errors.New("boom")
	})
	mustSubscribe(t, b, kindBase, "", func(context.Context, Envelope) error {
		panic("handler exploded")
	})
	mustSubscribe(t, b, kindBase, "", func(context.Context, Envelope) error {
		ok2.Add(1)
		return nil
	})

	if err := b.Publish(context.Background(), basePayload{}, ""); err != nil {
		t.Fatalf("Publish() error = %v, want nil", err)
	}

	if ok1.Load() != 1 || ok2.Load() != 1 {
		t.Errorf("healthy handlers called %d/%d times, want 1/1", ok1.Load(), ok2.Load())
	}

	reports := rep.all()
	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(reports))
	}
	var sawFailing bool
	for _, r := range reports {
		if r.Severity != diagnostics.SeverityError {
			t.Errorf("report severity = %s, want error", r.Severity)
		}
		if r.arg("kind") != "base" {
			t.Errorf("report kind = %q, want base", r.arg("kind"))
		}
		if r.arg("token") == failing.String() {
			sawFailing = true
		}
	}
	if !sawFailing {
		t.Error("no report names the failing handler's token")
	}
}

func TestBus_SingleHandlerPanicRecovered(t *testing.T) {
	rep := &mockReporter{}
	b := New(WithReporter(rep))
	mustSubscribe(t, b, kindBase, "", func(context.Context, Envelope) error {
		panic("solo")
	})

	if err := b.Publish(context.Background(), basePayload{}, ""); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if rep.count() != 1 {
		t.Errorf("got %d reports, want 1", rep.count())
	}
}

func TestBus_PublishWaitsForAllHandlers(t *testing.T) {
	b := New()
	var done atomic.Int32
	for i := 0; i < 5; i++ {
		mustSubscribe(t, b, kindBase, "", func(context.Context, Envelope) error {
			time.Sleep(10 * time.Millisecond)
			done.Add(1)
			return nil
		})
	}

	_ = b.Publish(context.Background(), basePayload{}, "")

	if got := done.Load(); got != 5 {
		t.Errorf("%d handlers completed before Publish returned, want 5", got)
	}
}

func TestBus_HandlersRunConcurrently(t *testing.T) {
	b := New()
	const n = 4
	var arrived sync.WaitGroup
	arrived.Add(n)

	for i := 0; i < n; i++ {
		mustSubscribe(t, b, kindBase, "", func(context.Context, Envelope) error {
			arrived.Done()
			arrived.Wait() // deadlocks unless all handlers run at once
			return nil
		})
	}

	finished := make(chan struct{})
	go func() {
		_ = b.Publish(context.Background(), basePayload{}, "")
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("handlers did not run concurrently")
	}
}

func TestBus_UnsubscribeInsideHandler(t *testing.T) {
	b := New()
	var calls atomic.Int32
	var tok Token
	tok = mustSubscribe(t, b, kindBase, "", func(context.Context, Envelope) error {
		calls.Add(1)
		b.Unsubscribe(tok)
		return nil
	})

	ctx := context.Background()
	_ = b.Publish(ctx, basePayload{}, "")
	_ = b.Publish(ctx, basePayload{}, "")

	if got := calls.Load(); got != 1 {
		t.Errorf("handler called %d times, want 1", got)
	}
	if b.IsSubscribed(tok) {
		t.Error("token should be dead")
	}
}

func TestBus_SubscribeNilHandler(t *testing.T) {
	b := New()
	if _, err := b.Subscribe(kindBase, "", nil); !errors.Is(err, ErrNilHandler) {
		t.Errorf("Subscribe(nil) error = %v, want ErrNilHandler", err)
	}
}

func TestBus_PublishNilPayload(t *testing.T) {
	b := New()
	if err := b.Publish(context.Background(), nil, ""); !errors.Is(err, ErrNilPayload) {
		t.Errorf("Publish(nil) error = %v, want ErrNilPayload", err)
	}
	if err := b.PublishEnvelope(context.Background(), Envelope{}); !errors.Is(err, ErrNilPayload) {
		t.Errorf("PublishEnvelope(empty) error = %v, want ErrNilPayload", err)
	}
}

func TestBus_Close(t *testing.T) {
	b := New()
	mustSubscribe(t, b, kindBase, "", noopHandler)

	b.Close()
	b.Close()

	if b.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d after Close", b.SubscriptionCount())
	}
	if err := b.Publish(context.Background(), basePayload{}, ""); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish after Close error = %v, want ErrClosed", err)
	}
	if _, err := b.Subscribe(kindBase, "", noopHandler); !errors.Is(err, ErrClosed) {
		t.Errorf("Subscribe after Close error = %v, want ErrClosed", err)
	}
}

func TestHandle_Typed(t *testing.T) {
	rep := &mockReporter{}
	b := New(WithReporter(rep))

	var got int
	mustSubscribe(t, b, kindLeaf, "", Handle(func(_ context.Context, p leafPayload, _ Envelope) error {
		got = p.Value
		return nil
	}))
	mustSubscribe(t, b, kindDerived, "", Handle(func(context.Context, leafPayload, Envelope) error {
		return nil
	}))

	_ = b.Publish(context.Background(), leafPayload{Value: 42}, "")
	if got != 42 {
		t.Errorf("typed handler got %d, want 42", got)
	}
	if rep.count() != 0 {
		t.Errorf("unexpected reports: %v", rep.all())
	}

	// A derivedPayload reaches the derived subscription but is not a leafPayload.
	_ = b.Publish(context.Background(), derivedPayload{}, "")
	if rep.count() != 1 {
		t.Fatalf("got %d reports, want 1 payload mismatch", rep.count())
	}
}

func TestHandlerError_Unwrap(t *testing.T) {
	cause := errors.New("cause")
	err := &HandlerError{Kind: "base", Err: cause}

	if !errors.Is(err, ErrHandlerFailed) {
		t.Error("HandlerError should match ErrHandlerFailed")
	}
	if !errors.Is(err, cause) {
		t.Error("HandlerError should match its cause")
	}
}

func TestBus_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	b := New(WithMetrics(m))

	mustSubscribe(t, b, kindBase, "", noopHandler)
	mustSubscribe(t, b, kindBase, "", func(context.Context, Envelope) error {
		return errors.New("fail")
	})

	_ = b.Publish(context.Background(), basePayload{}, "")

	if got := testutil.ToFloat64(m.Published.WithLabelValues("base")); got != 1 {
		t.Errorf("published_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Delivered.WithLabelValues("base")); got != 2 {
		t.Errorf("delivered_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.HandlerFailures.WithLabelValues("base")); got != 1 {
		t.Errorf("handler_failures_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Subscriptions); got != 2 {
		t.Errorf("subscriptions = %v, want 2", got)
	}

	if _, err := NewMetrics(reg); err == nil {
		t.Error("registering twice should fail")
	}
}

func mustSubscribe(t *testing.T, b *Bus, kind *Kind, filter string, h Handler) Token {
	t.Helper()
	tok, err := b.Subscribe(kind, filter, h)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	return tok
}
