// Package bus provides the in-process publish/subscribe bus for Gray Logic
// automations.
//
// Sensor, timer and environment adapters publish payloads; automations and
// diagnostic collaborators subscribe to payload kinds. Delivery is in-memory,
// at-most-once and non-durable.
//
// Architecture:
//
//	┌──────────────────────────────────────────────────────┐
//	│                     Bus (bus.go)                      │
//	│  Publish ─▶ Matching(kind, context) ─▶ handler × N    │
//	│                 │                                     │
//	│                 ▼                                     │
//	│  ┌────────────────────────────────────────────────┐  │
//	│  │  Registry (registry.go)                        │  │
//	│  │  mutex-guarded authoritative list + revision   │  │
//	│  │  atomic copy-on-write snapshot for readers     │  │
//	│  └────────────────────────────────────────────────┘  │
//	└──────────────────────────────────────────────────────┘
//
// # Kinds
//
// Every payload reports a *Kind. Kinds form an explicit parent chain rooted
// at KindAny, so a subscription declared for a parent kind receives every
// descendant kind:
//
//	var KindSensor = bus.NewKind("sensor", nil)
//	var KindMotion = bus.NewKind("sensor.motion", KindSensor)
//
// A subscription to KindSensor receives motion payloads; a subscription to
// KindMotion does not receive plain sensor payloads or sibling kinds.
//
// # Context filters
//
// A subscription may carry a context filter. It matches an envelope when the
// filter is empty, the envelope has no context, or the envelope context
// contains the filter ("kitchen" matches "kitchen-light").
//
// # Thread Safety
//
// All Bus and Registry methods are safe for concurrent use. The delivery path
// takes no lock while the subscription set is unchanged.
//
// # Usage
//
//	b := bus.New(bus.WithLogger(log), bus.WithReporter(journal))
//	token, err := b.Subscribe(events.KindMotion, "hallway",
//	    bus.Handle(func(ctx context.Context, m events.MotionChanged, env bus.Envelope) error {
//	        return nil
//	    }))
//	b.Publish(ctx, events.MotionChanged{SensorID: "pir-1", Area: "hallway", Detected: true}, "hallway")
//	b.Unsubscribe(token)
package bus
