package bus

import (
	"strings"
	"time"
)

// Payload is implemented by every value carried on the bus.
//
// Payloads are shared by all subscribers of one dispatch and must be treated
// as read-only once published.
type Payload interface {
	Kind() *Kind
}

// Envelope wraps a payload with delivery metadata.
//
// Envelopes are created per publish and are never reused. The zero value
// carries no payload and matches no subscription.
type Envelope struct {
	payload   Payload
	context   string
	timestamp time.Time
}

// NewEnvelope creates an envelope for payload, tagged with an optional
// context (an area, an automation id). The context is trimmed of whitespace.
func NewEnvelope(payload Payload, context string, timestamp time.Time) Envelope {
	return Envelope{
		payload:   payload,
		context:   strings.TrimSpace(context),
		timestamp: timestamp,
	}
}

// Payload returns the carried payload.
func (e Envelope) Payload() Payload {
	return e.payload
}

// Kind returns the payload kind, or nil when the envelope is empty.
func (e Envelope) Kind() *Kind {
	if e.payload == nil {
		return nil
	}
	return e.payload.Kind()
}

// Context returns the envelope's context tag ("" when absent).
func (e Envelope) Context() string {
	return e.context
}

// Timestamp returns when the envelope was published.
func (e Envelope) Timestamp() time.Time {
	return e.timestamp
}
