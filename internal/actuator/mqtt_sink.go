package actuator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-automation/internal/bus"
	"github.com/nerrad567/gray-logic-automation/internal/events"
	"github.com/nerrad567/gray-logic-automation/internal/infrastructure/mqtt"
)

// Publisher sends raw MQTT messages. *mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Notifier publishes payloads on the bus. *bus.Bus satisfies it.
type Notifier interface {
	Publish(ctx context.Context, payload bus.Payload, scope string) error
}

// Logger defines the logging interface used by MQTTSink.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// CommandMessage is the JSON body sent to a bridge.
type CommandMessage struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	DeviceID   string         `json:"device_id"`
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Source     string         `json:"source"`
}

// commandQoS is QoS 1: a command must reach the bridge at least once.
const commandQoS = 1

type slot struct {
	mu       sync.Mutex // serialises commands to one address
	actuator Actuator
	state    State
}

// MQTTSink implements Sink over the MQTT bridge protocol.
//
// Thread Safety: all methods are safe for concurrent use. Commands to the
// same actuator are serialised; commands to different actuators run in
// parallel.
type MQTTSink struct {
	publisher Publisher
	notifier  Notifier
	logger    Logger
	topics    mqtt.Topics
	now       func() time.Time

	mu    sync.RWMutex
	slots map[string]*slot
}

// NewMQTTSink creates a sink for the given actuators.
func NewMQTTSink(publisher Publisher, actuators []Actuator) *MQTTSink {
	s := &MQTTSink{
		publisher: publisher,
		logger:    noopLogger{},
		now:       time.Now,
		slots:     make(map[string]*slot, len(actuators)),
	}
	for _, a := range actuators {
		s.slots[a.ID] = &slot{actuator: a}
	}
	return s
}

// SetLogger sets the logger.
func (s *MQTTSink) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetNotifier enables ActuatorStateChanged publication on the bus.
func (s *MQTTSink) SetNotifier(n Notifier) {
	s.notifier = n
}

// SetState sends a command to the actuator's bridge.
//
// Returns:
//   - nil when the bridge accepted the message
//   - *CommandError wrapping ErrUnknownActuator, ErrDisabled,
//     ErrInvalidState or ErrCommandFailed otherwise
func (s *MQTTSink) SetState(ctx context.Context, id string, state State) error {
	sl, err := s.slot(id)
	if err != nil {
		return &CommandError{ActuatorID: id, State: state, Err: err}
	}

	sl.mu.Lock()
	a := sl.actuator
	if !a.Enabled {
		sl.mu.Unlock()
		return &CommandError{ActuatorID: id, State: state, Err: ErrDisabled}
	}
	if !a.Type.Accepts(state) {
		sl.mu.Unlock()
		return &CommandError{
			ActuatorID: id,
			State:      state,
			Err:        fmt.Errorf("%w: %s does not accept %q", ErrInvalidState, a.Type, state),
		}
	}
	if err := ctx.Err(); err != nil {
		sl.mu.Unlock()
		return &CommandError{ActuatorID: id, State: state, Err: fmt.Errorf("%w: %w", ErrCommandFailed, err)}
	}

	source := SourceFrom(ctx)
	msg := CommandMessage{
		ID:        uuid.NewString(),
		Timestamp: s.now().UTC(),
		DeviceID:  a.ID,
		Command:   string(state),
		Source:    source,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		sl.mu.Unlock()
		return &CommandError{ActuatorID: id, State: state, Err: fmt.Errorf("%w: encoding: %w", ErrCommandFailed, err)}
	}

	topic := s.topics.BridgeCommand(a.Protocol, a.Address)
	if err := s.publisher.Publish(topic, body, commandQoS, false); err != nil {
		sl.mu.Unlock()
		s.logger.Warn("actuator command failed", "actuator", id, "state", state, "error", err)
		return &CommandError{ActuatorID: id, State: state, Err: fmt.Errorf("%w: %w", ErrCommandFailed, err)}
	}
	sl.state = state
	sl.mu.Unlock()

	s.logger.Info("actuator command sent",
		"actuator", id,
		"state", state,
		"topic", topic,
		"source", source,
	)

	if s.notifier != nil {
		change := events.ActuatorStateChanged{ActuatorID: id, State: string(state), Source: source}
		if err := s.notifier.Publish(ctx, change, a.Area); err != nil {
			s.logger.Debug("actuator state notification dropped", "actuator", id, "error", err)
		}
	}
	return nil
}

// Enable allows commands to the actuator.
func (s *MQTTSink) Enable(id string) error {
	return s.setEnabled(id, true)
}

// Disable rejects further commands to the actuator with ErrDisabled.
func (s *MQTTSink) Disable(id string) error {
	return s.setEnabled(id, false)
}

func (s *MQTTSink) setEnabled(id string, enabled bool) error {
	sl, err := s.slot(id)
	if err != nil {
		return err
	}
	sl.mu.Lock()
	sl.actuator.Enabled = enabled
	sl.mu.Unlock()
	s.logger.Info("actuator enabled state changed", "actuator", id, "enabled", enabled)
	return nil
}

// Get returns the actuator and its last commanded state.
func (s *MQTTSink) Get(id string) (Status, error) {
	sl, err := s.slot(id)
	if err != nil {
		return Status{}, err
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return Status{Actuator: sl.actuator, State: sl.state}, nil
}

// List returns every actuator sorted by id.
func (s *MQTTSink) List() []Status {
	s.mu.RLock()
	ids := make([]string, 0, len(s.slots))
	for id := range s.slots {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)

	out := make([]Status, 0, len(ids))
	for _, id := range ids {
		if st, err := s.Get(id); err == nil {
			out = append(out, st)
		}
	}
	return out
}

// InArea returns the ids of the actuators in area with the given type.
func (s *MQTTSink) InArea(area string, t Type) []string {
	var ids []string
	for _, st := range s.List() {
		if st.Area == area && st.Type == t {
			ids = append(ids, st.ID)
		}
	}
	return ids
}

func (s *MQTTSink) slot(id string) (*slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, ok := s.slots[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownActuator, id)
	}
	return sl, nil
}
