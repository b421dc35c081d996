package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-automation/internal/bus"
	"github.com/nerrad567/gray-logic-automation/internal/events"
	"github.com/nerrad567/gray-logic-automation/internal/infrastructure/mqtt"
)

// SensorKind selects which payload a sensor produces.
type SensorKind string

const (
	SensorMotion             SensorKind = "motion"
	SensorOutdoorTemperature SensorKind = "outdoor_temperature"
)

// Sensor maps a bridge address to a domain sensor.
type Sensor struct {
	ID       string
	Area     string
	Kind     SensorKind
	Protocol string
	Address  string
}

// StateMessage is the bridge state payload.
type StateMessage struct {
	DeviceID  string         `json:"device_id"`
	Timestamp time.Time      `json:"timestamp"`
	State     map[string]any `json:"state"`
}

// Subscriber is the MQTT subscription surface. *mqtt.Client satisfies it.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Publisher publishes payloads on the bus. *bus.Bus satisfies it.
type Publisher interface {
	Publish(ctx context.Context, payload bus.Payload, scope string) error
}

// Logger defines the logging interface used by MQTTIngest.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Stats counts processed state messages.
type Stats struct {
	Received  uint64 `json:"received"`
	Published uint64 `json:"published"`
	Ignored   uint64 `json:"ignored"`
	Rejected  uint64 `json:"rejected"`
}

const stateQoS = 1

// MQTTIngest republishes bridge sensor state on the bus.
type MQTTIngest struct {
	sub     Subscriber
	pub     Publisher
	sensors map[string]Sensor // key: protocol + "/" + address
	logger  Logger

	mu    sync.Mutex
	ctx   context.Context
	topic string

	received  atomic.Uint64
	published atomic.Uint64
	ignored   atomic.Uint64
	rejected  atomic.Uint64
}

// NewMQTTIngest creates an ingest adapter for the given sensors.
func NewMQTTIngest(sub Subscriber, pub Publisher, sensors []Sensor) (*MQTTIngest, error) {
	m := make(map[string]Sensor, len(sensors))
	for _, s := range sensors {
		switch s.Kind {
		case SensorMotion, SensorOutdoorTemperature:
		default:
			return nil, fmt.Errorf("%w: %q (sensor %s)", ErrUnknownSensorKind, s.Kind, s.ID)
		}
		m[sensorKey(s.Protocol, s.Address)] = s
	}
	return &MQTTIngest{
		sub:     sub,
		pub:     pub,
		sensors: m,
		logger:  noopLogger{},
	}, nil
}

// SetLogger sets the logger.
func (i *MQTTIngest) SetLogger(logger Logger) {
	if logger != nil {
		i.logger = logger
	}
}

// Start subscribes to all bridge state topics.
func (i *MQTTIngest) Start(ctx context.Context) error {
	topic := mqtt.Topics{}.AllBridgeStates()

	i.mu.Lock()
	i.ctx = ctx
	i.mu.Unlock()

	if err := i.sub.Subscribe(topic, stateQoS, i.HandleMessage); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}

	i.mu.Lock()
	i.topic = topic
	i.mu.Unlock()
	return nil
}

// Stop unsubscribes from bridge state topics.
func (i *MQTTIngest) Stop() error {
	i.mu.Lock()
	topic := i.topic
	i.topic = ""
	i.mu.Unlock()
	if topic == "" {
		return nil
	}
	return i.sub.Unsubscribe(topic)
}

// Stats returns message counters.
func (i *MQTTIngest) Stats() Stats {
	return Stats{
		Received:  i.received.Load(),
		Published: i.published.Load(),
		Ignored:   i.ignored.Load(),
		Rejected:  i.rejected.Load(),
	}
}

// HandleMessage processes one state message. It is an mqtt.MessageHandler.
func (i *MQTTIngest) HandleMessage(topic string, payload []byte) error {
	i.received.Add(1)

	protocol, address, err := parseStateTopic(topic)
	if err != nil {
		i.rejected.Add(1)
		return err
	}

	sensor, ok := i.sensors[sensorKey(protocol, address)]
	if !ok {
		i.ignored.Add(1)
		return nil
	}

	var msg StateMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		i.rejected.Add(1)
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	out, scope, err := translate(sensor, msg.State)
	if err != nil {
		i.rejected.Add(1)
		return fmt.Errorf("sensor %s: %w", sensor.ID, err)
	}

	if err := i.pub.Publish(i.context(), out, scope); err != nil {
		return fmt.Errorf("publishing %s: %w", sensor.ID, err)
	}
	i.published.Add(1)
	i.logger.Debug("sensor state ingested", "sensor", sensor.ID, "kind", out.Kind().Name())
	return nil
}

func (i *MQTTIngest) context() context.Context {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.ctx == nil {
		return context.Background()
	}
	return i.ctx
}

// translate maps a sensor's raw state to a bus payload and its scope.
func translate(s Sensor, state map[string]any) (bus.Payload, string, error) {
	switch s.Kind {
	case SensorMotion:
		detected, ok := boolValue(state, "motion", "presence", "occupied", "on")
		if !ok {
			return nil, "", fmt.Errorf("%w: motion", ErrMissingValue)
		}
		return events.MotionChanged{SensorID: s.ID, Area: s.Area, Detected: detected}, s.Area, nil

	case SensorOutdoorTemperature:
		celsius, ok := floatValue(state, "temperature", "value")
		if !ok {
			return nil, "", fmt.Errorf("%w: temperature", ErrMissingValue)
		}
		return events.OutdoorTemperatureChanged{SensorID: s.ID, Celsius: celsius}, "", nil
	}
	return nil, "", fmt.Errorf("%w: %q", ErrUnknownSensorKind, s.Kind)
}

func boolValue(state map[string]any, keys ...string) (bool, bool) {
	for _, k := range keys {
		switch v := state[k].(type) {
		case bool:
			return v, true
		case float64:
			return v != 0, true
		case string:
			switch strings.ToLower(v) {
			case "on", "true", "1", "detected":
				return true, true
			case "off", "false", "0", "clear":
				return false, true
			}
		}
	}
	return false, false
}

func floatValue(state map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := state[k].(float64); ok {
			return v, true
		}
	}
	return 0, false
}

// parseStateTopic splits graylogic/state/{protocol}/{address} and decodes
// the address level.
func parseStateTopic(topic string) (protocol, address string, err error) {
	prefix := mqtt.TopicPrefixBridge + "/state/"
	rest, ok := strings.CutPrefix(topic, prefix)
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	protocol, level, ok := strings.Cut(rest, "/")
	if !ok || protocol == "" || level == "" {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	address, err = mqtt.DecodeAddress(level)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidTopic, err)
	}
	return protocol, address, nil
}

func sensorKey(protocol, address string) string {
	return protocol + "/" + address
}
