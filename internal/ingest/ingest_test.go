package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-automation/internal/bus"
	"github.com/nerrad567/gray-logic-automation/internal/events"
	"github.com/nerrad567/gray-logic-automation/internal/infrastructure/mqtt"
)

// ─── Mock Dependencies ─────────────────────────────────────────────

type mockSubscriber struct {
	handlers     map[string]mqtt.MessageHandler
	unsubscribed []string
	err          error
}

func newMockSubscriber() *mockSubscriber {
	return &mockSubscriber{handlers: make(map[string]mqtt.MessageHandler)}
}

func (m *mockSubscriber) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	if m.err != nil {
		return m.err
	}
	m.handlers[topic] = handler
	return nil
}

func (m *mockSubscriber) Unsubscribe(topic string) error {
	delete(m.handlers, topic)
	m.unsubscribed = append(m.unsubscribed, topic)
	return nil
}

type published struct {
	payload bus.Payload
	scope   string
}

type mockPublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (m *mockPublisher) Publish(_ context.Context, payload bus.Payload, scope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, published{payload, scope})
	return nil
}

func testSensors() []Sensor {
	return []Sensor{
		{ID: "pir-kitchen", Area: "kitchen", Kind: SensorMotion, Protocol: "knx", Address: "pir-kitchen"},
		{ID: "outdoor", Kind: SensorOutdoorTemperature, Protocol: "modbus", Address: "temp-40"},
		{ID: "pir-hall", Area: "hall", Kind: SensorMotion, Protocol: "knx", Address: "1/1/1"},
	}
}

func setupIngest(t *testing.T) (*MQTTIngest, *mockSubscriber, *mockPublisher) {
	t.Helper()
	sub := newMockSubscriber()
	pub := &mockPublisher{}
	in, err := NewMQTTIngest(sub, pub, testSensors())
	if err != nil {
		t.Fatalf("NewMQTTIngest() error = %v", err)
	}
	return in, sub, pub
}

// ─── Tests ─────────────────────────────────────────────────────────

func TestNewMQTTIngest_UnknownKind(t *testing.T) {
	_, err := NewMQTTIngest(newMockSubscriber(), &mockPublisher{}, []Sensor{{ID: "x", Kind: "humidity"}})
	if !errors.Is(err, ErrUnknownSensorKind) {
		t.Errorf("error = %v, want ErrUnknownSensorKind", err)
	}
}

func TestStartStop(t *testing.T) {
	in, sub, _ := setupIngest(t)

	if err := in.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	topic := mqtt.Topics{}.AllBridgeStates()
	if _, ok := sub.handlers[topic]; !ok {
		t.Fatalf("not subscribed to %s", topic)
	}

	if err := in.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if len(sub.unsubscribed) != 1 || sub.unsubscribed[0] != topic {
		t.Errorf("unsubscribed = %v, want [%s]", sub.unsubscribed, topic)
	}
	if err := in.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
	if len(sub.unsubscribed) != 1 {
		t.Errorf("second Stop() unsubscribed again")
	}
}

func TestStart_SubscribeError(t *testing.T) {
	in, sub, _ := setupIngest(t)
	sub.err = mqtt.ErrNotConnected

	if err := in.Start(context.Background()); !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Start() error = %v, want ErrNotConnected", err)
	}
}

func TestHandleMessage(t *testing.T) {
	tests := []struct {
		name      string
		topic     string
		payload   string
		wantErr   error
		wantPub   bus.Payload
		wantScope string
	}{
		{
			name:      "motion detected",
			topic:     "graylogic/state/knx/pir-kitchen",
			payload:   `{"device_id":"pir-kitchen","state":{"motion":true}}`,
			wantPub:   events.MotionChanged{SensorID: "pir-kitchen", Area: "kitchen", Detected: true},
			wantScope: "kitchen",
		},
		{
			name:      "presence as string",
			topic:     "graylogic/state/knx/pir-kitchen",
			payload:   `{"state":{"presence":"off"}}`,
			wantPub:   events.MotionChanged{SensorID: "pir-kitchen", Area: "kitchen", Detected: false},
			wantScope: "kitchen",
		},
		{
			name:      "knx group address",
			topic:     mqtt.Topics{}.BridgeState("knx", "1/1/1"),
			payload:   `{"state":{"motion":true}}`,
			wantPub:   events.MotionChanged{SensorID: "pir-hall", Area: "hall", Detected: true},
			wantScope: "hall",
		},
		{
			name:      "knx group address as sent by the bridge",
			topic:     "graylogic/state/knx/1%2F1%2F1",
			payload:   `{"state":{"motion":false}}`,
			wantPub:   events.MotionChanged{SensorID: "pir-hall", Area: "hall", Detected: false},
			wantScope: "hall",
		},
		{
			name:    "malformed address escape",
			topic:   "graylogic/state/knx/1%ZZ1",
			payload: `{}`,
			wantErr: ErrInvalidTopic,
		},
		{
			name:    "temperature",
			topic:   "graylogic/state/modbus/temp-40",
			payload: `{"state":{"temperature":27.5}}`,
			wantPub: events.OutdoorTemperatureChanged{SensorID: "outdoor", Celsius: 27.5},
		},
		{
			name:    "unknown address ignored",
			topic:   "graylogic/state/knx/light-living",
			payload: `{"state":{"on":true}}`,
		},
		{
			name:    "bad json",
			topic:   "graylogic/state/knx/pir-kitchen",
			payload: `{not json`,
			wantErr: ErrInvalidMessage,
		},
		{
			name:    "missing value",
			topic:   "graylogic/state/modbus/temp-40",
			payload: `{"state":{"humidity":40}}`,
			wantErr: ErrMissingValue,
		},
		{
			name:    "bad topic",
			topic:   "graylogic/command/knx/pir-kitchen",
			payload: `{}`,
			wantErr: ErrInvalidTopic,
		},
		{
			name:    "no address",
			topic:   "graylogic/state/knx",
			payload: `{}`,
			wantErr: ErrInvalidTopic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, _, pub := setupIngest(t)

			err := in.HandleMessage(tt.topic, []byte(tt.payload))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("HandleMessage() error = %v, want %v", err, tt.wantErr)
				}
				if len(pub.msgs) != 0 {
					t.Errorf("published %d on error", len(pub.msgs))
				}
				return
			}
			if err != nil {
				t.Fatalf("HandleMessage() error = %v", err)
			}

			if tt.wantPub == nil {
				if len(pub.msgs) != 0 {
					t.Errorf("published %v, want nothing", pub.msgs)
				}
				return
			}
			if len(pub.msgs) != 1 {
				t.Fatalf("published %d, want 1", len(pub.msgs))
			}
			if pub.msgs[0].payload != tt.wantPub {
				t.Errorf("payload = %#v, want %#v", pub.msgs[0].payload, tt.wantPub)
			}
			if pub.msgs[0].scope != tt.wantScope {
				t.Errorf("scope = %q, want %q", pub.msgs[0].scope, tt.wantScope)
			}
		})
	}
}

func TestHandleMessage_PublishError(t *testing.T) {
	in, _, pub := setupIngest(t)
	pub.err = bus.ErrClosed

	err := in.HandleMessage("graylogic/state/knx/pir-kitchen", []byte(`{"state":{"motion":true}}`))
	if !errors.Is(err, bus.ErrClosed) {
		t.Errorf("error = %v, want bus.ErrClosed", err)
	}
}

func TestStats(t *testing.T) {
	in, _, _ := setupIngest(t)

	in.HandleMessage("graylogic/state/knx/pir-kitchen", []byte(`{"state":{"motion":true}}`)) //nolint:errcheck // counted below
	in.HandleMessage("graylogic/state/knx/unknown", []byte(`{}`))                             //nolint:errcheck // counted below
	in.HandleMessage("bogus", nil)                                                           //nolint:errcheck // counted below

	got := in.Stats()
	want := Stats{Received: 3, Published: 1, Ignored: 1, Rejected: 1}
	if got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}
}

func TestIngest_ThroughBus(t *testing.T) {
	b := bus.New()
	defer b.Close()

	in, err := NewMQTTIngest(newMockSubscriber(), b, testSensors())
	if err != nil {
		t.Fatalf("NewMQTTIngest() error = %v", err)
	}

	var got []events.MotionChanged
	if _, err := b.Subscribe(events.KindMotion, "kitchen", bus.Handle(func(_ context.Context, m events.MotionChanged, _ bus.Envelope) error {
		got = append(got, m)
		return nil
	})); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := in.HandleMessage("graylogic/state/knx/pir-kitchen", []byte(`{"state":{"motion":1}}`)); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if len(got) != 1 || !got[0].Detected {
		t.Errorf("received %v, want one detected motion", got)
	}
}
