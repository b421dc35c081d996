package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-automation/internal/bus"
	"github.com/nerrad567/gray-logic-automation/internal/events"
	"github.com/nerrad567/gray-logic-automation/internal/infrastructure/config"
)

func testHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func fakeClient(hub *Hub, channels ...string) *WSClient {
	subs := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		subs[ch] = struct{}{}
	}
	return &WSClient{
		hub:           hub,
		send:          make(chan []byte, defaultSendBuffer),
		subscriptions: subs,
	}
}

func motionEnvelope() bus.Envelope {
	return bus.NewEnvelope(events.MotionChanged{SensorID: "pir-kitchen", Area: "kitchen", Detected: true}, "kitchen", time.Now())
}

func TestHub_BroadcastByKindChain(t *testing.T) {
	hub := testHub(t)

	exact := fakeClient(hub, "sensor.motion")
	parent := fakeClient(hub, "sensor")
	everything := fakeClient(hub, "event")
	other := fakeClient(hub, "actuator")
	for _, c := range []*WSClient{exact, parent, everything, other} {
		hub.Register(c)
	}

	hub.Broadcast(motionEnvelope())

	for name, c := range map[string]*WSClient{"exact": exact, "parent": parent, "event": everything} {
		select {
		case data := <-c.send:
			var msg WSMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("%s: unmarshal: %v", name, err)
			}
			if msg.Type != WSTypeEvent || msg.EventType != "sensor.motion" || msg.Context != "kitchen" {
				t.Errorf("%s: message = %+v", name, msg)
			}
		case <-time.After(time.Second):
			t.Errorf("%s: timed out waiting for broadcast", name)
		}
	}

	select {
	case <-other.send:
		t.Error("client subscribed to actuator received a sensor event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := testHub(t)

	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d", hub.ClientCount())
	}
	c := fakeClient(hub)
	hub.Register(c)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}
	hub.Unregister(c)
	hub.Unregister(c)
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}

	// Broadcasting to a client whose channel is closed must not panic.
	c.trySend([]byte("late"))
}

func TestHub_SlowClientDoesNotBlock(t *testing.T) {
	hub := testHub(t)
	c := &WSClient{hub: hub, send: make(chan []byte, 1), subscriptions: map[string]struct{}{"event": {}}}
	hub.Register(c)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.Broadcast(motionEnvelope())
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on a full client buffer")
	}
}

func TestKeepaliveDefaults(t *testing.T) {
	ping, pong := keepalive(config.WebSocketConfig{})
	if ping != defaultPingInterval || pong != defaultPongTimeout {
		t.Errorf("keepalive(zero) = %v, %v", ping, pong)
	}
	ping, pong = keepalive(config.WebSocketConfig{PingInterval: 5, PongTimeout: 2})
	if ping != 5*time.Second || pong != 2*time.Second {
		t.Errorf("keepalive(5,2) = %v, %v", ping, pong)
	}
}

// TestWebSocket_RelaysBusEvents connects a real client through the router
// and receives an event published on the bus.
func TestWebSocket_RelaysBusEvents(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go env.srv.Hub().Run(ctx)
	token, err := env.srv.Hub().Relay(env.bus)
	if err != nil {
		t.Fatalf("Relay() error = %v", err)
	}
	defer env.bus.Unsubscribe(token)

	ts := httptest.NewServer(env.router)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	resp.Body.Close()
	defer conn.Close()

	read := func() WSMessage {
		t.Helper()
		//nolint:errcheck // test deadline
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		return msg
	}

	if err := conn.WriteJSON(WSMessage{Type: WSTypeSubscribe, ID: "1", Payload: WSSubscribePayload{Channels: []string{"nope"}}}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if msg := read(); msg.Type != WSTypeError || msg.ID != "1" {
		t.Errorf("unknown channel reply = %+v", msg)
	}

	if err := conn.WriteJSON(WSMessage{Type: WSTypeSubscribe, ID: "2", Payload: WSSubscribePayload{Channels: []string{"sensor"}}}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if msg := read(); msg.Type != WSTypeResponse || msg.ID != "2" {
		t.Fatalf("subscribe reply = %+v", msg)
	}

	if err := env.bus.Publish(context.Background(), events.MotionChanged{SensorID: "pir-hall", Area: "hall", Detected: true}, "hall"); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	msg := read()
	if msg.Type != WSTypeEvent || msg.EventType != "sensor.motion" || msg.Context != "hall" {
		t.Errorf("event = %+v", msg)
	}

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "3"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if msg := read(); msg.Type != WSTypePong || msg.ID != "3" {
		t.Errorf("ping reply = %+v", msg)
	}
}
