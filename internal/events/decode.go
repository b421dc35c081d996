package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-automation/internal/bus"
)

// ErrNotDecodable is returned by Decode for names without a concrete
// payload (unknown names and interior kinds such as "sensor").
var ErrNotDecodable = errors.New("events: kind has no payload")

// decoders maps leaf kind names to their JSON payload decoders.
var decoders = map[string]func([]byte) (bus.Payload, error){
	KindMotion.Name():             decodeAs[MotionChanged],
	KindDaylight.Name():           decodeAs[DaylightChanged],
	KindOutdoorTemperature.Name(): decodeAs[OutdoorTemperatureChanged],
	KindTick.Name():               decodeAs[Tick],
	KindActuatorState.Name():      decodeAs[ActuatorStateChanged],
	KindAutomationState.Name():    decodeAs[AutomationStateChanged],
}

// Decode builds the payload registered under kind name from JSON. Used to
// inject synthetic events.
func Decode(name string, data []byte) (bus.Payload, error) {
	decode, ok := decoders[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotDecodable, name)
	}
	return decode(data)
}

func decodeAs[T bus.Payload](data []byte) (bus.Payload, error) {
	var p T
	if len(data) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", p.Kind().Name(), err)
	}
	return p, nil
}
