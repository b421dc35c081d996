package events

import (
	"time"

	"github.com/nerrad567/gray-logic-automation/internal/bus"
)

// Kinds published by the automation core.
var (
	KindEvent = bus.NewKind("event", nil)

	KindSensor = bus.NewKind("sensor", KindEvent)
	KindMotion = bus.NewKind("sensor.motion", KindSensor)

	KindEnvironment        = bus.NewKind("environment", KindEvent)
	KindDaylight           = bus.NewKind("environment.daylight", KindEnvironment)
	KindOutdoorTemperature = bus.NewKind("environment.temperature", KindEnvironment)

	KindTimer = bus.NewKind("timer", KindEvent)
	KindTick  = bus.NewKind("timer.tick", KindTimer)

	KindActuator      = bus.NewKind("actuator", KindEvent)
	KindActuatorState = bus.NewKind("actuator.state", KindActuator)

	KindAutomation      = bus.NewKind("automation", KindEvent)
	KindAutomationState = bus.NewKind("automation.state", KindAutomation)
)

// byName indexes every kind above for lookups from text (API, ingest).
var byName = map[string]*bus.Kind{}

func init() {
	for _, k := range []*bus.Kind{
		KindEvent, KindSensor, KindMotion,
		KindEnvironment, KindDaylight, KindOutdoorTemperature,
		KindTimer, KindTick,
		KindActuator, KindActuatorState,
		KindAutomation, KindAutomationState,
	} {
		byName[k.Name()] = k
	}
}

// KindByName returns the kind registered under name.
func KindByName(name string) (*bus.Kind, bool) {
	k, ok := byName[name]
	return k, ok
}

// MotionChanged reports a motion detector changing state.
type MotionChanged struct {
	SensorID string `json:"sensor_id"`
	Area     string `json:"area"`
	Detected bool   `json:"detected"`
}

// Kind implements bus.Payload.
func (MotionChanged) Kind() *bus.Kind { return KindMotion }

// Phase is the daylight phase.
type Phase string

const (
	PhaseDay   Phase = "day"
	PhaseNight Phase = "night"
)

// DaylightChanged reports a transition between day and night.
type DaylightChanged struct {
	Phase   Phase     `json:"phase"`
	Sunrise time.Time `json:"sunrise"`
	Sunset  time.Time `json:"sunset"`
}

// Kind implements bus.Payload.
func (DaylightChanged) Kind() *bus.Kind { return KindDaylight }

// IsDark reports whether the phase is night.
func (d DaylightChanged) IsDark() bool { return d.Phase == PhaseNight }

// OutdoorTemperatureChanged reports a new outdoor temperature reading.
type OutdoorTemperatureChanged struct {
	SensorID string  `json:"sensor_id"`
	Celsius  float64 `json:"celsius"`
}

// Kind implements bus.Payload.
func (OutdoorTemperatureChanged) Kind() *bus.Kind { return KindOutdoorTemperature }

// Tick is published by the clock on every interval.
type Tick struct {
	At time.Time `json:"at"`
}

// Kind implements bus.Payload.
func (Tick) Kind() *bus.Kind { return KindTick }

// ActuatorStateChanged is published after an actuator accepted a command.
type ActuatorStateChanged struct {
	ActuatorID string `json:"actuator_id"`
	State      string `json:"state"`
	Source     string `json:"source"`
}

// Kind implements bus.Payload.
func (ActuatorStateChanged) Kind() *bus.Kind { return KindActuatorState }

// AutomationStateChanged is published on every rule state transition.
type AutomationStateChanged struct {
	ID   string `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
}

// Kind implements bus.Payload.
func (AutomationStateChanged) Kind() *bus.Kind { return KindAutomationState }
