// Package actuator is the command sink automations use to drive switches,
// relays and roller shutters.
//
// Sink is the port. MQTTSink publishes commands to the protocol bridges on
//
//	graylogic/command/{protocol}/{address}
//
// serialising commands per actuator address, and publishes an
// events.ActuatorStateChanged on the bus once a command is accepted.
//
// Actuators can be disabled at runtime; a disabled actuator rejects every
// command with ErrDisabled.
package actuator
