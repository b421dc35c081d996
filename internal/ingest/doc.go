// Package ingest turns bridge state messages into bus payloads.
//
// Protocol bridges publish device state on graylogic/state/{protocol}/{address}.
// MQTTIngest subscribes to every state topic, looks up the configured sensor
// for the protocol and address, and publishes the matching domain payload:
//
//	graylogic/state/knx/pir-kitchen  {"state":{"motion":true}}
//	    → events.MotionChanged{SensorID, Area, Detected}   scope = area
//
//	graylogic/state/modbus/outdoor-temp  {"state":{"temperature":27.5}}
//	    → events.OutdoorTemperatureChanged{SensorID, Celsius}   scope = ""
//
// Messages for unknown addresses are ignored. Malformed messages are
// returned as errors so the MQTT client logs them.
package ingest
