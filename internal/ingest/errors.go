package ingest

import "errors"

var (
	// ErrInvalidTopic is returned for topics outside graylogic/state/{protocol}/{address}.
	ErrInvalidTopic = errors.New("ingest: invalid state topic")

	// ErrInvalidMessage is returned when a state payload cannot be decoded.
	ErrInvalidMessage = errors.New("ingest: invalid state message")

	// ErrMissingValue is returned when the state lacks the field the sensor needs.
	ErrMissingValue = errors.New("ingest: state value missing")

	// ErrUnknownSensorKind is returned by NewMQTTIngest for unsupported kinds.
	ErrUnknownSensorKind = errors.New("ingest: unknown sensor kind")
)
