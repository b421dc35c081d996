package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-automation/internal/diagnostics"
)

// Measurement names.
const (
	MeasurementAutomationTrigger = "automation_trigger"
	MeasurementActuatorState     = "actuator_state"
	MeasurementSensor            = "sensor"
	MeasurementDiagnostic        = "diagnostic"
)

// AutomationTrigger is one command attempt made by an automation.
type AutomationTrigger struct {
	AutomationID string
	Area         string
	Flavor       string
	State        string
	Status       string
	Reason       string
	Actuators    int
	At           time.Time
}

// WriteAutomationTrigger records a trigger. Tags carry the low-cardinality
// identifiers; the reason is stored as a field.
//
// Example:
//
//	client.WriteAutomationTrigger(influxdb.AutomationTrigger{
//	    AutomationID: "motion-light:kitchen", Area: "kitchen",
//	    Flavor: "motion-light", State: "on", Status: "ok", At: time.Now(),
//	})
func (c *Client) WriteAutomationTrigger(t AutomationTrigger) {
	at := t.At
	if at.IsZero() {
		at = time.Now()
	}
	c.writePoint(MeasurementAutomationTrigger,
		map[string]string{
			"automation_id": t.AutomationID,
			"area":          t.Area,
			"flavor":        t.Flavor,
			"status":        t.Status,
		},
		map[string]interface{}{
			"state":     t.State,
			"reason":    t.Reason,
			"actuators": t.Actuators,
		},
		at,
	)
}

// WriteActuatorState records a state an actuator accepted.
//
// Parameters:
//   - actuatorID: e.g. "light-kitchen"
//   - state: commanded state ("on", "off", "open", "closed")
//   - source: who issued the command ("automation", "api")
func (c *Client) WriteActuatorState(actuatorID, state, source string) {
	c.writePoint(MeasurementActuatorState,
		map[string]string{
			"actuator_id": actuatorID,
			"source":      source,
		},
		map[string]interface{}{
			"state": state,
		},
		time.Now(),
	)
}

// WriteSensorReading records a numeric sensor value.
//
//	client.WriteSensorReading("temp-garden", "temperature_c", 21.5)
func (c *Client) WriteSensorReading(sensorID, measurement string, value float64) {
	c.writePoint(MeasurementSensor,
		map[string]string{
			"sensor_id":   sensorID,
			"measurement": measurement,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)
}

// RecordDiagnostic implements diagnostics.Recorder.
func (c *Client) RecordDiagnostic(entry diagnostics.Entry) {
	fields := map[string]interface{}{
		"message": entry.Message,
	}
	for k, v := range entry.Attrs {
		fields["attr_"+k] = v
	}
	c.writePoint(MeasurementDiagnostic,
		map[string]string{
			"severity": string(entry.Severity),
		},
		fields,
		entry.Time,
	)
}

func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]interface{}, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}
