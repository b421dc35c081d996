// Package influxdb exports automation history and telemetry to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. The export is
// optional: when influxdb.enabled is false, Connect returns ErrDisabled
// and the controller runs without it.
//
// # Measurements
//
//   - automation_trigger: one point per automation command attempt
//   - actuator_state: states accepted by actuators
//   - sensor: numeric sensor readings (outdoor temperature)
//   - diagnostic: entries from the diagnostics journal
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteSensorReading("temp-garden", "temperature_c", 24.5)
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are batched according to
// batch_size and flush_interval and never block the caller; asynchronous
// failures are delivered to the SetOnError callback.
package influxdb
