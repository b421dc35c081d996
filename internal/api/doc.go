// Package api implements the operator HTTP API and live event stream.
//
// This package provides:
//   - Automation status, removal and trigger history
//   - Actuator listing, enable/disable and manual commands
//   - Synthetic event injection onto the bus
//   - Diagnostics journal and Prometheus metrics
//   - WebSocket hub relaying bus events to subscribed clients
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
//	operator ──HTTP──► router ──► Automations (automation.Engine)
//	                          ├─► Actuators   (actuator.MQTTSink)
//	                          ├─► Publisher   (bus.Bus)
//	                          └─► Diagnostics (diagnostics.Journal)
//
//	bus.Bus ──KindEvent──► Hub ──► WebSocket clients (by kind channel)
//
// Manual commands are tagged with actuator.SourceAPI so they are
// distinguishable from automation commands in the event stream and history.
//
// # Graceful Degradation
//
// Every dependency except the logger is optional. Endpoints whose
// dependency is missing answer 503.
package api
