// Package diagnostics is the failure-reporting channel for the automation
// core.
//
// Handler failures on the bus, condition evaluation failures, command
// dispatch failures and scheduler failures are all reported here instead of
// being returned to publishers. A Journal logs each report, keeps a bounded
// ring of recent entries for the operator API, and forwards entries to an
// optional Recorder (InfluxDB in production).
//
// Report never panics and never blocks on I/O beyond the logger and the
// recorder's own non-blocking write.
package diagnostics
