// Package logging provides structured logging for the automation controller.
//
// It wraps log/slog:
//
//   - JSON output for production, text for development
//   - Default fields (service, version) on every entry
//   - Level filtering (debug, info, warn, error)
//   - Per-component child loggers
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	engineLog := logger.Component("automation")
//	engineLog.Info("rule registered", "id", "conditional_on:kitchen")
//
// Never log secrets such as MQTT passwords or InfluxDB tokens.
package logging
