// Package logging provides structured logging for mqttmon.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured status logging next to the message stream.
//
// # Features
//
//   - Text output for terminals (human-readable)
//   - JSON output for log shippers (machine-parsable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
// Logging is configured via the LoggingConfig in the config file:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// With output "stdout" entries share the console writer with the message
// stream. Sending logs to stderr keeps stdout a pure message stream that
// can be piped into other tools.
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version, os.Stdout)
//	logger.Info("connecting", "broker", "tcp://localhost:1883")
//	logger.Error("subscription failed", "error", err)
//
// # Security
//
// Never log broker passwords or InfluxDB tokens.
package logging
