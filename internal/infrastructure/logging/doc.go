// Package logging provides structured logging for netstated.
//
// It wraps log/slog so every component logs with the same handler,
// level and default fields (service, version).
//
// Logging is configured via the logging section of the config file:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	engineLog := logger.Component("netstate")
//	engineLog.Info("default network changed", "path", path)
//
// Never log broker passwords, JWT secrets or bearer tokens.
package logging
