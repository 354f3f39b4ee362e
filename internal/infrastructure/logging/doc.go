// Package logging provides structured logging for the IR bridge.
//
// It wraps log/slog so every component logs with the same default fields
// (service, version) and level filtering.
//
// Logging is configured via the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	gcLog := logger.Component("globalcache")
//	gcLog.Info("connected", "host", host)
//
// Never log secrets, tokens or passwords.
package logging
