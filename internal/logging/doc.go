// Package logging provides structured logging for the flowdeck console
// and the controller simulator.
//
// This package wraps a zap logger with convenience functions for the
// logging patterns used throughout the project. Logging is silent by
// default so nothing bleeds into the TUI; set FLOWDECK_LOG_LEVEL to
// "debug", "info", "warn" or "error" to enable output.
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("command dispatched",
//	    zap.String("op", "set_consigne"),
//	    zap.Int("index", 3),
//	)
//
// # Specialized Logging
//
// The package provides domain-specific logging functions:
//
//	logging.LogConnection("COM3", "port_opened")
//	logging.LogCommand("set_vanne", 2, err)
//	logging.LogPoll(elapsed, err)
//
// # Configuration
//
// Initialize logging at startup:
//
//	if err := logging.Initialize(cfg.LogLevel); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap
// logger handles synchronization automatically.
package logging
