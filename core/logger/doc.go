// Package logger provides structured logging for the catalog manager,
// built on Zap.
//
// New builds a logger from the Level and Format settings of the log config
// section: json encoding for production use, console encoding with colored
// levels for local refresh runs and development.
//
// # Request Correlation
//
// WithRayID attaches the ray ID stored by the rayid middleware to a logger,
// so every log line emitted while handling one refresh request can be
// correlated.
//
// # Usage
//
//	log, _ := logger.New(&logger.Config{Level: "info", Format: "json"})
//	log.Info("Server started")
//
//	// In a request handler:
//	l := logger.WithRayID(log, c)
//	l.Error("Handler failed", zap.Error(err))
package logger
