// Package logging provides structured logging using uber/zap.
//
// This package offers production-ready logging with two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Session-scoped child loggers carry the session_id field so that one
// coordinator process hosting many worker sessions stays greppable.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Server starting", zap.String("port", "8000"))
//	logger.Session(sid).Warn("mutation dropped", zap.String("target", target))
package logging
