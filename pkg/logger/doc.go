// Package logger provides the structured logging interface used across the
// gallery builder.
//
// It wraps zerolog behind a small Logger interface with support for:
//   - Multiple log levels (Debug, Info, Warn, Error, Fatal)
//   - Structured logging with fields
//   - Coloured console output, optionally mirrored to a file
//   - A global logger instance for commands
//
// Basic Usage:
//
//	logger.Initialize(&cfg.Logging)
//	logger.WithField("username", "alice").Info("Captured page")
//
// Components take a Logger in their constructors so tests can pass
// NewNopLogger or NewTestLogger instead of the global instance.
package logger
