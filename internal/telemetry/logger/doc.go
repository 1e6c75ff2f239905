// Package logger provides structured logging for corslight.
//
// It wraps the standard library log/slog:
//
//   - logger.go: handler construction, dynamic level, global default
//   - context.go: carrying a logger and a connection id in a context
//   - redact.go: masking of session tokens and stored values
//
// Stored values and session tokens must never reach a log in clear text.
// Attributes whose name suggests either are redacted by the handler, and
// values carrying the session token prefix are partially masked wherever
// they appear.
package logger
