// Package logging provides structured logging for FieldGrid Core.
//
// It wraps the standard library's log/slog with configuration-driven
// format/level selection and service-wide default fields. Components receive
// a *Logger (or a narrower interface they define) by injection; there is no
// package-level global logger.
package logging
