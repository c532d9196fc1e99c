// Package slogutil is the ambient logging helper shared by every component
// of this module. It wraps the standard log/slog package for structured,
// leveled logging, so that components log the same way throughout rather
// than mixing fmt.Println and structured logging.
package slogutil

import "log/slog"

// For returns a logger scoped to component, tagging every record with a
// "component" attribute so log lines from the channel, member, and
// cluster layers are easy to tell apart.
func For(component string) *slog.Logger {
	return slog.Default().With(slog.String("component", component))
}

// Error is a convenience wrapper matching the slog.String/slog.Int style
// of attribute constructors, for the common case of attaching an error.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}
