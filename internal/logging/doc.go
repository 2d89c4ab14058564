// Package logging assembles the slog loggers used by the queue engine and the
// qoxide CLI.
//
// It owns the console and JSON handlers, level parsing, and output routing,
// plus the standard field keys (message_id, state, op) so every component
// emits records with the same shape. NewNop gives tests and library callers a
// logger that discards everything.
package logging
