// Package logging wires slog with the console and JSON handlers used by the
// worker processes, plus helpers for standardized attribute keys and for
// deriving log fields from unit-of-work context.
package logging
