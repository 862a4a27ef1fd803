// Package logging builds the slog loggers used across potreed and provides
// attribute helpers plus context-derived structured fields.
package logging
