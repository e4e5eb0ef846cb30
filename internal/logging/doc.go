// Package logging wraps log/slog with the handlers and attribute conventions
// used across the pipeline: a console handler for interactive use, a JSON
// handler for machine consumption, and context helpers that stamp job and
// stage identifiers onto every record emitted inside a stage.
package logging
