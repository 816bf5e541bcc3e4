// Package logging assembles the structured slog loggers used across kiln.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes standardized field names plus context-aware helpers
// so pipeline code tags log lines with job ids, stages, and item names the
// same way everywhere. A no-op logger is provided for tests and for wiring
// code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so new components
// emit data with the same shape as the rest of the system.
package logging
