// Package diag defines the diagnostic records, severity levels, and error
// markers shared across the cooking pipeline.
//
// Planner validation, pipeline stage failures, emitter write errors, and
// cancellation all surface as Diagnostic values with stable machine-readable
// codes, collected per job by a mutex-guarded Collector. Sentinel error
// markers plus the Wrap helper tag Go errors for classification with
// errors.Is while keeping the causal chain intact.
//
// Use these helpers when adding new failure paths so reports keep a uniform
// shape regardless of which component produced them.
package diag
