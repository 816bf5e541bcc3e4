package logging

import (
	"context"
	"log/slog"

	"kiln/internal/diag"
)

// Standardized structured logging keys. Components must use these constants
// rather than raw strings so lines stay greppable across packages.
const (
	FieldComponent = "component"
	FieldJobID     = "job_id"
	FieldStage     = "stage"
	FieldItem      = "item"
	FieldKind      = "kind"
	FieldPipeline  = "pipeline"
	FieldEmitter   = "emitter"
	FieldCode      = "code"
	FieldIndex     = "index"
	FieldOffset    = "offset"
	FieldSize      = "size"
	FieldPath      = "path"
	FieldCount     = "count"
	FieldDuration  = "duration"
)

// ContextFields extracts standardized slog attributes from the provided
// context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := diag.JobIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldJobID, id))
	}
	if stage, ok := diag.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if item, ok := diag.ItemFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldItem, item))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from
// the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
