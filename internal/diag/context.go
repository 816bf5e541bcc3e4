package diag

import "context"

type contextKey string

const (
	jobIDKey contextKey = "kiln.job_id"
	stageKey contextKey = "kiln.stage"
	itemKey  contextKey = "kiln.item"
)

// WithJobID stamps a job identifier onto the context for log enrichment.
func WithJobID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, jobIDKey, id)
}

// JobIDFromContext extracts a job identifier, if present.
func JobIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(jobIDKey).(string)
	return id, ok && id != ""
}

// WithStage stamps the current job stage onto the context.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext extracts the current job stage, if present.
func StageFromContext(ctx context.Context) (string, bool) {
	stage, ok := ctx.Value(stageKey).(string)
	return stage, ok && stage != ""
}

// WithItem stamps the debug name of the plan item being processed.
func WithItem(ctx context.Context, item string) context.Context {
	return context.WithValue(ctx, itemKey, item)
}

// ItemFromContext extracts the current plan item debug name, if present.
func ItemFromContext(ctx context.Context) (string, bool) {
	item, ok := ctx.Value(itemKey).(string)
	return item, ok && item != ""
}
