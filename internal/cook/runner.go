package cook

import "context"

// Runner executes one cooking stage. Pipelines supply a pool-backed runner
// so stages hop onto shared compute workers; the inline runner executes on
// the calling goroutine. Either way the runner returns the context error
// when cancellation lands before or during the stage.
type Runner func(ctx context.Context, fn func() error) error

// RunInline executes the stage synchronously after a cancellation check.
func RunInline(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}
