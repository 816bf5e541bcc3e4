package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"kiln/internal/cook"
)

var poolTaskSeq atomic.Int64

// PoolRunner returns a cook.Runner that executes stages on the shared
// compute pool. The caller stops waiting when ctx ends; a stage already
// running finishes on the pool and its completion lands in the buffered
// channel, so no pool worker is ever stuck on delivery.
func PoolRunner(pool worker.DynamicWorkerPool) cook.Runner {
	if pool == nil {
		return cook.RunInline
	}
	return func(ctx context.Context, fn func() error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		done := make(chan error, 1)
		pool.SubmitTask(worker.Task{
			ID: int(poolTaskSeq.Add(1)),
			Do: func() (any, error) {
				err := fn()
				done <- err
				return nil, err
			},
		})
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
