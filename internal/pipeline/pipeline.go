package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"kiln/internal/diag"
	"kiln/internal/plan"
)

// ErrClosed reports a submit against a pipeline that already stopped
// accepting work.
var ErrClosed = errors.New("pipeline closed")

// CookFunc transforms one declared input into its cooked form. It must be
// pure apart from reading the input, and it must observe ctx between stages.
type CookFunc[Req, Res any] func(ctx context.Context, req Req) (Res, error)

// Result is one completed transform. Diags carry cook failures and panics
// without item names; callers attach those. Err mirrors the failure cause so
// cancellation can be told apart from cook errors.
type Result[Res any] struct {
	Source plan.ItemID
	Out    Res
	Diags  []diag.Diagnostic
	Err    error
	OK     bool
}

// Line is the kind-erased view the job runner drives. Every Pipeline
// instantiation implements it.
type Line interface {
	plan.Pipeline
	SubmitWork(ctx context.Context, source plan.ItemID, work any) error
	CollectWork(ctx context.Context) (Result[any], error)
	HasPending() bool
	PendingCount() int
	Close()
}

type job[Req any] struct {
	ctx    context.Context
	source plan.ItemID
	req    Req
}

// Pipeline is a bounded worker stage for one resource kind.
type Pipeline[Req, Res any] struct {
	kind    plan.Kind
	fn      CookFunc[Req, Res]
	in      chan job[Req]
	out     chan Result[Res]
	quit    chan struct{}
	pending atomic.Int64
	closed  sync.Once
	wg      sync.WaitGroup
}

// New starts workers goroutines over a queueDepth-deep input queue.
func New[Req, Res any](kind plan.Kind, workers, queueDepth int, fn CookFunc[Req, Res]) *Pipeline[Req, Res] {
	if workers < 1 {
		workers = 1
	}
	if queueDepth < 1 {
		queueDepth = 1
	}
	p := &Pipeline[Req, Res]{
		kind: kind,
		fn:   fn,
		in:   make(chan job[Req], queueDepth),
		out:  make(chan Result[Res], queueDepth+workers),
		quit: make(chan struct{}),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// PipelineKind reports which plan kind this pipeline cooks.
func (p *Pipeline[Req, Res]) PipelineKind() plan.Kind {
	return p.kind
}

// Submit enqueues one transform. It blocks while the input queue is full and
// returns the context error if ctx ends first. The submitted ctx is also the
// one the cook function observes.
func (p *Pipeline[Req, Res]) Submit(ctx context.Context, source plan.ItemID, req Req) error {
	select {
	case <-p.quit:
		return ErrClosed
	default:
	}
	p.pending.Add(1)
	select {
	case p.in <- job[Req]{ctx: ctx, source: source, req: req}:
		return nil
	case <-ctx.Done():
		p.pending.Add(-1)
		return ctx.Err()
	case <-p.quit:
		p.pending.Add(-1)
		return ErrClosed
	}
}

// Collect returns the next completed result in finish order. It blocks until
// a result is ready or ctx ends.
func (p *Pipeline[Req, Res]) Collect(ctx context.Context) (Result[Res], error) {
	select {
	case res := <-p.out:
		p.pending.Add(-1)
		return res, nil
	case <-ctx.Done():
		return Result[Res]{}, ctx.Err()
	}
}

// SubmitWork is the kind-erased Submit. It rejects work of the wrong type
// instead of panicking.
func (p *Pipeline[Req, Res]) SubmitWork(ctx context.Context, source plan.ItemID, work any) error {
	req, ok := work.(Req)
	if !ok {
		var want Req
		return fmt.Errorf("%s pipeline: work is %T, want %T", p.kind, work, want)
	}
	return p.Submit(ctx, source, req)
}

// CollectWork is the kind-erased Collect.
func (p *Pipeline[Req, Res]) CollectWork(ctx context.Context) (Result[any], error) {
	res, err := p.Collect(ctx)
	if err != nil {
		return Result[any]{}, err
	}
	return Result[any]{
		Source: res.Source,
		Out:    res.Out,
		Diags:  res.Diags,
		Err:    res.Err,
		OK:     res.OK,
	}, nil
}

// HasPending reports whether any submitted result has not been collected.
func (p *Pipeline[Req, Res]) HasPending() bool {
	return p.pending.Load() > 0
}

// PendingCount returns submitted-but-uncollected results.
func (p *Pipeline[Req, Res]) PendingCount() int {
	return int(p.pending.Load())
}

// Close stops intake and lets workers drain what is already queued. Safe to
// call more than once. Callers collect all pending results first.
func (p *Pipeline[Req, Res]) Close() {
	p.closed.Do(func() {
		close(p.quit)
	})
	p.wg.Wait()
}

func (p *Pipeline[Req, Res]) worker() {
	defer p.wg.Done()
	for {
		select {
		case j := <-p.in:
			p.out <- p.run(j)
		case <-p.quit:
			for {
				select {
				case j := <-p.in:
					p.out <- p.run(j)
				default:
					return
				}
			}
		}
	}
}

func (p *Pipeline[Req, Res]) run(j job[Req]) Result[Res] {
	res := Result[Res]{Source: j.source}
	func() {
		defer func() {
			if r := recover(); r != nil {
				res.Err = fmt.Errorf("%s cook panicked: %v", p.kind, r)
				res.Diags = append(res.Diags, diag.Error(diag.CodeCookPanic, "%s cook panicked: %v", p.kind, r))
			}
		}()
		out, err := p.fn(j.ctx, j.req)
		if err != nil {
			res.Err = err
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				res.Diags = append(res.Diags, diag.Error(diag.CodeCookFailed, "%s cook failed: %v", p.kind, err))
			}
			return
		}
		res.Out = out
	}()
	res.OK = res.Err == nil
	return res
}
