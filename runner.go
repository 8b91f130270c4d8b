package sculptor

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Runner lets the orchestrator schedule work with any concurrency model.
type Runner interface {
	Go(fn func() error) // schedule
	Wait() error        // join / propagate first err
}

// NewLimitedRunner creates a runner with bounded concurrency. A limit of zero
// or less means no bound.
func NewLimitedRunner(ctx context.Context, maxConcurrency int) Runner {
	return newErrGroupRunner(ctx, maxConcurrency)
}

// errGroupRunner is the default implementation backed by errgroup.Group.
type errGroupRunner struct {
	ctx context.Context // derived ctx shared by all tasks
	eg  *errgroup.Group
	sem chan struct{} // concurrency gate, nil when unbounded
}

func newErrGroupRunner(parent context.Context, maxConcurrency int) *errGroupRunner {
	eg, ctx := errgroup.WithContext(parent)
	r := &errGroupRunner{ctx: ctx, eg: eg}
	if maxConcurrency > 0 {
		r.sem = make(chan struct{}, maxConcurrency)
	}
	return r
}

func (r *errGroupRunner) Go(fn func() error) {
	r.eg.Go(func() error {
		if r.sem != nil {
			r.sem <- struct{}{}        // acquire
			defer func() { <-r.sem }() // release
		}
		return fn()
	})
}

func (r *errGroupRunner) Wait() error { return r.eg.Wait() }

// gateContext is the context used to decide whether queued items may still
// start. For the default runner it is cancelled by the first task error.
func gateContext(r Runner, fallback context.Context) context.Context {
	if d, ok := r.(*errGroupRunner); ok {
		return d.ctx
	}
	return fallback
}
