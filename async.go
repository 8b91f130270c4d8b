package sculptor

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// AsyncSculptor launches every item as its own goroutine with no
// concurrency cap.
type AsyncSculptor struct {
	*core
}

// NewAsync returns an AsyncSculptor that sends requests through t.
func NewAsync(t Transport, s Schema, optFns ...func(*Options)) (*AsyncSculptor, error) {
	c, err := newCore(t, s, optFns)
	if err != nil {
		return nil, err
	}
	return &AsyncSculptor{core: c}, nil
}

// SculptAsync starts structuring record and returns a channel that receives
// exactly one Result.
func (a *AsyncSculptor) SculptAsync(ctx context.Context, record Record, optFns ...func(*RunOptions)) <-chan Result {
	o := newRunOptions(optFns)
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		rec, err := a.sculpt(ctx, record, o, a.log)
		out <- Result{Record: rec, Err: err}
	}()
	return out
}

// Sculpt structures a single record and waits for the outcome.
func (a *AsyncSculptor) Sculpt(ctx context.Context, record Record, optFns ...func(*RunOptions)) (Record, error) {
	res := <-a.SculptAsync(ctx, record, optFns...)
	return res.Record, res.Err
}

// SculptBatch launches all records concurrently. With a progress callback
// results are returned in completion order; without one they are returned
// in input order. Result.Index always names the input position.
func (a *AsyncSculptor) SculptBatch(ctx context.Context, records []Record, optFns ...func(*RunOptions)) ([]Result, error) {
	o := newRunOptions(optFns)
	log := a.log.With("batch_id", uuid.NewString())
	completionOrder := o.Progress != nil
	log.Info("Batch started",
		"items", len(records),
		"completion_order", completionOrder,
		"failures", o.Failures.String())

	r := o.Runner
	if r == nil {
		r = NewLimitedRunner(ctx, 0)
	}
	gate, cancel := context.WithCancel(gateContext(r, ctx))
	defer cancel()

	var (
		progress  = newProgressTracker(len(records), o.Progress, log)
		slots     = make([]Result, len(records))
		completed = make(chan Result, len(records))
	)
	for i, rec := range records {
		r.Go(func() error {
			var res Result
			if gate.Err() != nil {
				res = Result{Index: i, Err: fmt.Errorf("item not started: %w", context.Cause(gate))}
			} else {
				res = a.runItem(ctx, i, rec, o, log)
				progress.done()
			}
			if completionOrder {
				completed <- res
			} else {
				slots[i] = res
			}
			if res.Err != nil && o.Failures == AbortOnFailure {
				cancel()
				return fmt.Errorf("item %d: %w", i, res.Err)
			}
			return nil
		})
	}
	err := r.Wait()
	close(completed)
	if err != nil {
		log.Warn("Batch aborted", "error", err)
		return nil, err
	}

	results := slots
	if completionOrder {
		results = make([]Result, 0, len(records))
		for res := range completed {
			results = append(results, res)
		}
	}
	return finishBatch(results, o, log), nil
}
