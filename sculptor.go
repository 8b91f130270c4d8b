package sculptor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Pipeline is the capability set shared by the thread-parallel Sculptor and
// the cooperative AsyncSculptor.
type Pipeline interface {
	BuildRequest(record Record, attempt int, lastErr error) (*Request, error)
	ParseResponse(c *Completion, original Record, mergeInput bool) (Record, error)
	Sculpt(ctx context.Context, record Record, optFns ...func(*RunOptions)) (Record, error)
	SculptBatch(ctx context.Context, records []Record, optFns ...func(*RunOptions)) ([]Result, error)
}

var (
	_ Pipeline = (*Sculptor)(nil)
	_ Pipeline = (*AsyncSculptor)(nil)
)

// Result is one batch entry: either Record or Err is set. Index is the
// position of the item in the input slice.
type Result struct {
	Index  int
	Record Record
	Err    error
}

// OK reports whether the item succeeded.
func (r Result) OK() bool { return r.Err == nil }

// core is the per-item structuring pipeline both orchestrators compose.
type core struct {
	transport Transport
	compiled  *Compiled
	builder   *RequestBuilder
	parser    *ResponseParser
	model     string
	log       *slog.Logger
}

func newCore(t Transport, s Schema, optFns []func(*Options)) (*core, error) {
	if t == nil {
		return nil, ErrNoTransport
	}
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}

	compiled, err := Compile(s, PromptConfig{
		SystemPrompt: opts.SystemPrompt,
		Instructions: opts.Instructions,
		Template:     opts.Template,
	})
	if err != nil {
		return nil, err
	}
	log.Debug("Compiled schema",
		"fields", s.Len(),
		"required", len(s.Required()),
		"contract_digest", compiled.Contract.Digest(),
		"model", opts.Model)

	return &core{
		transport: t,
		compiled:  compiled,
		builder:   NewRequestBuilder(opts.Model, compiled, opts.InputKeys, log),
		parser:    NewResponseParser(compiled.Contract, log),
		model:     opts.Model,
		log:       log,
	}, nil
}

// Contract returns the compiled output contract.
func (c *core) Contract() *Contract { return c.compiled.Contract }

// SystemPrompt returns the rendered system prompt.
func (c *core) SystemPrompt() string { return c.compiled.SystemPrompt }

// BuildRequest builds the request for one attempt of record.
func (c *core) BuildRequest(record Record, attempt int, lastErr error) (*Request, error) {
	return c.builder.Build(record, AttemptState{Attempt: attempt, LastErr: lastErr})
}

// ParseResponse parses, coerces and validates a completion.
func (c *core) ParseResponse(comp *Completion, original Record, mergeInput bool) (Record, error) {
	return c.parser.Parse(comp, original, mergeInput)
}

func (c *core) sculpt(ctx context.Context, record Record, o RunOptions, log *slog.Logger) (Record, error) {
	return runWithRetry(ctx, o.Retries, o.Backoff, log, func(ctx context.Context, state AttemptState) (Record, error) {
		req, err := c.builder.Build(record, state)
		if err != nil {
			return nil, err
		}
		comp, err := c.transport.Complete(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("complete: %w", err)
		}
		return c.parser.Parse(comp, record, o.MergeInput)
	})
}

func (c *core) runItem(ctx context.Context, index int, record Record, o RunOptions, log *slog.Logger) Result {
	out, err := c.sculpt(ctx, record, o, log.With("index", index))
	if err != nil {
		log.Warn("Item failed", "index", index, "error", err)
		return Result{Index: index, Err: err}
	}
	return Result{Index: index, Record: out}
}

// Sculptor runs the pipeline with a bounded pool of worker goroutines and
// returns batch results in input order.
type Sculptor struct {
	*core
}

// New returns a Sculptor that sends requests through t.
func New(t Transport, s Schema, optFns ...func(*Options)) (*Sculptor, error) {
	c, err := newCore(t, s, optFns)
	if err != nil {
		return nil, err
	}
	return &Sculptor{core: c}, nil
}

// Sculpt structures a single record, retrying up to the configured budget.
func (s *Sculptor) Sculpt(ctx context.Context, record Record, optFns ...func(*RunOptions)) (Record, error) {
	return s.sculpt(ctx, record, newRunOptions(optFns), s.log)
}

// SculptBatch structures every record with WithWorkers goroutines. Results
// are slotted by input position regardless of completion order. Every item is
// driven to success or exhaustion before SculptBatch returns.
func (s *Sculptor) SculptBatch(ctx context.Context, records []Record, optFns ...func(*RunOptions)) ([]Result, error) {
	o := newRunOptions(optFns)
	log := s.log.With("batch_id", uuid.NewString())

	workers := o.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(records) {
		workers = len(records)
	}
	log.Info("Batch started", "items", len(records), "workers", workers, "failures", o.Failures.String())

	r := o.Runner
	if r == nil {
		r = NewLimitedRunner(ctx, workers)
	}
	gate, cancel := context.WithCancel(gateContext(r, ctx))
	defer cancel()

	var (
		results  = make([]Result, len(records))
		started  = make([]bool, len(records))
		progress = newProgressTracker(len(records), o.Progress, log)
		jobs     = make(chan int)
	)
	go func() {
		defer close(jobs)
		for i := range records {
			select {
			case jobs <- i:
			case <-gate.Done():
				return
			}
		}
	}()

	for w := 0; w < workers; w++ {
		r.Go(func() error {
			for i := range jobs {
				if gate.Err() != nil {
					continue
				}
				started[i] = true
				res := s.runItem(ctx, i, records[i], o, log)
				results[i] = res
				progress.done()
				if res.Err != nil && o.Failures == AbortOnFailure {
					cancel()
					return fmt.Errorf("item %d: %w", i, res.Err)
				}
			}
			return nil
		})
	}
	if err := r.Wait(); err != nil {
		log.Warn("Batch aborted", "error", err)
		return nil, err
	}

	for i := range results {
		if !started[i] {
			results[i] = Result{Index: i, Err: fmt.Errorf("item not started: %w", context.Cause(gate))}
		}
	}
	return finishBatch(results, o, log), nil
}

// finishBatch applies the failure mode and logs a summary.
func finishBatch(results []Result, o RunOptions, log *slog.Logger) []Result {
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	log.Info("Batch completed", "items", len(results), "succeeded", len(results)-failed, "failed", failed)

	if o.Failures != DropFailures || failed == 0 {
		return results
	}
	kept := make([]Result, 0, len(results)-failed)
	for _, r := range results {
		if r.Err == nil {
			kept = append(kept, r)
		}
	}
	return kept
}

type progressTracker struct {
	mu    sync.Mutex
	n     int
	total int
	fn    ProgressFunc
	log   *slog.Logger
}

func newProgressTracker(total int, fn ProgressFunc, log *slog.Logger) *progressTracker {
	return &progressTracker{total: total, fn: fn, log: log}
}

func (p *progressTracker) done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n++
	p.log.Debug("Processing items", "done", p.n, "total", p.total)
	if p.fn != nil {
		p.fn(p.n, p.total)
	}
}
