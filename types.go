package sculptor

import (
	"log/slog"
	"time"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// Options configures a pipeline at construction time. They are fixed for the
// lifetime of a Sculptor or AsyncSculptor.
type Options struct {
	Model        string
	SystemPrompt string   // "" → DefaultSystemPrompt
	Instructions string   // free text appended to the system prompt
	Template     string   // Twig template for the user message
	InputKeys    []string // nil → whole record
	Logger       *slog.Logger
}

// Functional option constructors
func WithModel(name string) func(*Options) {
	return func(o *Options) { o.Model = name }
}

func WithSystemPrompt(prompt string) func(*Options) {
	return func(o *Options) { o.SystemPrompt = prompt }
}

func WithInstructions(text string) func(*Options) {
	return func(o *Options) { o.Instructions = text }
}

// WithTemplate sets the Twig template used for the user message. The template
// sees every selected record key, "record" (the selection as a map), "input"
// (the selection serialized as JSON) and "attempt".
func WithTemplate(tpl string) func(*Options) {
	return func(o *Options) { o.Template = tpl }
}

// WithInputKeys restricts the text sent to the model to the given keys.
func WithInputKeys(keys ...string) func(*Options) {
	return func(o *Options) { o.InputKeys = keys }
}

func WithLogger(log *slog.Logger) func(*Options) {
	return func(o *Options) { o.Logger = log }
}

// FailureMode selects what a batch does with items that exhausted their
// attempts.
type FailureMode int

const (
	// IncludeFailures keeps a failed Result (Err set) at the item's position.
	IncludeFailures FailureMode = iota
	// DropFailures removes failed items from the returned slice.
	DropFailures
	// AbortOnFailure returns the first failure as the batch error. Items not
	// yet started are skipped; items in flight run to completion.
	AbortOnFailure
)

func (m FailureMode) String() string {
	switch m {
	case IncludeFailures:
		return "include"
	case DropFailures:
		return "drop"
	case AbortOnFailure:
		return "abort"
	}
	return "unknown"
}

// ProgressFunc is called once per finished item with the number of finished
// items so far. Calls are serialized.
type ProgressFunc func(done, total int)

// RunOptions configures one Sculpt or SculptBatch call.
type RunOptions struct {
	MergeInput bool          // default true
	Retries    int           // total attempts per item, default 3
	Backoff    time.Duration // fixed wait between attempts, default 1s
	Workers    int           // thread-parallel worker count, default 1
	Progress   ProgressFunc
	Failures   FailureMode // default IncludeFailures
	Runner     Runner      // nil → errgroup-backed runner
}

func newRunOptions(optFns []func(*RunOptions)) RunOptions {
	o := RunOptions{
		MergeInput: true,
		Retries:    DefaultRetries,
		Backoff:    DefaultBackoff,
		Workers:    1,
	}
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}

func WithMergeInput(merge bool) func(*RunOptions) {
	return func(o *RunOptions) { o.MergeInput = merge }
}

// WithRetries sets the total number of attempts per item.
func WithRetries(n int) func(*RunOptions) {
	return func(o *RunOptions) { o.Retries = n }
}

func WithBackoff(d time.Duration) func(*RunOptions) {
	return func(o *RunOptions) { o.Backoff = d }
}

// WithWorkers sets the worker count of Sculptor.SculptBatch. One worker
// processes items strictly in input order.
func WithWorkers(n int) func(*RunOptions) {
	return func(o *RunOptions) { o.Workers = n }
}

// WithProgress registers a progress callback. For AsyncSculptor it also
// switches SculptBatch to completion-order results.
func WithProgress(fn ProgressFunc) func(*RunOptions) {
	return func(o *RunOptions) { o.Progress = fn }
}

func WithFailureMode(m FailureMode) func(*RunOptions) {
	return func(o *RunOptions) { o.Failures = m }
}

func WithRunner(r Runner) func(*RunOptions) {
	return func(o *RunOptions) { o.Runner = r }
}
