// Package sculptor turns unstructured text records into structured records
// that conform to a caller-supplied field schema, by orchestrating calls to
// an LLM completion service.
//
// # Problem Statement
//
// Free-text records (posts, comments, tickets, CSV rows with a long text
// column) are easy to collect and hard to analyse. An LLM can read them, but
// its output has to be forced into a predictable shape before anything
// downstream can rely on it. The sculptor package provides:
//
//   - Schema-driven prompts: declare fields once, get a system prompt and a
//     JSON-schema contract sent with every request
//   - Coercion: numeric strings, "true"/"false", comma lists and JSON
//     literals are converted to the declared types
//   - Bounded retries: parse, validation and transport failures share one
//     attempt budget, and retries tell the model what went wrong
//   - Batches: a bounded worker pool (input order) or one goroutine per item
//     (completion order when progress is reported)
//
// # Basic Usage
//
//	schema, err := sculptor.NewSchema(
//	    sculptor.FieldSpec{Name: "category", Type: sculptor.TypeEnum, Enum: []string{"greeting", "question", "other"}, Required: true},
//	    sculptor.FieldSpec{Name: "is_spam", Type: sculptor.TypeBoolean, Description: "true if the text is spam"},
//	)
//
//	transport := sculptor.NewOpenAITransport(sculptor.OpenAIConfig{APIKey: os.Getenv("OPENAI_API_KEY")})
//	s, err := sculptor.New(transport, schema,
//	    sculptor.WithModel("gpt-4o-mini"),
//	    sculptor.WithInputKeys("text"),
//	)
//
//	out, err := s.Sculpt(ctx, sculptor.Record{"id": "1", "text": "hello"})
//	// out: {"id": "1", "text": "hello", "category": "greeting", "is_spam": false}
//
// # Batches
//
// Sculptor.SculptBatch runs a fixed number of workers and returns results in
// input order:
//
//	results, err := s.SculptBatch(ctx, records,
//	    sculptor.WithWorkers(4),
//	    sculptor.WithRetries(3),
//	)
//
// AsyncSculptor.SculptBatch starts one goroutine per record. When a progress
// callback is set results arrive in completion order, otherwise in input
// order. Result.Index always names the input position.
//
//	a, _ := sculptor.NewAsync(transport, schema)
//	results, err := a.SculptBatch(ctx, records,
//	    sculptor.WithProgress(func(done, total int) { fmt.Printf("%d/%d\n", done, total) }),
//	)
//
// # Failures
//
// Every batch entry is a Result holding either a Record or an error. The
// failure mode decides what happens to failed items:
//
//   - IncludeFailures (default): failed items stay in the slice with Err set
//   - DropFailures: failed items are removed
//   - AbortOnFailure: the first failure is returned as the batch error
//
// Item errors are *RetriesExhaustedError (wrapping the last attempt's error)
// or *BuildError when the request could not be built at all, for example
// because a configured input key is missing. Use errors.Is with ErrParse,
// ErrValidation, ErrBuild and ErrRetriesExhausted to classify them.
//
// # Transports
//
// Any type implementing Transport can be used. The package ships an
// OpenAI-compatible chat completions transport (json_schema response
// format), a Google GenAI transport (Gemini response schema) and
// ScriptedTransport for tests.
//
// # Templates
//
// WithTemplate accepts a Twig template for the user message. It sees every
// selected record key, record (the selection as a map), input (the
// selection as indented JSON) and attempt:
//
//	sculptor.WithTemplate("Post title: {{ title }}\n\n{{ input }}")
package sculptor
