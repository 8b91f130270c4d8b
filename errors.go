package sculptor

import (
	"errors"
	"fmt"
)

// Sentinels matched with errors.Is against the typed errors below.
var (
	ErrSchema           = errors.New("invalid schema")
	ErrBuild            = errors.New("request build failed")
	ErrParse            = errors.New("malformed structured output")
	ErrValidation       = errors.New("structured output failed validation")
	ErrRetriesExhausted = errors.New("retries exhausted")
	ErrNoTransport      = errors.New("transport not configured")
)

// SchemaError reports a malformed schema. It is fatal at construction time.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema: %s", e.Reason)
	}
	return fmt.Sprintf("schema: field %q: %s", e.Field, e.Reason)
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// BuildError reports that a request could not be constructed for a record.
// It is never retried.
type BuildError struct {
	Key    string
	Reason string
	Err    error
}

func (e *BuildError) Error() string {
	msg := "build request: " + e.Reason
	if e.Key != "" {
		msg = fmt.Sprintf("build request: input key %q: %s", e.Key, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BuildError) Is(target error) bool { return target == ErrBuild }
func (e *BuildError) Unwrap() error        { return e.Err }

// ParseError reports missing or malformed structured content in a completion.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse response: %s: %v", e.Reason, e.Err)
	}
	return "parse response: " + e.Reason
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }
func (e *ParseError) Unwrap() error        { return e.Err }

// ValidationError reports a field that is missing or cannot be coerced to its
// declared type.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validate response: " + e.Reason
	}
	return fmt.Sprintf("validate response: field %q: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// RetriesExhaustedError is the only error an item-level caller sees once the
// attempt budget is spent. Last is the error of the final attempt.
type RetriesExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("llm call failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Is(target error) bool { return target == ErrRetriesExhausted }
func (e *RetriesExhaustedError) Unwrap() error        { return e.Last }
