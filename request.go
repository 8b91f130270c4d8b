package sculptor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tyler-sommer/stick"
)

// RequestBuilder assembles one completion request per attempt.
type RequestBuilder struct {
	model     string
	compiled  *Compiled
	inputKeys []string
	env       *stick.Env
	log       *slog.Logger
}

// NewRequestBuilder returns a builder for the given compiled prompt. When
// inputKeys is empty the whole record is sent.
func NewRequestBuilder(model string, compiled *Compiled, inputKeys []string, log *slog.Logger) *RequestBuilder {
	if log == nil {
		log = slog.Default()
	}
	env := compiled.env
	if env == nil {
		env = stick.New(nil)
	}
	return &RequestBuilder{
		model:     model,
		compiled:  compiled,
		inputKeys: append([]string(nil), inputKeys...),
		env:       env,
		log:       log,
	}
}

// Build constructs the request for one attempt. Attempt 0 uses the base
// prompt; later attempts carry a note about the previous failure.
func (b *RequestBuilder) Build(record Record, state AttemptState) (*Request, error) {
	selected, err := b.selectInput(record)
	if err != nil {
		return nil, err
	}
	input, err := json.MarshalIndent(selected, "", "  ")
	if err != nil {
		return nil, &BuildError{Reason: "serialize input", Err: err}
	}

	user, err := b.renderUser(selected, string(input), state.Attempt)
	if err != nil {
		return nil, err
	}
	if state.Attempt > 0 {
		user += "\n\n" + correctiveNote(state.LastErr)
	}

	b.log.Debug("Built request",
		"model", b.model,
		"attempt", state.Attempt,
		"input_keys", len(selected),
		"user_length", len(user))

	return &Request{
		Model: b.model,
		Messages: []Message{
			NewSystemMessage(b.compiled.SystemPrompt),
			NewUserMessage(user),
		},
		ResponseFormat: b.compiled.Contract,
		Attempt:        state.Attempt,
	}, nil
}

func (b *RequestBuilder) selectInput(record Record) (Record, error) {
	if len(b.inputKeys) == 0 {
		return record, nil
	}
	out := make(Record, len(b.inputKeys))
	for _, k := range b.inputKeys {
		v, ok := record[k]
		if !ok {
			return nil, &BuildError{Key: k, Reason: "missing from record"}
		}
		out[k] = v
	}
	return out, nil
}

func (b *RequestBuilder) renderUser(selected Record, input string, attempt int) (string, error) {
	if b.compiled.Template == "" {
		return "Input data:\n" + input, nil
	}
	vars := make(map[string]stick.Value, len(selected)+3)
	for k, v := range selected {
		vars[k] = v
	}
	vars["input"] = input
	vars["record"] = map[string]any(selected)
	vars["attempt"] = attempt

	var out strings.Builder
	if err := b.env.Execute(b.compiled.Template, &out, vars); err != nil {
		return "", &BuildError{Reason: "render template", Err: err}
	}
	return out.String(), nil
}

func correctiveNote(lastErr error) string {
	reason := "it was not valid"
	if lastErr != nil {
		reason = lastErr.Error()
	}
	return fmt.Sprintf("Note: the previous response could not be used (%s). "+
		"Respond with one JSON object containing every required field with the declared types.", reason)
}
