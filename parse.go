package sculptor

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// Record is one input or output mapping. The core never mutates records it
// receives; results are always fresh maps.
type Record map[string]any

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ResponseParser extracts, coerces and validates the structured payload of a
// completion.
type ResponseParser struct {
	contract *Contract
	log      *slog.Logger
}

// NewResponseParser returns a parser bound to the contract.
func NewResponseParser(contract *Contract, log *slog.Logger) *ResponseParser {
	if log == nil {
		log = slog.Default()
	}
	return &ResponseParser{contract: contract, log: log}
}

// Parse turns a raw completion into an extraction result. With mergeInput the
// result starts from the original record and extracted fields win on key
// collisions; otherwise only extracted fields are returned.
func (p *ResponseParser) Parse(c *Completion, original Record, mergeInput bool) (Record, error) {
	payload, err := p.extract(c)
	if err != nil {
		p.log.Debug("Structured content extraction failed", "error", err)
		return nil, err
	}

	extracted := make(Record, p.contract.schema.Len())
	for _, f := range p.contract.schema.fields {
		raw, ok := payload[f.Name]
		if !ok || raw == nil {
			if f.Required {
				return nil, &ValidationError{Field: f.Name, Reason: "required field missing"}
			}
			continue
		}
		v, err := Coerce(raw, f)
		if err != nil {
			return nil, &ValidationError{Field: f.Name, Reason: err.Error()}
		}
		extracted[f.Name] = v
	}

	encoded, err := json.Marshal(extracted)
	if err != nil {
		return nil, &ValidationError{Reason: "encode coerced payload: " + err.Error()}
	}
	if err := p.contract.Validate(encoded); err != nil {
		return nil, err
	}
	p.log.Debug("Parsed response", "fields", len(extracted), "dropped_keys", len(payload)-len(extracted))

	if !mergeInput {
		return extracted, nil
	}
	out := original.Clone()
	for k, v := range extracted {
		out[k] = v
	}
	return out, nil
}

func (p *ResponseParser) extract(c *Completion) (map[string]any, error) {
	if c == nil {
		return nil, &ParseError{Reason: "empty completion"}
	}
	if c.Structured != nil {
		return c.Structured, nil
	}
	text := SanitizeJSONResponse([]byte(c.Text))
	if len(text) == 0 {
		return nil, &ParseError{Reason: "no content in completion"}
	}

	v, err := decodeJSON(text)
	if err != nil {
		// Models sometimes wrap the object in prose.
		start := strings.IndexByte(string(text), '{')
		end := strings.LastIndexByte(string(text), '}')
		if start < 0 || end <= start {
			return nil, &ParseError{Reason: "no JSON object found", Err: err}
		}
		v, err = decodeJSON(text[start : end+1])
		if err != nil {
			return nil, &ParseError{Reason: "invalid JSON", Err: err}
		}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &ParseError{Reason: "structured content is not a JSON object"}
	}
	return obj, nil
}

// SanitizeJSONResponse removes garbage characters often produced by LLMs.
func SanitizeJSONResponse(b []byte) []byte {
	s := strings.TrimSpace(string(b))
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return []byte(strings.TrimSpace(s))
}
