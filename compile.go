package sculptor

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gowebpki/jcs"
	"github.com/kaptinlin/jsonschema"
	"github.com/tyler-sommer/stick"
	"google.golang.org/genai"
)

// DefaultSystemPrompt opens every system message unless overridden.
const DefaultSystemPrompt = "You are an AI extracting information into JSON format. " +
	"Read the input carefully and return only the requested fields."

// PromptConfig holds the caller-supplied prompt pieces.
type PromptConfig struct {
	SystemPrompt string // empty → DefaultSystemPrompt
	Instructions string
	Template     string // Twig template for the user message, empty → default layout
}

// Compiled is the output of Compile: everything derived from the schema and
// prompt configuration that stays fixed for the lifetime of a pipeline.
type Compiled struct {
	Contract     *Contract
	SystemPrompt string
	Template     string

	env *stick.Env // shared by every request built from this prompt
}

// Contract is the machine-checkable output descriptor sent with every
// request and used to validate coerced payloads.
type Contract struct {
	Name      string
	schema    Schema
	canonical []byte
	digest    string
	validator *jsonschema.Schema
}

// Compile turns a schema plus prompt configuration into a Compiled pipeline
// prompt. It has no side effects and identical inputs give identical output.
func Compile(s Schema, p PromptConfig) (*Compiled, error) {
	if s.Len() == 0 {
		return nil, &SchemaError{Reason: "no fields declared"}
	}
	contract, err := compileContract(s)
	if err != nil {
		return nil, err
	}
	env := stick.New(nil)
	if p.Template != "" {
		// stick does not return on an unterminated tag, so delimiters are
		// checked before the template reaches it.
		if err := checkTemplateDelimiters(p.Template); err != nil {
			return nil, &SchemaError{Reason: fmt.Sprintf("invalid template: %v", err)}
		}
		if err := env.Execute(p.Template, io.Discard, map[string]stick.Value{}); err != nil {
			return nil, &SchemaError{Reason: fmt.Sprintf("invalid template: %v", err)}
		}
	}
	return &Compiled{
		Contract:     contract,
		SystemPrompt: renderSystemPrompt(s, p),
		Template:     p.Template,
		env:          env,
	}, nil
}

var templateClosers = map[string]string{"{{": "}}", "{%": "%}", "{#": "#}"}

// checkTemplateDelimiters reports the first tag or quoted string inside a tag
// that is never closed.
func checkTemplateDelimiters(tpl string) error {
	for i := 0; i < len(tpl)-1; i++ {
		open := tpl[i : i+2]
		closer, ok := templateClosers[open]
		if !ok {
			continue
		}
		end, err := tagEnd(tpl, i+2, closer, open == "{#")
		if err != nil {
			return fmt.Errorf("%s at offset %d: %w", open, i, err)
		}
		i = end - 1
	}
	return nil
}

// tagEnd returns the offset just past closer, skipping quoted strings unless
// the tag is a comment.
func tagEnd(tpl string, from int, closer string, comment bool) (int, error) {
	for j := from; j < len(tpl); j++ {
		if strings.HasPrefix(tpl[j:], closer) {
			return j + len(closer), nil
		}
		if comment {
			continue
		}
		if q := tpl[j]; q == '"' || q == '\'' {
			k := j + 1
			for ; k < len(tpl) && tpl[k] != q; k++ {
				if tpl[k] == '\\' {
					k++
				}
			}
			if k >= len(tpl) {
				return 0, fmt.Errorf("unterminated string")
			}
			j = k
		}
	}
	return 0, fmt.Errorf("missing %s", closer)
}

func compileContract(s Schema) (*Contract, error) {
	doc := contractDocument(s)
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, &SchemaError{Reason: fmt.Sprintf("encode contract: %v", err)}
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, &SchemaError{Reason: fmt.Sprintf("canonicalize contract: %v", err)}
	}
	validator, err := jsonschema.NewCompiler().Compile(canonical)
	if err != nil {
		return nil, &SchemaError{Reason: fmt.Sprintf("compile contract: %v", err)}
	}
	sum := sha256.Sum256(canonical)
	return &Contract{
		Name:      "extraction",
		schema:    s,
		canonical: canonical,
		digest:    hex.EncodeToString(sum[:]),
		validator: validator,
	}, nil
}

func contractDocument(s Schema) map[string]any {
	props := make(map[string]any, s.Len())
	for _, f := range s.fields {
		props[f.Name] = fieldDocument(f)
	}
	doc := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if req := s.Required(); len(req) > 0 {
		doc["required"] = req
	}
	return doc
}

func fieldDocument(f FieldSpec) map[string]any {
	k, _ := lookupType(f.Type)
	d := map[string]any{"type": k.jsonType}
	if f.Description != "" {
		d["description"] = f.Description
	}
	switch f.Type {
	case TypeArray:
		if f.Items != "" {
			ik, _ := lookupType(f.Items)
			d["items"] = map[string]any{"type": ik.jsonType}
		}
	case TypeEnum:
		d["enum"] = f.Enum
	}
	return d
}

func renderSystemPrompt(s Schema, p PromptConfig) string {
	var sb strings.Builder
	system := p.SystemPrompt
	if system == "" {
		system = DefaultSystemPrompt
	}
	sb.WriteString(strings.TrimSpace(system))
	if instr := strings.TrimSpace(p.Instructions); instr != "" {
		sb.WriteString("\n\n")
		sb.WriteString(instr)
	}
	sb.WriteString("\n\nExtract the following fields and respond with a single JSON object:\n")
	for _, f := range s.fields {
		sb.WriteString("- ")
		sb.WriteString(f.Name)
		sb.WriteString(" (")
		sb.WriteString(describeType(f))
		if f.Required {
			sb.WriteString(", required")
		}
		sb.WriteString(")")
		if f.Description != "" {
			sb.WriteString(": ")
			sb.WriteString(f.Description)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func describeType(f FieldSpec) string {
	switch {
	case f.Type == TypeArray && f.Items != "":
		return "array of " + string(f.Items)
	case f.Type == TypeEnum:
		return "one of " + strings.Join(f.Enum, "|")
	}
	return string(f.Type)
}

// JSON returns the RFC 8785 canonical form of the contract.
func (c *Contract) JSON() json.RawMessage { return json.RawMessage(c.canonical) }

// Digest is the sha256 of the canonical contract, handy for logs and caches.
func (c *Contract) Digest() string { return c.digest }

// Schema returns the schema the contract was compiled from.
func (c *Contract) Schema() Schema { return c.schema }

// Validate checks an encoded payload against the contract.
func (c *Contract) Validate(data []byte) error {
	result := c.validator.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}
	return &ValidationError{Reason: fmt.Sprintf("does not match contract: %v", result.Errors)}
}

// GenAISchema converts the contract into the response schema understood by
// Gemini models.
func (c *Contract) GenAISchema() *genai.Schema {
	out := &genai.Schema{
		Type:             genai.TypeObject,
		Properties:       make(map[string]*genai.Schema, c.schema.Len()),
		Required:         c.schema.Required(),
		PropertyOrdering: make([]string, 0, c.schema.Len()),
	}
	for _, f := range c.schema.fields {
		k, _ := lookupType(f.Type)
		prop := &genai.Schema{Type: k.genaiType, Description: f.Description}
		switch f.Type {
		case TypeArray:
			itemType := genai.TypeString
			if f.Items != "" {
				ik, _ := lookupType(f.Items)
				itemType = ik.genaiType
			}
			prop.Items = &genai.Schema{Type: itemType}
		case TypeEnum:
			prop.Format = "enum"
			prop.Enum = append([]string(nil), f.Enum...)
		}
		out.Properties[f.Name] = prop
		out.PropertyOrdering = append(out.PropertyOrdering, f.Name)
	}
	return out
}
