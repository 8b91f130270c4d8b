package sculptor

import (
	"fmt"
	"sort"
	"strings"

	"google.golang.org/genai"
)

// FieldType is the type tag of a schema field.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInteger FieldType = "integer"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeArray   FieldType = "array"
	TypeObject  FieldType = "object"
	TypeEnum    FieldType = "enum"
)

// fieldKind describes how one type tag is rendered into a contract and how
// raw values are coerced to it.
type fieldKind struct {
	jsonType  string
	genaiType genai.Type
	coerce    func(v any, f FieldSpec) (any, error)
}

// fieldTypes is the lookup table for every supported tag. Adding a type means
// adding an entry here. It is filled in init because array coercion looks
// element types up in the table.
var fieldTypes map[FieldType]fieldKind

func init() {
	fieldTypes = map[FieldType]fieldKind{
		TypeString:  {jsonType: "string", genaiType: genai.TypeString, coerce: coerceString},
		TypeInteger: {jsonType: "integer", genaiType: genai.TypeInteger, coerce: coerceInteger},
		TypeNumber:  {jsonType: "number", genaiType: genai.TypeNumber, coerce: coerceNumber},
		TypeBoolean: {jsonType: "boolean", genaiType: genai.TypeBoolean, coerce: coerceBoolean},
		TypeArray:   {jsonType: "array", genaiType: genai.TypeArray, coerce: coerceArray},
		TypeObject:  {jsonType: "object", genaiType: genai.TypeObject, coerce: coerceObject},
		TypeEnum:    {jsonType: "string", genaiType: genai.TypeString, coerce: coerceEnum},
	}
}

func lookupType(t FieldType) (fieldKind, bool) {
	k, ok := fieldTypes[FieldType(strings.ToLower(string(t)))]
	return k, ok
}

// FieldSpec declares one field every extraction must produce.
type FieldSpec struct {
	Name        string    `json:"name" yaml:"name"`
	Type        FieldType `json:"type" yaml:"type"`
	Description string    `json:"description,omitempty" yaml:"description"`
	Required    bool      `json:"required,omitempty" yaml:"required"`
	Items       FieldType `json:"items,omitempty" yaml:"items"` // array element type, optional
	Enum        []string  `json:"enum,omitempty" yaml:"enum"`   // allowed values for enum fields
}

// Schema is an ordered, immutable set of fields.
type Schema struct {
	fields []FieldSpec
	index  map[string]int
}

// NewSchema validates fields and returns them as a Schema in the given order.
func NewSchema(fields ...FieldSpec) (Schema, error) {
	if len(fields) == 0 {
		return Schema{}, &SchemaError{Reason: "no fields declared"}
	}
	s := Schema{
		fields: make([]FieldSpec, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		f.Name = strings.TrimSpace(f.Name)
		if f.Name == "" {
			return Schema{}, &SchemaError{Reason: "field name is empty"}
		}
		if _, dup := s.index[f.Name]; dup {
			return Schema{}, &SchemaError{Field: f.Name, Reason: "duplicate field"}
		}
		if f.Type == "" {
			f.Type = TypeString
		}
		f.Type = FieldType(strings.ToLower(string(f.Type)))
		if _, ok := lookupType(f.Type); !ok {
			return Schema{}, &SchemaError{Field: f.Name, Reason: fmt.Sprintf("unrecognized type %q", f.Type)}
		}
		if f.Items != "" {
			f.Items = FieldType(strings.ToLower(string(f.Items)))
			if f.Type != TypeArray {
				return Schema{}, &SchemaError{Field: f.Name, Reason: "items is only valid for array fields"}
			}
			if _, ok := lookupType(f.Items); !ok || f.Items == TypeEnum {
				return Schema{}, &SchemaError{Field: f.Name, Reason: fmt.Sprintf("unrecognized item type %q", f.Items)}
			}
		}
		if f.Type == TypeEnum && len(f.Enum) == 0 {
			return Schema{}, &SchemaError{Field: f.Name, Reason: "enum field declares no values"}
		}
		f.Enum = append([]string(nil), f.Enum...)
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s, nil
}

// SchemaFromMap builds a Schema from a name-keyed mapping. Map order is not
// stable in Go, so fields are ordered by name.
func SchemaFromMap(m map[string]FieldSpec) (Schema, error) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	fields := make([]FieldSpec, 0, len(names))
	for _, name := range names {
		f := m[name]
		f.Name = name
		fields = append(fields, f)
	}
	return NewSchema(fields...)
}

// Fields returns a copy of the fields in declaration order.
func (s Schema) Fields() []FieldSpec {
	out := make([]FieldSpec, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field looks up a field by name.
func (s Schema) Field(name string) (FieldSpec, bool) {
	i, ok := s.index[name]
	if !ok {
		return FieldSpec{}, false
	}
	return s.fields[i], true
}

// Len reports the number of fields.
func (s Schema) Len() int { return len(s.fields) }

// Required returns the names of required fields in declaration order.
func (s Schema) Required() []string {
	var out []string
	for _, f := range s.fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}
