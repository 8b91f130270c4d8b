package sculptor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Coerced values always take one of these Go types: string, int64, float64,
// bool, []any, map[string]any. Coercing a value that already has the target
// type returns it unchanged.

// Coerce converts v to the type declared by f.
func Coerce(v any, f FieldSpec) (any, error) {
	k, ok := lookupType(f.Type)
	if !ok {
		return nil, fmt.Errorf("unrecognized type %q", f.Type)
	}
	return k.coerce(v, f)
}

func coerceString(v any, _ FieldSpec) (any, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case bool:
		return strconv.FormatBool(t), nil
	}
	return nil, fmt.Errorf("cannot convert %T to string", v)
}

func coerceInteger(v any, _ FieldSpec) (any, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case float64:
		return integralFloat(t)
	case float32:
		return integralFloat(float64(t))
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", t)
		}
		return integralFloat(f)
	case string:
		s := strings.TrimSpace(t)
		i, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return i, nil
		}
		if errors.Is(err, strconv.ErrRange) {
			return nil, fmt.Errorf("%q overflows int64", t)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", t)
		}
		return integralFloat(f)
	}
	return nil, fmt.Errorf("cannot convert %T to integer", v)
}

func integralFloat(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil, fmt.Errorf("%v is not an integer", f)
	}
	// float64(math.MaxInt64) rounds up to 2^63, which does not fit.
	if f >= 1<<63 || f < -(1<<63) {
		return nil, fmt.Errorf("%v overflows int64", f)
	}
	return int64(f), nil
}

func coerceNumber(v any, _ FieldSpec) (any, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", t)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", t)
		}
		return f, nil
	}
	return nil, fmt.Errorf("cannot convert %T to number", v)
}

func coerceBoolean(v any, _ FieldSpec) (any, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		s := strings.TrimSpace(t)
		switch {
		case strings.EqualFold(s, "true"):
			return true, nil
		case strings.EqualFold(s, "false"):
			return false, nil
		}
		return nil, fmt.Errorf("%q is not a boolean", t)
	}
	return nil, fmt.Errorf("cannot convert %T to boolean", v)
}

func coerceArray(v any, f FieldSpec) (any, error) {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case []string:
		items = make([]any, len(t))
		for i, s := range t {
			items[i] = s
		}
	case string:
		s := strings.TrimSpace(t)
		switch {
		case s == "":
			items = []any{}
		case strings.HasPrefix(s, "["):
			decoded, err := decodeJSON([]byte(s))
			if err != nil {
				return nil, fmt.Errorf("invalid array literal: %w", err)
			}
			arr, ok := decoded.([]any)
			if !ok {
				return nil, fmt.Errorf("invalid array literal %q", t)
			}
			items = arr
		default:
			items = []any{}
			for _, part := range strings.Split(s, ",") {
				if part = strings.TrimSpace(part); part != "" {
					items = append(items, part)
				}
			}
		}
	default:
		return nil, fmt.Errorf("cannot convert %T to array", v)
	}

	if f.Items == "" {
		return normalizeNumbers(items), nil
	}
	elem := FieldSpec{Name: f.Name, Type: f.Items}
	out := items
	for i, item := range items {
		c, err := Coerce(item, elem)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if !sameValue(c, item) {
			if sameSlice(out, items) {
				out = append([]any(nil), items...)
			}
			out[i] = c
		}
	}
	return out, nil
}

func coerceObject(v any, _ FieldSpec) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		return normalizeNumbers(t), nil
	case string:
		decoded, err := decodeJSON([]byte(strings.TrimSpace(t)))
		if err != nil {
			return nil, fmt.Errorf("invalid object literal: %w", err)
		}
		obj, ok := decoded.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("invalid object literal %q", t)
		}
		return normalizeNumbers(obj), nil
	}
	return nil, fmt.Errorf("cannot convert %T to object", v)
}

func coerceEnum(v any, f FieldSpec) (any, error) {
	raw, err := coerceString(v, f)
	if err != nil {
		return nil, err
	}
	s := strings.TrimSpace(raw.(string))
	for _, allowed := range f.Enum {
		if s == allowed {
			return allowed, nil
		}
	}
	for _, allowed := range f.Enum {
		if strings.EqualFold(s, allowed) {
			return allowed, nil
		}
	}
	return nil, fmt.Errorf("%q is not one of %v", s, f.Enum)
}

// decodeJSON decodes a single JSON value keeping numbers as json.Number.
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return v, nil
}

// normalizeNumbers replaces json.Number values nested in maps and slices
// with int64 or float64. Containers without numbers are returned as is.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case []any:
		var out []any
		for i, item := range t {
			n := normalizeNumbers(item)
			if out == nil && !sameValue(n, item) {
				out = append([]any(nil), t...)
			}
			if out != nil {
				out[i] = n
			}
		}
		if out == nil {
			return t
		}
		return out
	case map[string]any:
		var out map[string]any
		for k, item := range t {
			n := normalizeNumbers(item)
			if out == nil && !sameValue(n, item) {
				out = make(map[string]any, len(t))
				for k2, v2 := range t {
					out[k2] = v2
				}
			}
			if out != nil {
				out[k] = n
			}
		}
		if out == nil {
			return t
		}
		return out
	}
	return v
}

// sameValue reports whether a and b are the same scalar, or the very same
// container. Containers are compared by identity, not contents.
func sameValue(a, b any) bool {
	switch av := a.(type) {
	case []any:
		bv, ok := b.([]any)
		return ok && sameSlice(av, bv)
	case map[string]any:
		bv, ok := b.(map[string]any)
		return ok && reflect.ValueOf(av).Pointer() == reflect.ValueOf(bv).Pointer()
	case json.Number:
		return false
	}
	switch b.(type) {
	case []any, map[string]any:
		return false
	}
	return a == b
}

func sameSlice(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	return &a[0] == &b[0]
}
