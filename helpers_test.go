package sculptor

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustSchema(t *testing.T, fields ...FieldSpec) Schema {
	t.Helper()
	s, err := NewSchema(fields...)
	require.NoError(t, err)
	return s
}

func categorySchema(t *testing.T) Schema {
	return mustSchema(t, FieldSpec{
		Name:     "category",
		Type:     TypeEnum,
		Enum:     []string{"greeting", "question", "other"},
		Required: true,
	})
}

// inputOf decodes the record a default-layout request was built from.
func inputOf(t *testing.T, req *Request) Record {
	t.Helper()
	require.Len(t, req.Messages, 2)
	content := strings.TrimPrefix(req.Messages[1].Content, "Input data:\n")
	if i := strings.Index(content, "\n\nNote:"); i >= 0 {
		content = content[:i]
	}
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(content), &rec))
	return rec
}

func jsonCompletion(v any) *Completion {
	b, _ := json.Marshal(v)
	return &Completion{Text: string(b)}
}

func greetingTransport() *ScriptedTransport {
	return NewScriptedTransport(func(context.Context, *Request, int) (*Completion, error) {
		return &Completion{Text: `{"category":"greeting"}`}, nil
	})
}

func fastRun(optFns ...func(*RunOptions)) []func(*RunOptions) {
	return append([]func(*RunOptions){WithBackoff(0)}, optFns...)
}
