package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRequiresInput(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-config", "unused.yaml"}, &stdout, &stderr)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "-in is required")
}

func TestRunDryRun(t *testing.T) {
	t.Setenv("SCULPTOR_TEST_KEY", "sk-test")
	cfg := writeFile(t, "sculptor.yaml", sampleConfig+"api_key_env: SCULPTOR_TEST_KEY\n")
	in := writeFile(t, "posts.csv", "id,text\n1,hello\n2,how are you?\n")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-config", cfg, "-in", in, "-dry-run", "-mode", "sync", "-workers", "2"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	assert.Contains(t, stdout.String(), "Sculptor Execution Plan")
	assert.Contains(t, stdout.String(), "records=2 requests=2")
}

func TestRunMissingAPIKey(t *testing.T) {
	t.Setenv("SCULPTOR_TEST_KEY", "")
	cfg := writeFile(t, "sculptor.yaml", sampleConfig+"api_key_env: SCULPTOR_TEST_KEY\n")
	in := writeFile(t, "posts.csv", "id,text\n1,hello\n")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-config", cfg, "-in", in}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "SCULPTOR_TEST_KEY")
}

func TestRunDryRunWithoutAPIKey(t *testing.T) {
	t.Setenv("SCULPTOR_TEST_KEY", "")
	cfg := writeFile(t, "sculptor.yaml", sampleConfig+"api_key_env: SCULPTOR_TEST_KEY\n")
	in := writeFile(t, "posts.csv", "id,text\n1,hello\n")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-config", cfg, "-in", in, "-dry-run"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "Sculptor Execution Plan")
}

func TestRunDryRunJSON(t *testing.T) {
	t.Setenv("SCULPTOR_TEST_KEY", "sk-test")
	cfg := writeFile(t, "sculptor.yaml", sampleConfig+"api_key_env: SCULPTOR_TEST_KEY\n")
	in := writeFile(t, "posts.json", `[{"id": "1", "text": "hello"}, {"id": "2"}]`)

	var stdout, stderr bytes.Buffer
	code := run([]string{"-config", cfg, "-in", in, "-dry-run", "-plan-format", "json"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var stats map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &stats))
	assert.Equal(t, float64(2), stats["records"])
	assert.Equal(t, float64(1), stats["requests"])
}
