package main

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	sculptor "github.com/vivaneiona/genkit-sculptor"
)

type recordFormat string

const (
	formatCSV    recordFormat = "csv"
	formatJSON   recordFormat = "json"
	formatNDJSON recordFormat = "ndjson"
)

// LoadRecords reads input records from a CSV file with a header row, a JSON
// array (or single object) or newline-delimited JSON.
func LoadRecords(path string) ([]sculptor.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	format, err := detectFormat(path, data)
	if err != nil {
		return nil, err
	}
	switch format {
	case formatCSV:
		return decodeCSV(data)
	case formatNDJSON:
		return decodeNDJSON(data)
	default:
		return decodeJSON(data)
	}
}

// detectFormat sniffs the content first and falls back to the extension.
func detectFormat(path string, data []byte) (recordFormat, error) {
	mtype := mimetype.Detect(data)
	switch {
	case mtype.Is("text/csv"):
		return formatCSV, nil
	case mtype.Is("application/x-ndjson"):
		return formatNDJSON, nil
	case mtype.Is("application/json"):
		return formatJSON, nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return formatCSV, nil
	case ".jsonl", ".ndjson":
		return formatNDJSON, nil
	case ".json":
		return formatJSON, nil
	}
	return "", fmt.Errorf("records: unsupported input format %s", mtype.String())
}

func decodeCSV(data []byte) ([]sculptor.Record, error) {
	r := csv.NewReader(bytes.NewReader(data))
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("records: csv header: %w", err)
	}
	var out []sculptor.Record
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("records: csv line %d: %w", line, err)
		}
		rec := make(sculptor.Record, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func decodeJSON(data []byte) ([]sculptor.Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var rec sculptor.Record
		if err := json.Unmarshal(trimmed, &rec); err != nil {
			return nil, fmt.Errorf("records: json: %w", err)
		}
		return []sculptor.Record{rec}, nil
	}
	var out []sculptor.Record
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, fmt.Errorf("records: json: %w", err)
	}
	return out, nil
}

func decodeNDJSON(data []byte) ([]sculptor.Record, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	var out []sculptor.Record
	line := 0
	for scanner.Scan() {
		line++
		b := bytes.TrimSpace(scanner.Bytes())
		if len(b) == 0 {
			continue
		}
		var rec sculptor.Record
		if err := json.Unmarshal(b, &rec); err != nil {
			return nil, fmt.Errorf("records: ndjson line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("records: read ndjson: %w", err)
	}
	return out, nil
}

// writeResults writes one JSON line per result. Failures become
// {"index": n, "error": "..."} lines.
func writeResults(w io.Writer, results []sculptor.Result) error {
	enc := json.NewEncoder(w)
	for _, res := range results {
		var v any = res.Record
		if res.Err != nil {
			v = map[string]any{"index": res.Index, "error": res.Err.Error()}
		}
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("write result %d: %w", res.Index, err)
		}
	}
	return nil
}
