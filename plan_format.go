package sculptor

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// FormatType selects how ExecutionStats are rendered.
type FormatType string

const (
	FormatText FormatType = "text"
	FormatJSON FormatType = "json"
)

// Format renders the stats in the requested format.
func (s *ExecutionStats) Format(format FormatType) (string, error) {
	switch format {
	case FormatText, "":
		return s.formatAsText(), nil
	case FormatJSON:
		return s.formatAsJSON()
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// String renders the stats as a text tree.
func (s *ExecutionStats) String() string { return s.formatAsText() }

// formatAsText formats the stats as an ASCII tree.
func (s *ExecutionStats) formatAsText() string {
	var sb strings.Builder
	sb.WriteString("Sculptor Execution Plan (estimated)\n")
	fmt.Fprintf(&sb, "├─ model=%s records=%d requests=%d\n", s.Model, s.Records, s.Requests)
	fmt.Fprintf(&sb, "├─ tokens(in=%d,out=%d) max_attempts=%d\n", s.TotalInputTokens, s.TotalOutputTokens, s.MaxAttempts)
	if s.EstCost != nil {
		fmt.Fprintf(&sb, "├─ cost=$%.6f (worst case $%.6f)\n", *s.EstCost, *s.EstCost*float64(s.MaxAttempts))
	}
	if len(s.BuildFailures) > 0 {
		idx := make([]int, 0, len(s.BuildFailures))
		for i := range s.BuildFailures {
			idx = append(idx, i)
		}
		sort.Ints(idx)
		fmt.Fprintf(&sb, "├─ build failures=%d\n", len(idx))
		for n, i := range idx {
			connector := "├─ "
			if n == len(idx)-1 {
				connector = "└─ "
			}
			fmt.Fprintf(&sb, "│  %s[%d] %s\n", connector, i, s.BuildFailures[i])
		}
	}
	fmt.Fprintf(&sb, "└─ contract=%s\n", s.ContractDigest)
	return sb.String()
}

// formatAsJSON formats the stats as indented JSON.
func (s *ExecutionStats) formatAsJSON() (string, error) {
	bytes, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}
