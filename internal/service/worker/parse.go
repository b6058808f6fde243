package worker

import (
	"encoding/json"
	"fmt"
	"strings"
)

const noOutputMessage = "Script completed with no output."

// parseOutput extracts the result object from a worker's stdout. Workers
// log freely, so only the last line shaped like a JSON object counts. A
// trailing pretty-printed object is accepted when no such line exists.
func parseOutput(operation, stdout string) (Output, error) {
	lines := strings.Split(strings.TrimSpace(stdout), "\n")

	candidate := ""
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "{") && strings.HasSuffix(line, "}") {
			candidate = line
			break
		}
	}
	if candidate == "" {
		candidate = trailingBlock(lines)
	}

	if candidate == "" {
		return Output{
			"status":  "success",
			"message": noOutputMessage,
			"details": stdout,
		}, nil
	}

	var out Output
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		return nil, &Error{
			Operation: operation,
			Kind:      ErrParse,
			Message:   fmt.Sprintf("Failed to parse output from %s.", operation),
			Details:   stdout,
			Err:       err,
		}
	}
	return out, nil
}

// trailingBlock returns the multi-line object that ends stdout, bounded by
// a line holding only "{" at column zero and a final line holding only "}".
func trailingBlock(lines []string) string {
	if len(lines) < 2 || strings.TrimSpace(lines[len(lines)-1]) != "}" {
		return ""
	}
	for i := len(lines) - 2; i >= 0; i-- {
		if strings.TrimRight(lines[i], " \t\r") == "{" {
			return strings.Join(lines[i:], "\n")
		}
	}
	return ""
}

// IsSoftSuccess reports whether out is the placeholder produced for a
// worker that exited cleanly without printing a result object.
func IsSoftSuccess(out Output) bool {
	return out.Status() == "success" && out.String("message") == noOutputMessage
}
