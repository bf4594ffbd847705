package oracle

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
)

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// StripWrapping removes markdown code fences the transport sometimes wraps
// around JSON bodies.
func StripWrapping(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

// DecodeArray parses a response expected to be a JSON array of objects.
// Responses occasionally arrive truncated mid-element; rather than discard
// the whole batch, every syntactically complete leading element is salvaged
// unmodified and the broken tail is dropped. Repair of non-truncation
// malformations (single quotes, trailing commas) is the last resort.
func DecodeArray[T any](data []byte) ([]T, error) {
	text := StripWrapping(string(data))

	var out []T
	if err := json.Unmarshal([]byte(text), &out); err == nil {
		return out, nil
	}

	if elems := completeElements(text); len(elems) > 0 {
		for _, raw := range elems {
			var v T
			if err := json.Unmarshal([]byte(raw), &v); err == nil {
				out = append(out, v)
			}
		}
		if len(out) > 0 {
			return out, nil
		}
	}

	if repaired, err := jsonrepair.RepairJSON(text); err == nil {
		if err := json.Unmarshal([]byte(repaired), &out); err == nil {
			return out, nil
		}
	}
	return nil, fmt.Errorf("oracle response is not a JSON array: %s", truncate(text, 200))
}

// DecodeObject parses a response expected to be a single JSON object.
func DecodeObject[T any](data []byte) (T, error) {
	text := StripWrapping(string(data))

	var out T
	if err := json.Unmarshal([]byte(text), &out); err == nil {
		return out, nil
	}
	if repaired, err := jsonrepair.RepairJSON(text); err == nil {
		if err := json.Unmarshal([]byte(repaired), &out); err == nil {
			return out, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("oracle response is not a JSON object: %s", truncate(text, 200))
}

// completeElements scans a (possibly truncated) JSON array for top-level
// objects that are individually valid JSON. String state and escapes are
// tracked so braces inside string values don't confuse the depth count.
func completeElements(text string) []string {
	if !strings.HasPrefix(strings.TrimSpace(text), "[") {
		return nil
	}

	var elems []string
	depth := 0
	inString := false
	escaped := false
	start := -1

	for i := 0; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			if depth == 0 {
				start = i
			}
			depth++
		case ch == '}':
			depth--
			if depth == 0 && start >= 0 {
				candidate := text[start : i+1]
				if json.Valid([]byte(candidate)) {
					elems = append(elems, candidate)
				}
				start = -1
			}
		}
	}
	return elems
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
