// Package json provides JSON extraction utilities for parsing LLM output.
//
// Models tend to wrap JSON in markdown fences or follow it with commentary.
// This package recovers the leading JSON value from such text.
package json

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotObject is returned when the decoded value is valid JSON but not an object.
var ErrNotObject = errors.New("JSON value is not an object")

// DecodeObject decodes the JSON object at the start of text.
//
// Markdown code fences are stripped first. Anything after the first
// complete JSON value is ignored. The returned message is compacted.
func DecodeObject(text string) (json.RawMessage, error) {
	text = stripMarkdownCodeBlocks(text)
	if text == "" {
		return nil, fmt.Errorf("empty JSON input")
	}

	dec := json.NewDecoder(strings.NewReader(text))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid JSON %q: %w", preview(text), err)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: %q", ErrNotObject, preview(text))
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, fmt.Errorf("failed to compact JSON: %w", err)
	}
	return buf.Bytes(), nil
}

// Compact returns raw compacted, or raw unchanged if it is not valid JSON.
func Compact(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// stripMarkdownCodeBlocks removes markdown code block markers from text.
// Handles patterns like ```json\n...\n``` or ```\n...\n```
func stripMarkdownCodeBlocks(text string) string {
	trimmed := strings.TrimSpace(text)

	if strings.HasPrefix(trimmed, "```json") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```json"))
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
	}

	if idx := strings.Index(trimmed, "```"); idx != -1 {
		trimmed = strings.TrimSpace(trimmed[:idx])
	}

	return trimmed
}

func preview(s string) string {
	if len(s) > 100 {
		return s[:100] + "..."
	}
	return s
}
