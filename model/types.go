// Package model provides domain types shared across packages.
package model

import "encoding/json"

// Action is a tool invocation requested by the model.
type Action struct {
	Tool string          `json:"tool"`
	Args json.RawMessage `json:"args"`
}

// Step represents a single step in a reasoning run.
// Steps are append-only; at most one step of a run carries an Answer.
type Step struct {
	Index       int     `json:"index"`
	Thought     string  `json:"thought"`
	Action      *Action `json:"action,omitempty"`
	Observation *string `json:"observation,omitempty"`
	Answer      *string `json:"answer,omitempty"`

	// IsError marks observations that came from a tool fault or a
	// protocol correction rather than a tool result.
	IsError bool `json:"is_error,omitempty"`
}

// IsTerminal reports whether the step ends the run.
func (s Step) IsTerminal() bool {
	return s.Answer != nil
}

// HasResult reports whether the step holds a successful tool observation.
func (s Step) HasResult() bool {
	return s.Action != nil && s.Observation != nil && !s.IsError
}

// ToolCall contains metrics about a tool invocation.
type ToolCall struct {
	Name       string `json:"name"`
	InputSize  int    `json:"input_size"`
	OutputSize int    `json:"output_size"`
	DurationMs uint64 `json:"duration_ms"`
	Success    bool   `json:"success"`
}
