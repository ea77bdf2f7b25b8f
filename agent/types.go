// Package agent provides the ReAct reasoning loop.
//
// Contains the types returned by runs.
package agent

import (
	"github.com/richinex/theseus/llm"
	"github.com/richinex/theseus/model"
	"github.com/richinex/theseus/retrieval"
)

// Step is an alias for model.Step for agent reasoning steps.
type Step = model.Step

// ToolCall is an alias for model.ToolCall for tool call metadata.
type ToolCall = model.ToolCall

// Outcome tells how a run ended.
type Outcome int

const (
	// OutcomeAnswered means the model, or a tool's display field, produced the answer.
	OutcomeAnswered Outcome = iota
	// OutcomeExhausted means the step limit was reached and the answer was synthesized.
	OutcomeExhausted
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeAnswered:
		return "answered"
	case OutcomeExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Result is the record of one run. Steps holds exactly one step with an
// Answer, the last one, unless the run returned an error.
type Result struct {
	RunID      string
	Outcome    Outcome
	Answer     string
	Steps      []Step
	ToolCalls  []ToolCall
	Usage      llm.TokenUsage
	LLMCalls   int
	DurationMs uint64
	Context    retrieval.ConversationContext
}

// StepObserver is called synchronously after every completed step.
type StepObserver func(Step)
