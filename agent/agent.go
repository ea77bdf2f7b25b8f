// ReAct (Reason + Act) loop implementation.
//
// All question answering goes through this module.
//
// Information Hiding:
// - ReAct loop internals hidden
// - LLM communication hidden
// - Tool execution coordination hidden
// - Step limit recovery hidden

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	jsonutil "github.com/richinex/theseus/internal/json"
	"github.com/richinex/theseus/llm"
	"github.com/richinex/theseus/retrieval"
	"github.com/richinex/theseus/tools"
)

const correctionObservation = "Invalid response: you must provide Action or Final Answer."

// ContextProvider assembles the context bundle for one run.
// *retrieval.Assembler implements it.
type ContextProvider interface {
	Build(ctx context.Context, query string, history []llm.ChatMessage, catalog []tools.Descriptor) retrieval.ConversationContext
}

// Agent answers questions with the ReAct pattern.
type Agent struct {
	config    Config
	llmClient *llm.Client
	caller    tools.Caller
	executor  *tools.Executor
	contexts  ContextProvider
	observers []StepObserver
	onDelta   llm.DeltaFunc
	logger    *zap.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithContextProvider enables retrieval of resources and history compression.
func WithContextProvider(p ContextProvider) Option {
	return func(a *Agent) { a.contexts = p }
}

// WithObserver registers a callback run after every step.
func WithObserver(o StepObserver) Option {
	return func(a *Agent) {
		if o != nil {
			a.observers = append(a.observers, o)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithDeltaFunc streams model output chunks as they arrive.
func WithDeltaFunc(fn llm.DeltaFunc) Option {
	return func(a *Agent) { a.onDelta = fn }
}

// New creates an agent. A nil caller means no tools are available.
func New(config Config, provider llm.Provider, caller tools.Caller, opts ...Option) *Agent {
	if caller == nil {
		caller = tools.NewRegistry()
	}
	a := &Agent{
		config:    config.normalized(),
		llmClient: llm.NewClient(provider),
		caller:    caller,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.executor = tools.NewExecutor(caller, a.logger)
	return a
}

// Name returns the agent's name.
func (a *Agent) Name() string {
	return a.config.Name
}

// Config returns the normalized configuration.
func (a *Agent) Config() Config {
	return a.config
}

// Run answers query. History holds prior turns of the conversation and is
// not modified.
//
// A model call failure or context cancellation ends the run with the
// partial Result and the unmodified error. Every other run ends with a
// terminal step carrying the answer.
func (a *Agent) Run(ctx context.Context, query string, history []llm.ChatMessage) (Result, error) {
	start := time.Now()
	usageBefore := a.llmClient.Usage()
	callsBefore := a.llmClient.Calls()

	result := Result{RunID: uuid.NewString()}
	result.Context = a.buildContext(ctx, query, history)

	logger := a.logger.With(
		zap.String("agent", a.config.Name),
		zap.String("run_id", result.RunID),
	)
	logger.Info("run started",
		zap.String("query", query),
		zap.Int("resources", len(result.Context.Resources)),
		zap.Int("tools", len(result.Context.Tools)),
	)

	finish := func() {
		usage := a.llmClient.Usage()
		result.Usage = llm.TokenUsage{
			PromptTokens:     usage.PromptTokens - usageBefore.PromptTokens,
			CompletionTokens: usage.CompletionTokens - usageBefore.CompletionTokens,
			TotalTokens:      usage.TotalTokens - usageBefore.TotalTokens,
		}
		result.LLMCalls = a.llmClient.Calls() - callsBefore
		result.DurationMs = uint64(time.Since(start).Milliseconds())
	}

	for len(result.Steps) < a.config.MaxSteps {
		if err := ctx.Err(); err != nil {
			finish()
			return result, err
		}

		msgs := messages(a.config.SystemPrompt, query, result.Context, result.Steps)
		text, err := a.llmClient.Chat(ctx, msgs, a.onDelta)
		if err != nil {
			logger.Error("model call failed", zap.Error(err))
			finish()
			return result, err
		}

		parsed, perr := a.config.Parser.Parse(text)
		step := Step{Index: len(result.Steps), Thought: parsed.Thought}

		switch {
		case perr == nil && parsed.Answer != nil:
			step.Answer = parsed.Answer
			a.record(&result, step)
			result.Outcome = OutcomeAnswered
			result.Answer = *parsed.Answer
			finish()
			logger.Info("run answered", zap.Int("steps", len(result.Steps)))
			return result, nil

		case perr == nil && parsed.Action != nil:
			step.Action = parsed.Action
			out, call, err := a.executor.Execute(ctx, parsed.Action.Tool, parsed.Action.Args)
			result.ToolCalls = append(result.ToolCalls, call)

			var obs string
			if err != nil {
				obs = a.config.ErrorPrefix + err.Error()
				step.IsError = true
			} else {
				obs = jsonutil.Compact(out)
			}
			step.Observation = &obs
			a.record(&result, step)

			if err == nil {
				if display, ok := displayText(out, a.config.DisplayField); ok {
					a.record(&result, Step{
						Index:   len(result.Steps),
						Thought: fmt.Sprintf("The %s result is ready to show.", parsed.Action.Tool),
						Answer:  &display,
					})
					result.Outcome = OutcomeAnswered
					result.Answer = display
					finish()
					logger.Info("run answered from tool display", zap.String("tool", parsed.Action.Tool))
					return result, nil
				}
			}

		default:
			logger.Debug("unparseable model output", zap.Error(perr))
			obs := correctionObservation
			step.Observation = &obs
			step.IsError = true
			a.record(&result, step)
		}
	}

	answer := a.exhaustedAnswer(result.Steps)
	a.record(&result, Step{
		Index:   len(result.Steps),
		Thought: "The step limit was reached.",
		Answer:  &answer,
	})
	result.Outcome = OutcomeExhausted
	result.Answer = answer
	finish()
	logger.Warn("run exhausted step limit", zap.Int("max_steps", a.config.MaxSteps))
	return result, nil
}

func (a *Agent) buildContext(ctx context.Context, query string, history []llm.ChatMessage) retrieval.ConversationContext {
	catalog := a.caller.Descriptors()
	if a.contexts != nil {
		return a.contexts.Build(ctx, query, history, catalog)
	}
	return retrieval.ConversationContext{
		History:       append([]llm.ChatMessage(nil), history...),
		Tools:         catalog,
		EnhancedQuery: query,
	}
}

func (a *Agent) record(result *Result, step Step) {
	result.Steps = append(result.Steps, step)
	for _, o := range a.observers {
		o(step)
	}
}

// exhaustedAnswer summarizes the successful observations gathered before
// the step limit, or apologizes when there are none.
func (a *Agent) exhaustedAnswer(steps []Step) string {
	var found []string
	for _, s := range steps {
		if s.Observation != nil && !s.IsError {
			found = append(found, *s.Observation)
		}
	}
	if len(found) == 0 {
		return formatLimit(a.config.Apology, a.config.MaxSteps)
	}
	return formatLimit(a.config.ExhaustedPreamble, a.config.MaxSteps) + "\n\n" + strings.Join(found, "\n\n")
}

func formatLimit(msg string, limit int) string {
	if strings.Contains(msg, "%d") {
		return fmt.Sprintf(msg, limit)
	}
	return msg
}

// displayText returns the string under field when out is a JSON object
// holding a non-empty string there.
func displayText(out json.RawMessage, field string) (string, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(out, &obj); err != nil {
		return "", false
	}
	raw, ok := obj[field]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}
