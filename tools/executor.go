// Tool Executor.
//
// Information Hiding:
// - Timing and size accounting hidden
// - Tool source (local registry, MCP session, mux) hidden behind Caller

package tools

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/richinex/theseus/model"
)

// Executor runs tool calls exactly once and records metrics.
// Faults are returned to the caller, which turns them into observations.
type Executor struct {
	caller Caller
	logger *zap.Logger
}

// NewExecutor creates an executor over the given tool source.
func NewExecutor(caller Caller, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{caller: caller, logger: logger}
}

// Execute invokes the named tool a single time.
func (e *Executor) Execute(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, model.ToolCall, error) {
	start := time.Now()
	result, err := e.caller.Call(ctx, name, args)
	call := model.ToolCall{
		Name:       name,
		InputSize:  len(args),
		OutputSize: len(result),
		DurationMs: uint64(time.Since(start).Milliseconds()),
		Success:    err == nil,
	}

	if err != nil {
		e.logger.Warn("tool call failed",
			zap.String("tool", name),
			zap.Error(err),
		)
		return nil, call, err
	}

	e.logger.Debug("tool call completed",
		zap.String("tool", name),
		zap.Int("output_bytes", call.OutputSize),
		zap.Uint64("duration_ms", call.DurationMs),
	)
	return result, call, nil
}
