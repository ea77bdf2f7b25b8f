// Package tools provides the tool system for agents.
//
// Information Hiding:
// - Tool execution details hidden behind interface
// - Parameter schemas carried as raw JSON Schema and only interpreted for prompts and validation
// - Local and remote tool sources unified behind Caller
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnknownTool is returned when a call names a tool no source provides.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidArguments is returned when arguments fail schema validation.
	ErrInvalidArguments = errors.New("invalid arguments")
)

// Descriptor describes what a tool does and how to call it.
// Parameters is a JSON Schema object; nil means the tool takes no arguments.
type Descriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// String returns a string representation of the descriptor.
func (d Descriptor) String() string {
	return fmt.Sprintf("%s: %s", d.Name, d.Description)
}

// Param is one top-level property of a descriptor's schema.
type Param struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

type schemaShape struct {
	Properties map[string]struct {
		Type        any    `json:"type"`
		Description string `json:"description"`
	} `json:"properties"`
	Required []string `json:"required"`
}

// Params flattens the top-level properties of the schema, required ones
// first, each group sorted by name. A missing or unreadable schema yields nil.
func (d Descriptor) Params() []Param {
	if len(d.Parameters) == 0 {
		return nil
	}
	var shape schemaShape
	if err := json.Unmarshal(d.Parameters, &shape); err != nil {
		return nil
	}

	required := make(map[string]bool, len(shape.Required))
	for _, name := range shape.Required {
		required[name] = true
	}

	params := make([]Param, 0, len(shape.Properties))
	for name, prop := range shape.Properties {
		params = append(params, Param{
			Name:        name,
			Type:        typeName(prop.Type),
			Description: prop.Description,
			Required:    required[name],
		})
	}
	sort.Slice(params, func(i, j int) bool {
		if params[i].Required != params[j].Required {
			return params[i].Required
		}
		return params[i].Name < params[j].Name
	})
	return params
}

// typeName renders a schema "type" that may be a string or a list of strings.
func typeName(t any) string {
	switch v := t.(type) {
	case string:
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, p := range v {
			if s, ok := p.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "|")
	default:
		return "any"
	}
}

// Describe renders descriptors as prompt text.
func Describe(descs []Descriptor) string {
	var blocks []string
	for _, d := range descs {
		var params []string
		for _, p := range d.Params() {
			required := "optional"
			if p.Required {
				required = "required"
			}
			params = append(params, fmt.Sprintf("  - %s (%s): %s [%s]",
				p.Name, p.Type, p.Description, required))
		}
		paramStr := "  (none)"
		if len(params) > 0 {
			paramStr = strings.Join(params, "\n")
		}
		blocks = append(blocks, fmt.Sprintf(
			"Tool: %s\nDescription: %s\nParameters:\n%s",
			d.Name, d.Description, paramStr))
	}
	return strings.Join(blocks, "\n\n")
}

// Tool is the interface that all in-process tools implement.
// Execute returns a JSON value; a returned error is a tool fault.
type Tool interface {
	Descriptor() Descriptor
	Execute(ctx context.Context, args json.RawMessage) (json.RawMessage, error)
}

// Caller is a source of tools the agent can list and invoke by name.
type Caller interface {
	Descriptors() []Descriptor
	Call(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error)
}

// Func adapts a function into a Tool.
type Func struct {
	Desc Descriptor
	Fn   func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)
}

// Descriptor returns the tool descriptor.
func (f Func) Descriptor() Descriptor { return f.Desc }

// Execute calls the wrapped function.
func (f Func) Execute(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	return f.Fn(ctx, args)
}
