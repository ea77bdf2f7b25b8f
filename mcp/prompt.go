package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrPromptNotFound is returned when no connected server offers a prompt.
var ErrPromptNotFound = errors.New("MCP prompt not found")

// PromptMessage is one rendered message of a prompt template.
type PromptMessage struct {
	Role    string
	Content string
}

// UnmarshalJSON accepts content as a plain string or as a text content
// item ({"type":"text","text":...}). Non-text items are dropped.
func (m *PromptMessage) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Role = raw.Role
	m.Content = ""

	var text string
	if err := json.Unmarshal(raw.Content, &text); err == nil {
		m.Content = text
		return nil
	}
	var item contentItem
	if err := json.Unmarshal(raw.Content, &item); err != nil {
		return fmt.Errorf("unsupported prompt content: %w", err)
	}
	if item.Type == "text" {
		m.Content = item.Text
	}
	return nil
}

// Prompt is a rendered prompt template.
type Prompt struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}

// SystemText returns the text of the system messages, or of every message
// when the template has no system role.
func (p Prompt) SystemText() string {
	var system, all []string
	for _, m := range p.Messages {
		text := strings.TrimSpace(m.Content)
		if text == "" {
			continue
		}
		all = append(all, text)
		if m.Role == "system" {
			system = append(system, text)
		}
	}
	if len(system) > 0 {
		return strings.Join(system, "\n\n")
	}
	return strings.Join(all, "\n\n")
}

// decodePrompt reads a prompts/get result. Some servers nest the
// payload under a "prompt" key.
func decodePrompt(raw json.RawMessage) (Prompt, error) {
	var wrapped struct {
		Prompt *Prompt `json:"prompt"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Prompt != nil {
		return *wrapped.Prompt, nil
	}
	var p Prompt
	if err := json.Unmarshal(raw, &p); err != nil {
		return Prompt{}, fmt.Errorf("failed to parse prompt: %w", err)
	}
	return p, nil
}

// ListPrompts returns the prompt templates of the server.
func (s *Session) ListPrompts(ctx context.Context) ([]PromptInfo, error) {
	infos, err := s.client.ListPrompts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts of %s: %w", s.name, err)
	}
	return infos, nil
}

// GetPrompt renders the named prompt with args.
func (s *Session) GetPrompt(ctx context.Context, name string, args map[string]string) (Prompt, error) {
	raw, err := s.client.GetPrompt(ctx, name, args)
	if err != nil {
		return Prompt{}, fmt.Errorf("failed to get prompt %s from %s: %w", name, s.name, err)
	}
	return decodePrompt(raw)
}

// ServerPrompt is a prompt template together with the server offering it.
type ServerPrompt struct {
	Server string
	PromptInfo
}

// ListPrompts lists the prompts of every session. Servers that do not
// support prompts are skipped.
func (g *Group) ListPrompts(ctx context.Context) ([]ServerPrompt, error) {
	var out []ServerPrompt
	for _, s := range g.sessions {
		infos, err := s.ListPrompts(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			continue
		}
		for _, info := range infos {
			out = append(out, ServerPrompt{Server: s.Name(), PromptInfo: info})
		}
	}
	return out, nil
}

// GetPrompt renders a prompt by name. "server/name" selects a server;
// a bare name uses the first server that lists it.
func (g *Group) GetPrompt(ctx context.Context, name string, args map[string]string) (Prompt, error) {
	server, bare, qualified := strings.Cut(name, "/")
	if !qualified {
		bare = name
	}

	prompts, err := g.ListPrompts(ctx)
	if err != nil {
		return Prompt{}, err
	}
	for _, p := range prompts {
		if p.Name != bare || (qualified && p.Server != server) {
			continue
		}
		for _, s := range g.sessions {
			if s.Name() == p.Server {
				return s.GetPrompt(ctx, bare, args)
			}
		}
	}
	return Prompt{}, fmt.Errorf("%w: %s", ErrPromptNotFound, name)
}
