// MCP Session - Makes an MCP server usable as a tool source and a
// knowledge source.
//
// Information Hiding:
// - MCP client lifecycle hidden
// - tools/call result decoding hidden
// - Mapping between resource URIs and index identifiers hidden

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/richinex/theseus/tools"
)

// ErrToolFailed marks a tools/call result the server flagged with isError.
var ErrToolFailed = errors.New("MCP tool reported an error")

// ResourceSink receives resources read from a server.
type ResourceSink interface {
	IndexResource(ctx context.Context, id, text string, metadata map[string]any) error
}

// Session is a connected MCP server. It implements tools.Caller.
// The caller must call Close when done.
type Session struct {
	name   string
	client *Client
	logger *zap.Logger
	tools  []tools.Descriptor

	mu   sync.RWMutex
	uris map[string]string // index id -> resource URI
}

// Connect starts a configured server and lists its tools.
func Connect(ctx context.Context, server NamedServer, logger *zap.Logger) (*Session, error) {
	client, err := NewClient(ctx, server.Env, server.Command, server.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MCP server %s: %w", server.Name, err)
	}
	s, err := NewSession(ctx, server.Name, client, logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}

// NewSession wraps an initialized client and lists its tools.
func NewSession(ctx context.Context, name string, client *Client, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	infos, err := client.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools of %s: %w", name, err)
	}

	descs := make([]tools.Descriptor, 0, len(infos))
	for _, info := range infos {
		descs = append(descs, tools.Descriptor{
			Name:        info.Name,
			Description: stringValue(info.Description),
			Parameters:  info.InputSchema,
		})
	}
	logger.Info("MCP server connected", zap.String("server", name), zap.Int("tools", len(descs)))

	return &Session{
		name:   name,
		client: client,
		logger: logger,
		tools:  descs,
		uris:   make(map[string]string),
	}, nil
}

// Name returns the server name.
func (s *Session) Name() string {
	return s.name
}

// Descriptors returns the tools the server exposes.
func (s *Session) Descriptors() []tools.Descriptor {
	return s.tools
}

// Call invokes a server tool and decodes its result into a JSON value.
func (s *Session) Call(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	if !s.hasTool(name) {
		return nil, fmt.Errorf("%w: %s", tools.ErrUnknownTool, name)
	}
	raw, err := s.client.CallTool(ctx, name, args)
	if err != nil {
		return nil, fmt.Errorf("tool call failed: %w", err)
	}
	return decodeToolResult(raw)
}

func (s *Session) hasTool(name string) bool {
	for _, d := range s.tools {
		if d.Name == name {
			return true
		}
	}
	return false
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type callToolResult struct {
	Content           []contentItem   `json:"content"`
	StructuredContent json.RawMessage `json:"structuredContent,omitempty"`
	IsError           bool            `json:"isError,omitempty"`
}

// decodeToolResult prefers structured content, then a text item that is
// itself JSON, then the joined text as a JSON string.
func decodeToolResult(raw json.RawMessage) (json.RawMessage, error) {
	var res callToolResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("failed to parse tool result: %w", err)
	}

	var texts []string
	for _, c := range res.Content {
		if c.Type == "text" && c.Text != "" {
			texts = append(texts, c.Text)
		}
	}
	text := strings.Join(texts, "\n")

	if res.IsError {
		return nil, fmt.Errorf("%w: %s", ErrToolFailed, text)
	}
	if len(res.StructuredContent) > 0 && string(res.StructuredContent) != "null" {
		return res.StructuredContent, nil
	}
	if len(texts) == 1 && json.Valid([]byte(texts[0])) {
		return json.RawMessage(texts[0]), nil
	}
	return json.Marshal(text)
}

// ResourceID maps a server resource URI to an index identifier.
func (s *Session) ResourceID(uri string) string {
	if strings.HasPrefix(uri, "res://") {
		return uri
	}
	rest := uri
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	return "res://" + s.name + "/" + strings.TrimLeft(rest, "/")
}

// SyncResources reads every listed resource and hands its text to sink.
// Binary or empty resources are skipped. It returns the stored ids.
func (s *Session) SyncResources(ctx context.Context, sink ResourceSink) ([]string, error) {
	infos, err := s.client.ListResources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources of %s: %w", s.name, err)
	}

	var ids []string
	for _, info := range infos {
		text, err := s.readURI(ctx, info.URI)
		if err != nil {
			s.logger.Warn("resource skipped", zap.String("uri", info.URI), zap.Error(err))
			continue
		}
		if text == "" {
			continue
		}

		id := s.ResourceID(info.URI)
		meta := map[string]any{"source": "mcp", "server": s.name, "uri": info.URI}
		if info.Name != "" {
			meta["name"] = info.Name
		}
		if err := sink.IndexResource(ctx, id, text, meta); err != nil {
			return ids, fmt.Errorf("failed to index %s: %w", info.URI, err)
		}

		s.mu.Lock()
		s.uris[id] = info.URI
		s.mu.Unlock()
		ids = append(ids, id)
	}
	return ids, nil
}

// ReadResource returns the text of a previously synced resource by index id.
func (s *Session) ReadResource(ctx context.Context, id string) (string, error) {
	s.mu.RLock()
	uri, ok := s.uris[id]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("resource %s not served by %s", id, s.name)
	}
	return s.readURI(ctx, uri)
}

func (s *Session) readURI(ctx context.Context, uri string) (string, error) {
	contents, err := s.client.ReadResource(ctx, uri)
	if err != nil {
		return "", err
	}
	var parts []string
	for _, c := range contents {
		if c.Text != "" {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

// Close shuts the server down.
func (s *Session) Close() error {
	return s.client.Close()
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var _ tools.Caller = (*Session)(nil)
