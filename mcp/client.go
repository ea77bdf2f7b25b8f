// Package mcp provides a Model Context Protocol (MCP) client.
//
// MCP servers expose tools, resources and prompt templates over JSON-RPC
// on stdin/stdout. This package connects to them, lists and calls their
// tools, reads their resources so they can be indexed as knowledge, and
// renders their prompts for use as agent instructions.
//
// Information Hiding:
// - Process management hidden
// - JSON-RPC framing, request ID tracking and notification skipping hidden
// - Pagination of list methods hidden

package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
)

// ProtocolVersion is the MCP revision announced during initialization.
const ProtocolVersion = "2024-11-05"

// Client communicates with an MCP server via newline-delimited JSON-RPC.
type Client struct {
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	requestID uint64
	mu        sync.Mutex
}

// rpcRequest is a JSON-RPC request or notification (ID omitted).
type rpcRequest struct {
	JSONRPC string  `json:"jsonrpc"`
	ID      *uint64 `json:"id,omitempty"`
	Method  string  `json:"method"`
	Params  any     `json:"params,omitempty"`
}

// rpcResponse is a JSON-RPC response. Server notifications arrive
// on the same stream without an ID.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ToolInfo describes a tool available on the MCP server.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ResourceInfo describes a resource listed by the MCP server.
type ResourceInfo struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourceContents is one item returned by resources/read.
// Binary contents carry Blob (base64) instead of Text.
type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

type toolsListResult struct {
	Tools      []ToolInfo `json:"tools"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

type resourcesListResult struct {
	Resources  []ResourceInfo `json:"resources"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

// PromptArgument is a named parameter of a prompt template.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// PromptInfo describes a prompt template listed by the MCP server.
type PromptInfo struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

type promptsListResult struct {
	Prompts    []PromptInfo `json:"prompts"`
	NextCursor string       `json:"nextCursor,omitempty"`
}

type resourcesReadResult struct {
	Contents []ResourceContents `json:"contents"`
}

// NewClient starts the given command and performs the MCP handshake.
// env entries are added to the inherited environment.
func NewClient(ctx context.Context, env map[string]string, command string, args ...string) (*Client, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	if len(env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to start MCP server: %w", err)
	}

	client := &Client{cmd: cmd, stdin: stdin, stdout: bufio.NewReader(stdout)}
	if err := client.initialize(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize MCP client: %w", err)
	}
	return client, nil
}

// NewStreamClient performs the handshake over an existing connection,
// such as a socket or an in-process pipe.
func NewStreamClient(ctx context.Context, r io.Reader, w io.WriteCloser) (*Client, error) {
	client := &Client{stdin: w, stdout: bufio.NewReader(r)}
	if err := client.initialize(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize MCP client: %w", err)
	}
	return client, nil
}

func (c *Client) initialize(ctx context.Context) error {
	params := map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "theseus",
			"version": "0.1.0",
		},
	}
	if _, err := c.call(ctx, "initialize", params); err != nil {
		return err
	}
	return c.notify("notifications/initialized")
}

// ListTools returns all tools available on the MCP server.
func (c *Client) ListTools(ctx context.Context) ([]ToolInfo, error) {
	var all []ToolInfo
	cursor := ""
	for {
		result, err := c.call(ctx, "tools/list", cursorParams(cursor))
		if err != nil {
			return nil, err
		}
		var page toolsListResult
		if err := json.Unmarshal(result, &page); err != nil {
			return nil, fmt.Errorf("failed to parse tools list: %w", err)
		}
		all = append(all, page.Tools...)
		if page.NextCursor == "" {
			return all, nil
		}
		cursor = page.NextCursor
	}
}

// CallTool calls a tool and returns the raw tools/call result.
func (c *Client) CallTool(ctx context.Context, name string, arguments json.RawMessage) (json.RawMessage, error) {
	if len(arguments) == 0 {
		arguments = json.RawMessage(`{}`)
	}
	params := map[string]any{
		"name":      name,
		"arguments": arguments,
	}
	return c.call(ctx, "tools/call", params)
}

// ListResources returns all resources the server exposes.
func (c *Client) ListResources(ctx context.Context) ([]ResourceInfo, error) {
	var all []ResourceInfo
	cursor := ""
	for {
		result, err := c.call(ctx, "resources/list", cursorParams(cursor))
		if err != nil {
			return nil, err
		}
		var page resourcesListResult
		if err := json.Unmarshal(result, &page); err != nil {
			return nil, fmt.Errorf("failed to parse resources list: %w", err)
		}
		all = append(all, page.Resources...)
		if page.NextCursor == "" {
			return all, nil
		}
		cursor = page.NextCursor
	}
}

// ReadResource fetches the contents of a resource by URI.
func (c *Client) ReadResource(ctx context.Context, uri string) ([]ResourceContents, error) {
	result, err := c.call(ctx, "resources/read", map[string]any{"uri": uri})
	if err != nil {
		return nil, err
	}
	var read resourcesReadResult
	if err := json.Unmarshal(result, &read); err != nil {
		return nil, fmt.Errorf("failed to parse resource contents: %w", err)
	}
	return read.Contents, nil
}

// ListPrompts returns all prompt templates the server exposes.
func (c *Client) ListPrompts(ctx context.Context) ([]PromptInfo, error) {
	var all []PromptInfo
	cursor := ""
	for {
		result, err := c.call(ctx, "prompts/list", cursorParams(cursor))
		if err != nil {
			return nil, err
		}
		var page promptsListResult
		if err := json.Unmarshal(result, &page); err != nil {
			return nil, fmt.Errorf("failed to parse prompts list: %w", err)
		}
		all = append(all, page.Prompts...)
		if page.NextCursor == "" {
			return all, nil
		}
		cursor = page.NextCursor
	}
}

// GetPrompt renders a prompt template and returns the raw prompts/get result.
func (c *Client) GetPrompt(ctx context.Context, name string, arguments map[string]string) (json.RawMessage, error) {
	params := map[string]any{"name": name}
	if len(arguments) > 0 {
		params["arguments"] = arguments
	}
	return c.call(ctx, "prompts/get", params)
}

func cursorParams(cursor string) any {
	if cursor == "" {
		return nil
	}
	return map[string]any{"cursor": cursor}
}

// call sends a request and waits for the response with the same ID.
// Notifications, server requests and responses to other IDs are skipped.
func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	c.requestID++
	id := c.requestID
	if err := c.write(rpcRequest{JSONRPC: "2.0", ID: &id, Method: method, Params: params}); err != nil {
		return nil, err
	}

	for {
		line, err := c.stdout.ReadBytes('\n')
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		var response rpcResponse
		if err := json.Unmarshal(line, &response); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		if response.Method != "" || string(bytes.TrimSpace(response.ID)) != strconv.FormatUint(id, 10) {
			continue
		}

		if response.Error != nil {
			return nil, fmt.Errorf("MCP error %d: %s", response.Error.Code, response.Error.Message)
		}
		return response.Result, nil
	}
}

func (c *Client) notify(method string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.write(rpcRequest{JSONRPC: "2.0", Method: method})
}

func (c *Client) write(req rpcRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	if _, err := c.stdin.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write request: %w", err)
	}
	return nil
}

// Close stops the MCP server process and releases resources.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stdin != nil {
		c.stdin.Close()
	}

	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
		_ = c.cmd.Wait()
	}
	return nil
}
