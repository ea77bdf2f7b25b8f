package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/theseus/tools"
)

type fakeRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// fakeServer answers MCP requests over in-process pipes.
type fakeServer struct {
	methods []string
}

func (f *fakeServer) handle(req fakeRequest) (any, *rpcError) {
	var params map[string]any
	_ = json.Unmarshal(req.Params, &params)

	switch req.Method {
	case "initialize":
		return map[string]any{
			"protocolVersion": ProtocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}, "resources": map[string]any{}},
			"serverInfo":      map[string]any{"name": "chef", "version": "1"},
		}, nil
	case "tools/list":
		if params["cursor"] == "page2" {
			return map[string]any{"tools": []any{
				map[string]any{"name": "boom", "inputSchema": map[string]any{"type": "object"}},
				map[string]any{"name": "plain", "inputSchema": map[string]any{"type": "object"}},
			}}, nil
		}
		return map[string]any{
			"tools": []any{
				map[string]any{
					"name":        "get_recipe",
					"description": "Fetch a recipe",
					"inputSchema": map[string]any{
						"type":       "object",
						"properties": map[string]any{"name": map[string]any{"type": "string"}},
						"required":   []string{"name"},
					},
				},
				map[string]any{"name": "structured", "inputSchema": map[string]any{"type": "object"}},
			},
			"nextCursor": "page2",
		}, nil
	case "tools/call":
		switch params["name"] {
		case "get_recipe":
			args, _ := params["arguments"].(map[string]any)
			text := fmt.Sprintf(`{"display":"Recipe: %v"}`, args["name"])
			return map[string]any{"content": []any{map[string]any{"type": "text", "text": text}}}, nil
		case "structured":
			return map[string]any{
				"content":           []any{map[string]any{"type": "text", "text": "ignored"}},
				"structuredContent": map[string]any{"servings": 4},
			}, nil
		case "plain":
			return map[string]any{"content": []any{
				map[string]any{"type": "text", "text": "line one"},
				map[string]any{"type": "image", "data": "xx"},
				map[string]any{"type": "text", "text": "line two"},
			}}, nil
		case "boom":
			return map[string]any{
				"content": []any{map[string]any{"type": "text", "text": "oven on fire"}},
				"isError": true,
			}, nil
		}
		return nil, &rpcError{Code: -32602, Message: "unknown tool"}
	case "resources/list":
		return map[string]any{"resources": []any{
			map[string]any{"uri": "recipe://vegan/primavera", "name": "Vegan Pasta Primavera"},
			map[string]any{"uri": "res://pantry", "name": "Pantry"},
			map[string]any{"uri": "image://logo", "name": "Logo"},
		}}, nil
	case "resources/read":
		switch params["uri"] {
		case "recipe://vegan/primavera":
			return map[string]any{"contents": []any{map[string]any{"uri": params["uri"], "text": "Pasta, zucchini, peppers."}}}, nil
		case "res://pantry":
			return map[string]any{"contents": []any{map[string]any{"uri": params["uri"], "text": "Flour, rice."}}}, nil
		case "image://logo":
			return map[string]any{"contents": []any{map[string]any{"uri": params["uri"], "blob": "iVBORw0="}}}, nil
		}
		return nil, &rpcError{Code: -32002, Message: "resource not found"}
	case "prompts/list":
		return map[string]any{"prompts": []any{
			map[string]any{"name": "meal_planner", "description": "Plan meals for the week"},
			map[string]any{
				"name":      "recipe_critic",
				"arguments": []any{map[string]any{"name": "recipe", "required": true}},
			},
		}}, nil
	case "prompts/get":
		switch params["name"] {
		case "meal_planner":
			return map[string]any{"prompt": map[string]any{
				"description": "Plan meals for the week",
				"messages": []any{map[string]any{
					"role":    "system",
					"content": "You are a meal planning assistant. Use search_recipes before suggesting dishes.",
				}},
			}}, nil
		case "recipe_critic":
			args, _ := params["arguments"].(map[string]any)
			return map[string]any{"messages": []any{
				map[string]any{"role": "user", "content": map[string]any{"type": "text", "text": fmt.Sprintf("Critique %v honestly.", args["recipe"])}},
				map[string]any{"role": "user", "content": map[string]any{"type": "image", "data": "xx"}},
			}}, nil
		}
		return nil, &rpcError{Code: -32602, Message: "unknown prompt"}
	}
	return nil, &rpcError{Code: -32601, Message: "method not found"}
}

func (f *fakeServer) serve(r io.Reader, w io.WriteCloser) {
	defer w.Close()
	scanner := bufio.NewScanner(r)
	enc := json.NewEncoder(w)
	for scanner.Scan() {
		var req fakeRequest
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			return
		}
		f.methods = append(f.methods, req.Method)
		if len(req.ID) == 0 {
			continue
		}

		// Interleave a notification and a stray response to exercise skipping.
		_ = enc.Encode(map[string]any{"jsonrpc": "2.0", "method": "notifications/message", "params": map[string]any{"level": "info"}})
		_ = enc.Encode(map[string]any{"jsonrpc": "2.0", "id": 9999, "result": map[string]any{}})

		result, rpcErr := f.handle(req)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		_ = enc.Encode(resp)
	}
}

func startFake(t *testing.T) (*Session, *fakeServer) {
	t.Helper()
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	fake := &fakeServer{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		fake.serve(reqR, respW)
	}()

	client, err := NewStreamClient(context.Background(), respR, reqW)
	require.NoError(t, err)

	s, err := NewSession(context.Background(), "chef", client, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
		<-done
	})
	return s, fake
}

func TestSession_ListsToolsAcrossPages(t *testing.T) {
	s, fake := startFake(t)

	var names []string
	for _, d := range s.Descriptors() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"get_recipe", "structured", "boom", "plain"}, names)
	assert.Equal(t, "Fetch a recipe", s.Descriptors()[0].Description)
	assert.JSONEq(t, `{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`,
		string(s.Descriptors()[0].Parameters))

	require.GreaterOrEqual(t, len(fake.methods), 2)
	assert.Equal(t, []string{"initialize", "notifications/initialized"}, fake.methods[:2])
}

func TestSession_CallDecodesResults(t *testing.T) {
	s, _ := startFake(t)
	ctx := context.Background()

	out, err := s.Call(ctx, "get_recipe", json.RawMessage(`{"name":"soup"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"display":"Recipe: soup"}`, string(out))

	out, err = s.Call(ctx, "structured", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"servings":4}`, string(out))

	out, err = s.Call(ctx, "plain", nil)
	require.NoError(t, err)
	assert.Equal(t, `"line one\nline two"`, string(out))

	_, err = s.Call(ctx, "boom", nil)
	require.ErrorIs(t, err, ErrToolFailed)
	assert.Contains(t, err.Error(), "oven on fire")

	_, err = s.Call(ctx, "not_listed", nil)
	assert.ErrorIs(t, err, tools.ErrUnknownTool)
}

type recordingSink struct {
	texts map[string]string
	metas map[string]map[string]any
}

func (r *recordingSink) IndexResource(_ context.Context, id, text string, meta map[string]any) error {
	if r.texts == nil {
		r.texts = map[string]string{}
		r.metas = map[string]map[string]any{}
	}
	r.texts[id] = text
	r.metas[id] = meta
	return nil
}

func TestSession_SyncAndReadResources(t *testing.T) {
	s, _ := startFake(t)
	ctx := context.Background()
	sink := &recordingSink{}

	ids, err := s.SyncResources(ctx, sink)
	require.NoError(t, err)
	assert.Equal(t, []string{"res://chef/vegan/primavera", "res://pantry"}, ids)
	assert.Equal(t, "Pasta, zucchini, peppers.", sink.texts["res://chef/vegan/primavera"])
	assert.Equal(t, "Vegan Pasta Primavera", sink.metas["res://chef/vegan/primavera"]["name"])

	text, err := s.ReadResource(ctx, "res://pantry")
	require.NoError(t, err)
	assert.Equal(t, "Flour, rice.", text)

	_, err = s.ReadResource(ctx, "res://unknown")
	assert.Error(t, err)

	g := NewGroup(s)
	text, err = g.ReadResource(ctx, "res://chef/vegan/primavera")
	require.NoError(t, err)
	assert.Equal(t, "Pasta, zucchini, peppers.", text)
	assert.Len(t, g.Descriptors(), 4)
}

func TestClient_RPCErrorSurfaces(t *testing.T) {
	s, _ := startFake(t)
	_, err := s.client.call(context.Background(), "completion/complete", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MCP error -32601: method not found")
}

func TestClient_CanceledContext(t *testing.T) {
	s, _ := startFake(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.client.ListTools(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResourceID(t *testing.T) {
	s := &Session{name: "chef"}
	assert.Equal(t, "res://chef/vegan/primavera", s.ResourceID("recipe://vegan/primavera"))
	assert.Equal(t, "res://chef/tmp/notes.md", s.ResourceID("file:///tmp/notes.md"))
	assert.Equal(t, "res://kept", s.ResourceID("res://kept"))
	assert.Equal(t, "res://chef/bare", s.ResourceID("bare"))
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mcp.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"mcpServers": {
			"zeta": {"command": "zeta-server"},
			"alpha": {"command": "python", "args": ["chef_server.py"], "env": {"K": "V"}}
		}
	}`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	servers := cfg.Servers()
	require.Len(t, servers, 2)
	assert.Equal(t, "alpha", servers[0].Name)
	assert.Equal(t, []string{"chef_server.py"}, servers[0].Args)
	assert.Equal(t, "V", servers[0].Env["K"])
	assert.Equal(t, "zeta", servers[1].Name)

	require.NoError(t, os.WriteFile(path, []byte(`{"mcpServers":{"x":{}}}`), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestParseCommand(t *testing.T) {
	s, err := ParseCommand("/usr/bin/python3 chef_server.py --port 0")
	require.NoError(t, err)
	assert.Equal(t, "python3", s.Name)
	assert.Equal(t, "/usr/bin/python3", s.Command)
	assert.Equal(t, []string{"chef_server.py", "--port", "0"}, s.Args)

	_, err = ParseCommand("   ")
	assert.Error(t, err)
}
