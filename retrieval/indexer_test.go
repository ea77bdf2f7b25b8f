package retrieval

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/theseus/embedding"
	"github.com/richinex/theseus/model"
	"github.com/richinex/theseus/storage"
)

func newTestIndex(t *testing.T) *storage.VectorIndex {
	t.Helper()
	idx, err := storage.NewVectorIndex()
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func strPtr(s string) *string { return &s }

func TestIndexer_IndexResourceThenRetrieve(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	emb := embedding.NewHashEmbedder(0)
	cache := NewResourceCache(16, 0)

	x := NewIndexer(idx, emb, cache, nil)
	require.NoError(t, x.IndexResource(ctx, "res://primavera", "vegan pasta primavera with zucchini", nil))
	require.NoError(t, x.IndexResource(ctx, "res://taxes", "quarterly tax filing deadline", nil))

	text, ok := cache.Get("res://primavera")
	require.True(t, ok)
	assert.Equal(t, "vegan pasta primavera with zucchini", text)

	a := NewAssembler(idx, emb, DefaultConfig(), WithCache(cache))
	bundle := a.Build(ctx, "vegan pasta primavera with zucchini", nil, nil)
	require.NotEmpty(t, bundle.Resources)
	assert.Equal(t, "res://primavera", bundle.Resources[0].ID)
	assert.Len(t, bundle.Resources, 1, "exact match is near-certain")

	assert.Error(t, x.IndexResource(ctx, "res://empty", "  ", nil))
}

func TestIndexer_IndexToolResult(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	x := NewIndexer(idx, embedding.NewHashEmbedder(0), nil, nil)

	step := model.Step{
		Action:      &model.Action{Tool: "lookup_recipe", Args: json.RawMessage(`{"name":"soup"}`)},
		Observation: strPtr(`{"recipe":"Tomato Soup"}`),
	}

	id, ok, err := x.IndexToolResult(ctx, step)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(id, "tool://lookup_recipe/"))
	assert.Equal(t, ToolResultID("lookup_recipe", step.Action.Args, *step.Observation), id)

	again, _, err := x.IndexToolResult(ctx, step)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	stored, err := idx.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, `{"recipe":"Tomato Soup"}`, stored.Text)
	assert.Equal(t, "lookup_recipe", stored.Metadata["tool"])

	step.IsError = true
	_, ok, err = x.IndexToolResult(ctx, step)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = x.IndexToolResult(ctx, model.Step{Thought: "thinking"})
	require.NoError(t, err)
	assert.False(t, ok)

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)
}

func TestResultQueue_DefersIndexing(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	x := NewIndexer(idx, embedding.NewHashEmbedder(0), nil, nil)

	q := x.Queue()
	q.Observe(model.Step{
		Action:      &model.Action{Tool: "fetch_url", Args: json.RawMessage(`{}`)},
		Observation: strPtr("page body"),
	})
	q.Observe(model.Step{Answer: strPtr("done")})
	assert.Equal(t, 1, q.Len())

	ids, err := idx.IDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids, "observing must not touch the index")

	flushed, err := q.Flush(ctx)
	require.NoError(t, err)
	require.Len(t, flushed, 1)
	assert.True(t, strings.HasPrefix(flushed[0], "tool://fetch_url/"))
	assert.Equal(t, 0, q.Len())

	ids, err = idx.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, flushed, ids)
}

func TestResultQueue_CanceledFlushKeepsSteps(t *testing.T) {
	x := NewIndexer(newTestIndex(t), embedding.NewHashEmbedder(0), nil, nil)
	q := x.Queue()
	q.Observe(model.Step{
		Action:      &model.Action{Tool: "fetch_url", Args: json.RawMessage(`{}`)},
		Observation: strPtr("page body"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Flush(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, q.Len())
}

func TestIndexer_SkipsIndexDerivedTools(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	emb := embedding.NewHashEmbedder(0)
	x := NewIndexer(idx, emb, nil, nil)
	const text = "vegan pasta primavera with zucchini and bell peppers"
	require.NoError(t, x.IndexResource(ctx, "res://vegan_pasta_primavera", text, nil))

	a := NewAssembler(idx, emb, DefaultConfig())
	out, err := NewSearchTool(a).Execute(ctx, json.RawMessage(`{"query":"vegan pasta primavera"}`))
	require.NoError(t, err)

	q := x.Queue()
	for _, tool := range []string{SearchToolName, ListToolName} {
		q.Observe(model.Step{
			Action:      &model.Action{Tool: tool, Args: json.RawMessage(`{"query":"vegan pasta primavera"}`)},
			Observation: strPtr(string(out)),
		})
	}
	flushed, err := q.Flush(ctx)
	require.NoError(t, err)
	assert.Empty(t, flushed)

	bundle := a.Build(ctx, "vegan pasta primavera zucchini", nil, nil)
	for _, r := range bundle.Resources {
		assert.False(t, strings.HasPrefix(r.ID, ToolResultScheme), "index copy %s packed", r.ID)
	}

	step := model.Step{
		Action:      &model.Action{Tool: "read_notes", Args: json.RawMessage(`{}`)},
		Observation: strPtr("notes"),
	}
	_, ok, err := x.SkipTools("read_notes").IndexToolResult(ctx, step)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIndexer_IndexDir(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "recipes"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "recipes", "green_curry.md"), []byte("Thai green curry"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("shopping list"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "image.png"), []byte{0x89, 0x50}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "empty.md"), nil, 0o644))

	idx := newTestIndex(t)
	x := NewIndexer(idx, embedding.NewHashEmbedder(0), nil, nil)

	got, err := x.IndexDir(ctx, root)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"res://recipes/green_curry", "res://notes"}, got)

	res, err := idx.Get(ctx, "res://recipes/green_curry")
	require.NoError(t, err)
	assert.Equal(t, "Thai green curry", res.Text)
	assert.Equal(t, "file", res.Metadata["source"])

	_, err = x.IndexDir(ctx, filepath.Join(root, "missing"))
	assert.Error(t, err)
}

func TestSearchTool(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	emb := embedding.NewHashEmbedder(0)
	x := NewIndexer(idx, emb, nil, nil)
	require.NoError(t, x.IndexResource(ctx, "res://bread", "sourdough bread starter feeding schedule", nil))

	tool := NewSearchTool(NewAssembler(idx, emb, DefaultConfig()))
	assert.Equal(t, "search_knowledge", tool.Descriptor().Name)

	out, err := tool.Execute(ctx, json.RawMessage(`{"query":"sourdough bread starter feeding schedule"}`))
	require.NoError(t, err)

	var res struct {
		Results []searchHit `json:"results"`
	}
	require.NoError(t, json.Unmarshal(out, &res))
	require.Len(t, res.Results, 1)
	assert.Equal(t, "res://bread", res.Results[0].ID)

	_, err = tool.Execute(ctx, json.RawMessage(`{"query":"  "}`))
	assert.Error(t, err)
}
