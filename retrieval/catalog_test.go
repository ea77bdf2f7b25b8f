package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/theseus/embedding"
	"github.com/richinex/theseus/storage"
	"github.com/richinex/theseus/tools"
)

func TestCatalogListByPrefix(t *testing.T) {
	c := NewCatalog()
	c.Add("res://recipes/soup", "Soup")
	c.Add("res://recipes/bread", "Bread")
	c.Add("res://notes/todo", "")
	c.Add("res://recipes/soup", "Tomato Soup")

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []CatalogEntry{
		{ID: "res://recipes/bread", Title: "Bread"},
		{ID: "res://recipes/soup", Title: "Tomato Soup"},
	}, c.List("res://recipes/"))
	assert.Len(t, c.List(""), 3)
	assert.Empty(t, c.List("tool://"))

	assert.True(t, c.Remove("res://notes/todo"))
	assert.False(t, c.Remove("res://notes/todo"))
	assert.Equal(t, 2, c.Len())
}

func TestTitleFor(t *testing.T) {
	assert.Equal(t, "Given", titleFor("body", map[string]any{"title": "Given"}))
	assert.Equal(t, "Named", titleFor("body", map[string]any{"name": "Named"}))
	assert.Equal(t, "Pasta Primavera", titleFor("# Pasta Primavera\nzucchini", nil))
	assert.Len(t, titleFor(fmt.Sprintf("%0100d", 0), nil), 60)
}

func TestIndexerRecordsCatalog(t *testing.T) {
	ctx := context.Background()
	idx, err := storage.NewVectorIndex()
	require.NoError(t, err)
	defer idx.Close()

	c := NewCatalog()
	x := NewIndexer(idx, embedding.NewHashEmbedder(0), nil, nil).WithCatalog(c)
	require.NoError(t, x.IndexResource(ctx, "res://recipes/soup", "Tomato soup\nwith basil", nil))

	assert.Equal(t, []CatalogEntry{{ID: "res://recipes/soup", Title: "Tomato soup"}}, c.List(""))
}

func TestListTool(t *testing.T) {
	c := NewCatalog()
	for i := 0; i < 60; i++ {
		c.Add(fmt.Sprintf("res://items/%02d", i), "")
	}
	c.Add("res://other", "Other")

	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(NewListTool(c)))

	out, err := reg.Call(context.Background(), "list_resources", json.RawMessage(`{"prefix":"res://items/"}`))
	require.NoError(t, err)

	var got struct {
		Resources []CatalogEntry `json:"resources"`
		Total     int            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, 60, got.Total)
	assert.Len(t, got.Resources, 50)
	assert.Equal(t, "res://items/00", got.Resources[0].ID)

	out, err = reg.Call(context.Background(), "list_resources", nil)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, 61, got.Total)

	out, err = reg.Call(context.Background(), "list_resources", json.RawMessage(`{"prefix":"none://"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"resources":[],"total":0}`, string(out))

	_, err = reg.Call(context.Background(), "list_resources", json.RawMessage(`{"prefix":3}`))
	assert.ErrorIs(t, err, tools.ErrInvalidArguments)
}
