package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/armon/go-radix"

	"github.com/richinex/theseus/tools"
)

// CatalogEntry names one indexed resource.
type CatalogEntry struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// Catalog lists indexed resource identifiers by prefix. Identifiers share
// long scheme and directory prefixes, so they are kept in a radix tree.
// Safe for concurrent use.
type Catalog struct {
	mu   sync.RWMutex
	tree *radix.Tree
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{tree: radix.New()}
}

// Add records id, replacing any previous title.
func (c *Catalog) Add(id, title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tree.Insert(id, title)
}

// Remove drops id. It reports whether id was present.
func (c *Catalog) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.tree.Delete(id)
	return ok
}

// List returns entries whose identifier starts with prefix, in lexical order.
func (c *Catalog) List(prefix string) []CatalogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []CatalogEntry
	c.tree.WalkPrefix(prefix, func(k string, v interface{}) bool {
		title, _ := v.(string)
		out = append(out, CatalogEntry{ID: k, Title: title})
		return false
	})
	return out
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tree.Len()
}

// titleFor picks a display title from metadata or the first line of text.
func titleFor(text string, metadata map[string]any) string {
	for _, key := range []string{"title", "name"} {
		if s, ok := metadata[key].(string); ok && s != "" {
			return s
		}
	}
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	return truncateToTokens(strings.TrimLeft(line, "# "), 15)
}

// ListToolName is the name the catalog listing tool registers under.
const ListToolName = "list_resources"

// ListTool exposes the catalog to the model.
type ListTool struct {
	catalog *Catalog
	limit   int
}

// NewListTool creates the resource listing tool.
func NewListTool(c *Catalog) *ListTool {
	return &ListTool{catalog: c, limit: 50}
}

// Descriptor returns the tool descriptor.
func (t *ListTool) Descriptor() tools.Descriptor {
	return tools.Descriptor{
		Name:        ListToolName,
		Description: "List identifiers of indexed knowledge resources, optionally filtered by prefix such as res://recipes/",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"prefix": {"type": "string", "description": "Identifier prefix to filter by"}
			}
		}`),
	}
}

// Execute lists matching entries, capped at the tool's limit.
func (t *ListTool) Execute(_ context.Context, args json.RawMessage) (json.RawMessage, error) {
	var in struct {
		Prefix string `json:"prefix"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", tools.ErrInvalidArguments, err)
	}

	entries := t.catalog.List(in.Prefix)
	total := len(entries)
	if len(entries) > t.limit {
		entries = entries[:t.limit]
	}
	if entries == nil {
		entries = []CatalogEntry{}
	}
	return json.Marshal(map[string]any{
		"resources": entries,
		"total":     total,
	})
}
