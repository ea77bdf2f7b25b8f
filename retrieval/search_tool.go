package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/richinex/theseus/tools"
)

// SearchToolName is the name the search tool registers under.
const SearchToolName = "search_knowledge"

// SearchTool lets the model query the knowledge index directly.
type SearchTool struct {
	assembler *Assembler
}

// NewSearchTool creates the search_knowledge tool.
func NewSearchTool(a *Assembler) *SearchTool {
	return &SearchTool{assembler: a}
}

// Descriptor returns the tool descriptor.
func (t *SearchTool) Descriptor() tools.Descriptor {
	return tools.Descriptor{
		Name:        SearchToolName,
		Description: "Search the local knowledge base for resources relevant to a query",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "What to look for"},
				"limit": {"type": "integer", "minimum": 1, "maximum": 20, "description": "Maximum number of results"}
			},
			"required": ["query"]
		}`),
	}
}

type searchArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type searchHit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	Text  string  `json:"text"`
}

// Execute runs a retrieval pass without history and returns the hits.
func (t *SearchTool) Execute(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var a searchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", tools.ErrInvalidArguments, err)
	}
	if strings.TrimSpace(a.Query) == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", tools.ErrInvalidArguments)
	}

	cands := t.assembler.Retrieve(ctx, a.Query, nil)
	if a.Limit > 0 && len(cands) > a.Limit {
		cands = cands[:a.Limit]
	}

	hits := make([]searchHit, 0, len(cands))
	for _, r := range t.assembler.materialize(ctx, cands) {
		hits = append(hits, searchHit{ID: r.ID, Score: r.Score, Text: r.Text})
	}
	return json.Marshal(map[string]any{"results": hits})
}

var _ tools.Tool = (*SearchTool)(nil)
