// Package retrieval assembles the per-turn context of a reasoning run.
//
// Information Hiding:
// - Query rewriting heuristics hidden
// - Ranking policy (over-fetch, recency boost, near-certainty cutoff) hidden
// - Token budgeting and history compression hidden
package retrieval

import (
	"context"

	"go.uber.org/zap"

	"github.com/richinex/theseus/embedding"
	"github.com/richinex/theseus/llm"
	"github.com/richinex/theseus/storage"
	"github.com/richinex/theseus/tools"
)

// Searcher finds stored resources similar to a query vector.
type Searcher interface {
	Search(ctx context.Context, query []float32, limit int, threshold float64) ([]storage.Candidate, error)
}

// ResourceReader loads resource text that is neither cached nor stored
// alongside the candidate.
type ResourceReader interface {
	ReadResource(ctx context.Context, id string) (string, error)
}

// ToolSelector narrows the tool catalog for a query.
type ToolSelector func(query string, catalog []tools.Descriptor) []tools.Descriptor

// Resource is a knowledge snippet packed into the turn's context.
type Resource struct {
	ID        string
	Score     float64
	Text      string
	Truncated bool
}

// Usage reports estimated token consumption of a bundle.
type Usage struct {
	ResourceTokens int
	HistoryTokens  int
	Reserve        int
}

// ConversationContext is the bundle handed to the reasoning loop for one turn.
type ConversationContext struct {
	Resources     []Resource
	History       []llm.ChatMessage
	Tools         []tools.Descriptor
	EnhancedQuery string
	Usage         Usage
}

// Assembler builds ConversationContext values from an index and an embedder.
type Assembler struct {
	index    Searcher
	embedder embedding.Embedder
	cfg      Config
	cache    *ResourceCache
	reader   ResourceReader
	selector ToolSelector
	logger   *zap.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithResourceReader sets the fallback used when a candidate carries no text.
func WithResourceReader(r ResourceReader) Option {
	return func(a *Assembler) { a.reader = r }
}

// WithToolSelector replaces the pass-through tool selection.
func WithToolSelector(s ToolSelector) Option {
	return func(a *Assembler) { a.selector = s }
}

// WithCache shares a cache, typically with an Indexer.
func WithCache(c *ResourceCache) Option {
	return func(a *Assembler) { a.cache = c }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Assembler) { a.logger = logger }
}

// NewAssembler creates an assembler. Zero counts, budgets and cache
// settings in cfg take defaults. Threshold, SearchFloor, RecencyBoost and
// PreferSharedToken are used as given, where zero is meaningful, so build
// cfg from DefaultConfig rather than a literal.
func NewAssembler(index Searcher, embedder embedding.Embedder, cfg Config, opts ...Option) *Assembler {
	a := &Assembler{
		index:    index,
		embedder: embedder,
		cfg:      cfg.normalized(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.cache == nil {
		a.cache = NewResourceCache(a.cfg.CacheSize, a.cfg.CacheTTL)
	}
	if a.selector == nil {
		a.selector = func(_ string, catalog []tools.Descriptor) []tools.Descriptor { return catalog }
	}
	return a
}

// Config returns the effective configuration.
func (a *Assembler) Config() Config {
	return a.cfg
}

// Cache returns the resource text cache.
func (a *Assembler) Cache() *ResourceCache {
	return a.cache
}

// Build assembles the context for one user turn. Retrieval failures are
// logged and produce an empty resource set; Build itself never fails.
func (a *Assembler) Build(ctx context.Context, query string, history []llm.ChatMessage, catalog []tools.Descriptor) ConversationContext {
	enhanced := EnhanceQuery(query, history, a.cfg.PreferSharedToken)
	if enhanced != query {
		a.logger.Debug("query enhanced",
			zap.String("query", query),
			zap.String("enhanced", enhanced),
		)
	}

	resources := a.materialize(ctx, a.Retrieve(ctx, enhanced, history))
	compressed := CompressHistory(history, a.cfg)

	usage := Usage{Reserve: a.cfg.Reserve}
	for _, r := range resources {
		usage.ResourceTokens += EstimateTokens(r.Text)
	}
	for _, m := range compressed {
		usage.HistoryTokens += EstimateTokens(m.Content)
	}

	return ConversationContext{
		Resources:     resources,
		History:       compressed,
		Tools:         a.selector(query, catalog),
		EnhancedQuery: enhanced,
		Usage:         usage,
	}
}

// Retrieve embeds query and returns ranked candidates, boosting those
// referenced in recent history. Errors are logged and yield nil.
func (a *Assembler) Retrieve(ctx context.Context, query string, history []llm.ChatMessage) []storage.Candidate {
	if a.index == nil || a.embedder == nil {
		return nil
	}

	vec, err := a.embedder.Embed(ctx, query)
	if err != nil {
		a.logger.Warn("retrieval skipped: embedding failed", zap.Error(err))
		return nil
	}

	cands, err := a.index.Search(ctx, vec, a.cfg.TopK*a.cfg.OverFetch, a.cfg.SearchFloor)
	if err != nil {
		a.logger.Warn("retrieval skipped: search failed", zap.Error(err))
		return nil
	}

	return rank(cands, recentReferences(history), a.cfg)
}

// materialize resolves candidate text and packs it into the resource budget.
func (a *Assembler) materialize(ctx context.Context, cands []storage.Candidate) []Resource {
	var out []Resource
	seen := make(map[string]bool)
	remaining := a.cfg.ResourceBudget

	for _, c := range cands {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true

		text, ok := a.text(ctx, c)
		if !ok {
			continue
		}

		cost := EstimateTokens(text)
		if cost <= remaining {
			out = append(out, Resource{ID: c.ID, Score: c.Score, Text: text})
			remaining -= cost
			continue
		}

		if remaining >= a.cfg.MinResourceTokens {
			out = append(out, Resource{
				ID:        c.ID,
				Score:     c.Score,
				Text:      truncateToTokens(text, remaining),
				Truncated: true,
			})
		}
		break
	}
	return out
}

func (a *Assembler) text(ctx context.Context, c storage.Candidate) (string, bool) {
	if text, ok := a.cache.Get(c.ID); ok {
		return text, true
	}
	if c.Text != "" {
		a.cache.Put(c.ID, c.Text)
		return c.Text, true
	}
	if a.reader == nil {
		return "", false
	}
	text, err := a.reader.ReadResource(ctx, c.ID)
	if err != nil {
		a.logger.Warn("resource read failed", zap.String("id", c.ID), zap.Error(err))
		return "", false
	}
	a.cache.Put(c.ID, text)
	return text, true
}
