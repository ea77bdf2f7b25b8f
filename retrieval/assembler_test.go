package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/richinex/theseus/llm"
	"github.com/richinex/theseus/storage"
	"github.com/richinex/theseus/tools"
)

type fakeEmbedder struct {
	err     error
	queries []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.queries = append(f.queries, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0}, nil
}

type fakeSearcher struct {
	cands     []storage.Candidate
	err       error
	limit     int
	threshold float64
}

func (f *fakeSearcher) Search(_ context.Context, _ []float32, limit int, threshold float64) ([]storage.Candidate, error) {
	f.limit, f.threshold = limit, threshold
	if f.err != nil {
		return nil, f.err
	}
	out := make([]storage.Candidate, 0, len(f.cands))
	for _, c := range f.cands {
		if c.Score >= threshold {
			out = append(out, c)
		}
	}
	return out, nil
}

type mapReader map[string]string

func (m mapReader) ReadResource(_ context.Context, id string) (string, error) {
	text, ok := m[id]
	if !ok {
		return "", storage.ErrNotFound
	}
	return text, nil
}

func ids(rs []Resource) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestRank_BoostAppliesBeforeThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Threshold = 0.8
	cfg.RecencyBoost = 0.4

	cands := []storage.Candidate{
		{ID: "res://weeknight_pasta", Score: 0.5},
		{ID: "res://salad", Score: 0.79},
	}
	refs := recentReferences([]llm.ChatMessage{llm.AssistantMessage("Try weeknight_pasta tonight.")})

	got := rank(cands, refs, cfg)
	require.Len(t, got, 1)
	assert.Equal(t, "res://weeknight_pasta", got[0].ID)
	assert.InDelta(t, 0.9, got[0].Score, 1e-9)
}

func TestRank_BoostMatchesLastPathSegment(t *testing.T) {
	cfg := DefaultConfig()
	cands := []storage.Candidate{
		{ID: "res://recipes/vegan-pasta-primavera", Score: 0.5},
		{ID: "res://chef/lentil-soup", Score: 0.5},
		{ID: "res://recipes/", Score: 0.5},
	}
	refs := recentReferences([]llm.ChatMessage{
		llm.AssistantMessage("The vegan-pasta-primavera recipe takes 25 minutes."),
	})

	got := rank(cands, refs, cfg)
	require.Len(t, got, 3)
	assert.Equal(t, "res://recipes/vegan-pasta-primavera", got[0].ID)
	assert.InDelta(t, 0.8, got[0].Score, 1e-9)
	assert.InDelta(t, 0.5, got[1].Score, 1e-9)
	assert.InDelta(t, 0.5, got[2].Score, 1e-9)
}

func TestRank_CapsAndNearCertainty(t *testing.T) {
	cfg := DefaultConfig()
	cands := []storage.Candidate{
		{ID: "res://a", Score: 0.9},
		{ID: "res://b", Score: 0.85},
		{ID: "res://c", Score: 0.4},
	}

	got := rank(cands, map[string]bool{"res://a": true}, cfg)
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].Score)

	got = rank(cands, nil, cfg)
	assert.Len(t, got, 3)

	cfg.TopK = 2
	got = rank(cands, nil, cfg)
	require.Len(t, got, 2)
	assert.Equal(t, "res://a", got[0].ID)
	assert.Equal(t, "res://b", got[1].ID)
}

func TestRecentReferences(t *testing.T) {
	history := []llm.ChatMessage{
		llm.UserMessage("old message mentions res://ancient"),
		llm.UserMessage("one"),
		llm.AssistantMessage("see res://recipes/green_curry."),
		llm.UserMessage("and the thai-basil variant"),
	}
	refs := recentReferences(history)

	assert.True(t, refs["res://recipes/green_curry"])
	assert.True(t, refs["recipes/green_curry"])
	assert.True(t, refs["thai-basil"])
	assert.True(t, refs["green_curry"])
	assert.False(t, refs["res://ancient"])
}

func TestAssembler_BuildPacksResources(t *testing.T) {
	searcher := &fakeSearcher{cands: []storage.Candidate{
		{ID: "res://primavera", Score: 0.7, Text: "Vegan Pasta Primavera: zucchini, peppers, pasta."},
		{ID: "res://zucchini_subs", Score: 0.5, Text: "Swap zucchini for summer squash or eggplant."},
		{ID: "res://unrelated", Score: 0.2, Text: "Tax filing tips"},
	}}
	emb := &fakeEmbedder{}
	a := NewAssembler(searcher, emb, DefaultConfig())

	history := []llm.ChatMessage{
		llm.UserMessage("Suggest a vegan dinner"),
		llm.AssistantMessage("I recommend the Vegan Pasta Primavera recipe."),
	}
	catalog := []tools.Descriptor{{Name: "search_knowledge"}}

	bundle := a.Build(context.Background(), "can I substitute the zucchini?", history, catalog)

	assert.Equal(t, "can I substitute the zucchini? Vegan Pasta Primavera", bundle.EnhancedQuery)
	assert.Equal(t, []string{bundle.EnhancedQuery}, emb.queries)
	assert.Equal(t, 9, searcher.limit)
	assert.Equal(t, 0.1, searcher.threshold)

	assert.Equal(t, []string{"res://primavera", "res://zucchini_subs"}, ids(bundle.Resources))
	assert.Equal(t, catalog, bundle.Tools)
	assert.Equal(t, history, bundle.History)
	assert.Equal(t, 1000, bundle.Usage.Reserve)
	assert.Positive(t, bundle.Usage.ResourceTokens)
	assert.Positive(t, bundle.Usage.HistoryTokens)
}

func TestAssembler_RetrievalErrorsYieldEmptyResources(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logger := zap.New(core)

	a := NewAssembler(&fakeSearcher{}, &fakeEmbedder{err: errors.New("model offline")}, DefaultConfig(), WithLogger(logger))
	bundle := a.Build(context.Background(), "pasta", nil, nil)
	assert.Empty(t, bundle.Resources)

	a = NewAssembler(&fakeSearcher{err: errors.New("disk on fire")}, &fakeEmbedder{}, DefaultConfig(), WithLogger(logger))
	bundle = a.Build(context.Background(), "pasta", nil, nil)
	assert.Empty(t, bundle.Resources)

	assert.Equal(t, 1, logs.FilterMessage("retrieval skipped: embedding failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("retrieval skipped: search failed").Len())
}

func TestAssembler_TruncatesPartiallyFittingResource(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ResourceBudget = 100
	cfg.MinResourceTokens = 20

	searcher := &fakeSearcher{cands: []storage.Candidate{
		{ID: "res://a", Score: 0.9, Text: strings.Repeat("a", 280)}, // 70 tokens
		{ID: "res://b", Score: 0.8, Text: strings.Repeat("b", 400)}, // 100 tokens
		{ID: "res://c", Score: 0.7, Text: "c"},
	}}
	a := NewAssembler(searcher, &fakeEmbedder{}, cfg)
	bundle := a.Build(context.Background(), "q", nil, nil)

	require.Equal(t, []string{"res://a", "res://b"}, ids(bundle.Resources))
	assert.False(t, bundle.Resources[0].Truncated)
	assert.True(t, bundle.Resources[1].Truncated)
	assert.Equal(t, strings.Repeat("b", 120), bundle.Resources[1].Text)
	assert.Equal(t, 100, bundle.Usage.ResourceTokens)

	cfg.MinResourceTokens = 40
	bundle = NewAssembler(searcher, &fakeEmbedder{}, cfg).Build(context.Background(), "q", nil, nil)
	assert.Equal(t, []string{"res://a"}, ids(bundle.Resources))
}

func TestAssembler_TextSources(t *testing.T) {
	searcher := &fakeSearcher{cands: []storage.Candidate{
		{ID: "res://cached", Score: 0.9, Text: "stale"},
		{ID: "res://remote", Score: 0.8},
		{ID: "res://missing", Score: 0.7},
	}}
	reader := mapReader{"res://remote": "fetched text"}
	a := NewAssembler(searcher, &fakeEmbedder{}, DefaultConfig(), WithResourceReader(reader))
	a.Cache().Put("res://cached", "fresh")

	bundle := a.Build(context.Background(), "q", nil, nil)
	require.Equal(t, []string{"res://cached", "res://remote"}, ids(bundle.Resources))
	assert.Equal(t, "fresh", bundle.Resources[0].Text)
	assert.Equal(t, "fetched text", bundle.Resources[1].Text)

	text, ok := a.Cache().Get("res://remote")
	assert.True(t, ok)
	assert.Equal(t, "fetched text", text)
}

func TestAssembler_DeduplicatesByID(t *testing.T) {
	searcher := &fakeSearcher{cands: []storage.Candidate{
		{ID: "res://a", Score: 0.9, Text: "first"},
		{ID: "res://a", Score: 0.6, Text: "second"},
	}}
	bundle := NewAssembler(searcher, &fakeEmbedder{}, DefaultConfig()).Build(context.Background(), "q", nil, nil)
	require.Len(t, bundle.Resources, 1)
	assert.Equal(t, "first", bundle.Resources[0].Text)
}

func TestAssembler_ToolSelector(t *testing.T) {
	catalog := []tools.Descriptor{{Name: "a"}, {Name: "b"}}
	a := NewAssembler(nil, nil, DefaultConfig(), WithToolSelector(func(_ string, c []tools.Descriptor) []tools.Descriptor {
		return c[:1]
	}))
	bundle := a.Build(context.Background(), "q", nil, catalog)
	assert.Equal(t, []tools.Descriptor{{Name: "a"}}, bundle.Tools)
	assert.Empty(t, bundle.Resources)
}

func TestAssembler_PackingStaysWithinBudget(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("packed resources never exceed the budget", prop.ForAll(
		func(sizes []int, budget int) bool {
			cands := make([]storage.Candidate, len(sizes))
			for i, n := range sizes {
				cands[i] = storage.Candidate{
					ID:    "res://" + strings.Repeat("x", i+1),
					Score: 0.9 - float64(i)*0.001,
					Text:  strings.Repeat("y", n),
				}
			}
			cfg := DefaultConfig()
			cfg.TopK = len(sizes) + 1
			cfg.ResourceBudget = budget
			a := NewAssembler(&fakeSearcher{cands: cands}, &fakeEmbedder{}, cfg)
			bundle := a.Build(context.Background(), "q", nil, nil)

			total := 0
			for i, r := range bundle.Resources {
				total += EstimateTokens(r.Text)
				if r.Truncated && i != len(bundle.Resources)-1 {
					return false
				}
			}
			return total <= budget
		},
		gen.SliceOfN(8, gen.IntRange(1, 2000)),
		gen.IntRange(1, 1500),
	))

	properties.TestingRun(t)
}

func TestConfigNormalizedKeepsTunableZeros(t *testing.T) {
	got := NewAssembler(nil, nil, Config{}).Config()
	d := DefaultConfig()

	assert.Equal(t, d.TopK, got.TopK)
	assert.Equal(t, d.ResourceBudget, got.ResourceBudget)
	assert.Equal(t, d.NearCertainty, got.NearCertainty)
	assert.Zero(t, got.Threshold)
	assert.Zero(t, got.SearchFloor)
	assert.Zero(t, got.RecencyBoost)
	assert.False(t, got.PreferSharedToken)
}

func TestResourceCache_TTL(t *testing.T) {
	clock := time.Unix(1000, 0)
	c := NewResourceCache(8, time.Minute)
	c.now = func() time.Time { return clock }

	c.Put("res://a", "text")
	got, ok := c.Get("res://a")
	require.True(t, ok)
	assert.Equal(t, "text", got)
	assert.Equal(t, 1, c.Len())

	clock = clock.Add(2 * time.Minute)
	_, ok = c.Get("res://a")
	assert.False(t, ok, "entries older than the TTL are misses")

	c.Put("res://b", "x")
	c.Put("res://c", "y")
	clock = clock.Add(2 * time.Minute)
	assert.Equal(t, 0, c.Len())

	c.Put("res://b", "x")
	c.Invalidate("res://b")
	_, ok = c.Get("res://b")
	assert.False(t, ok)
}

func TestResourceCache_ZeroTTLNeverExpires(t *testing.T) {
	clock := time.Unix(0, 0)
	c := NewResourceCache(0, 0)
	c.now = func() time.Time { return clock }

	c.Put("res://a", "text")
	clock = clock.Add(24 * time.Hour)
	got, ok := c.Get("res://a")
	require.True(t, ok)
	assert.Equal(t, "text", got)
}

func TestResourceCache_StartsNoGoroutine(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	a := NewAssembler(&fakeSearcher{}, &fakeEmbedder{}, DefaultConfig())
	a.Cache().Put("res://a", "text")
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))

	assert.Equal(t, "aé", truncateToTokens("aéé", 1))
	assert.Equal(t, "abcd", truncateToTokens("abcd", 1))
	assert.Equal(t, "", truncateToTokens("abcd", 0))
}
