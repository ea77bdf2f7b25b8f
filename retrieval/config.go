// Context assembler configuration.
//
// Information Hiding:
// - Default budgets and cutoffs hidden
// - Normalization of partial configs hidden

package retrieval

import "time"

// Config holds the tuning knobs of the context assembler.
// Pass it explicitly to NewAssembler; there is no package-level state.
type Config struct {
	// TopK is the number of resources returned after ranking.
	TopK int
	// Threshold is the minimum (possibly boosted) score a resource needs.
	Threshold float64
	// SearchFloor is the low similarity floor used for the first search pass
	// so that weaker candidates can still be lifted by the recency boost.
	SearchFloor float64
	// OverFetch multiplies TopK for the first search pass. Values below 3 are raised to 3.
	OverFetch int
	// RecencyBoost is added to candidates referenced in recent messages.
	RecencyBoost float64
	// NearCertainty returns only the top resource when its score reaches it.
	NearCertainty float64
	// PreferSharedToken makes query enhancement pick the first candidate
	// sharing a word with the query before falling back to the most recent one.
	PreferSharedToken bool

	CacheTTL  time.Duration
	CacheSize int

	ResourceBudget int // tokens
	HistoryBudget  int // tokens
	Reserve        int // tokens kept for system prompt and response

	// MinResourceTokens is the smallest truncated resource worth including.
	MinResourceTokens int
	// RecentMessages is how many trailing messages history compression always keeps.
	RecentMessages int
	// CompletionMarkers flag messages as important regardless of age.
	CompletionMarkers []string
}

// DefaultConfig returns the default assembler configuration.
func DefaultConfig() Config {
	return Config{
		TopK:              3,
		Threshold:         0.3,
		SearchFloor:       0.1,
		OverFetch:         3,
		RecencyBoost:      0.3,
		NearCertainty:     0.95,
		PreferSharedToken: true,
		CacheTTL:          5 * time.Minute,
		CacheSize:         256,
		ResourceBudget:    800,
		HistoryBudget:     1200,
		Reserve:           1000,
		MinResourceTokens: 50,
		RecentMessages:    6,
		CompletionMarkers: []string{"final answer", "task complete", "completed successfully"},
	}
}

// normalized fills zero counts, budgets and cache settings from
// DefaultConfig. Threshold, SearchFloor, RecencyBoost and PreferSharedToken
// are kept as given: zero there is a valid choice.
func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.TopK <= 0 {
		c.TopK = d.TopK
	}
	if c.OverFetch < 3 {
		c.OverFetch = 3
	}
	if c.NearCertainty <= 0 {
		c.NearCertainty = d.NearCertainty
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = d.CacheTTL
	}
	if c.CacheSize <= 0 {
		c.CacheSize = d.CacheSize
	}
	if c.ResourceBudget <= 0 {
		c.ResourceBudget = d.ResourceBudget
	}
	if c.HistoryBudget <= 0 {
		c.HistoryBudget = d.HistoryBudget
	}
	if c.Reserve <= 0 {
		c.Reserve = d.Reserve
	}
	if c.MinResourceTokens <= 0 {
		c.MinResourceTokens = d.MinResourceTokens
	}
	if c.RecentMessages <= 0 {
		c.RecentMessages = d.RecentMessages
	}
	if c.CompletionMarkers == nil {
		c.CompletionMarkers = d.CompletionMarkers
	}
	return c
}
