package retrieval

import (
	"regexp"
	"sort"
	"strings"

	"github.com/richinex/theseus/llm"
	"github.com/richinex/theseus/storage"
)

// recencyWindow is how many trailing messages feed the recency boost.
const recencyWindow = 3

var identifierPattern = regexp.MustCompile(`\b[a-z0-9]+(?:[_-][a-z0-9]+)+\b`)

// recentReferences collects identifiers mentioned in the last few messages:
// full resource URIs and snake- or kebab-case tokens.
func recentReferences(history []llm.ChatMessage) map[string]bool {
	refs := make(map[string]bool)
	start := len(history) - recencyWindow
	if start < 0 {
		start = 0
	}
	for _, msg := range history[start:] {
		for _, id := range resourceIDPattern.FindAllString(msg.Content, -1) {
			id = strings.TrimRight(id, "./")
			refs[id] = true
			refs[strings.TrimPrefix(id, ResourceScheme)] = true
		}
		for _, tok := range identifierPattern.FindAllString(msg.Content, -1) {
			refs[tok] = true
		}
	}
	return refs
}

// referenced reports whether id was mentioned, either in full, without its
// scheme, or by its last path segment (res://recipes/green_curry is
// referenced by "green_curry").
func referenced(id string, refs map[string]bool) bool {
	if len(refs) == 0 {
		return false
	}
	bare := strings.TrimPrefix(id, ResourceScheme)
	if refs[id] || refs[bare] {
		return true
	}
	if i := strings.LastIndexByte(bare, '/'); i >= 0 && i < len(bare)-1 {
		return refs[bare[i+1:]]
	}
	return false
}

// rank applies the recency boost, filters by threshold and orders the
// candidates. A top score at or above the near-certainty cutoff returns
// that candidate alone; otherwise at most topK remain.
func rank(cands []storage.Candidate, refs map[string]bool, cfg Config) []storage.Candidate {
	out := make([]storage.Candidate, 0, len(cands))
	for _, c := range cands {
		if referenced(c.ID, refs) {
			c.Score = min(1.0, c.Score+cfg.RecencyBoost)
		}
		if c.Score >= cfg.Threshold {
			out = append(out, c)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })

	if len(out) > 0 && out[0].Score >= cfg.NearCertainty {
		return out[:1]
	}
	if len(out) > cfg.TopK {
		out = out[:cfg.TopK]
	}
	return out
}
