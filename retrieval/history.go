package retrieval

import (
	"strings"

	"github.com/richinex/theseus/llm"
)

// CompressHistory keeps important messages and the most recent ones,
// removes duplicates, then drops the oldest survivors until the estimate
// fits the budget. The input slice is not modified.
func CompressHistory(history []llm.ChatMessage, cfg Config) []llm.ChatMessage {
	cfg = cfg.normalized()
	if len(history) == 0 {
		return nil
	}

	recentStart := len(history) - cfg.RecentMessages
	keep := make([]bool, len(history))
	for i, msg := range history {
		keep[i] = i >= recentStart || isImportant(msg, cfg.CompletionMarkers)
	}

	// Keep the last occurrence of each (role, content) pair.
	type key struct{ role, content string }
	seen := make(map[key]bool)
	for i := len(history) - 1; i >= 0; i-- {
		if !keep[i] {
			continue
		}
		k := key{history[i].Role, history[i].Content}
		if seen[k] {
			keep[i] = false
			continue
		}
		seen[k] = true
	}

	var out []llm.ChatMessage
	total := 0
	for i, msg := range history {
		if keep[i] {
			out = append(out, msg)
			total += EstimateTokens(msg.Content)
		}
	}

	for len(out) > 0 && total > cfg.HistoryBudget {
		total -= EstimateTokens(out[0].Content)
		out = out[1:]
	}
	if len(out) == 0 {
		return nil
	}
	return append([]llm.ChatMessage(nil), out...)
}

func isImportant(msg llm.ChatMessage, markers []string) bool {
	if msg.Role != llm.RoleUser && msg.Role != llm.RoleAssistant {
		return true
	}
	lower := strings.ToLower(msg.Content)
	for _, m := range markers {
		if m != "" && strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
