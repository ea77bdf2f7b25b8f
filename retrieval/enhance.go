package retrieval

import (
	"regexp"
	"strings"

	"github.com/richinex/theseus/llm"
)

// ResourceScheme prefixes identifiers of knowledge resources.
const ResourceScheme = "res://"

// followUpWords mark a query that leans on earlier turns.
var followUpWords = map[string]bool{
	"it": true, "it's": true, "its": true, "this": true, "that": true, "these": true,
	"those": true, "they": true, "them": true, "one": true, "also": true,
	"same": true, "another": true, "else": true, "more": true, "instead": true,
}

var followUpPhrases = []string{"can i", "what about", "how about"}

var (
	wordPattern        = regexp.MustCompile(`[a-z0-9']+`)
	capitalizedPhrase  = regexp.MustCompile(`\b[A-Z][a-z0-9']+(?:\s+[A-Z][a-z0-9']+)+\b`)
	resourceIDPattern  = regexp.MustCompile(`res://[A-Za-z0-9_\-./]+`)
	quotedPattern      = regexp.MustCompile(`"([^"]+)"|“([^”]+)”`)
	leadingDeterminers = []string{"The ", "A ", "An ", "This ", "Here "}
)

// lookback is how many trailing messages query enhancement inspects.
const lookback = 2

// EnhanceQuery expands a follow-up query with a subject mentioned in the
// last two messages. Queries without follow-up cues, or with no history,
// are returned unchanged. The result is meant for embedding lookup only.
func EnhanceQuery(query string, history []llm.ChatMessage, preferShared bool) string {
	if len(history) == 0 || !isFollowUp(query) {
		return query
	}

	lowerQuery := strings.ToLower(query)
	queryTokens := contentTokens(lowerQuery)

	var first string
	for i := len(history) - 1; i >= 0 && i >= len(history)-lookback; i-- {
		for _, cand := range subjectCandidates(history[i].Content) {
			if strings.Contains(lowerQuery, strings.ToLower(cand)) {
				continue
			}
			if first == "" {
				first = cand
				if !preferShared {
					return query + " " + first
				}
			}
			if sharesToken(queryTokens, cand) {
				return query + " " + cand
			}
		}
	}

	if first == "" {
		return query
	}
	return query + " " + first
}

func isFollowUp(query string) bool {
	lower := strings.ToLower(query)
	for _, w := range wordPattern.FindAllString(lower, -1) {
		if followUpWords[w] {
			return true
		}
	}
	for _, p := range followUpPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// subjectCandidates lists possible subjects of a message in preference
// order: capitalized phrases, resource identifiers, quoted strings.
func subjectCandidates(text string) []string {
	var out []string
	for _, m := range capitalizedPhrase.FindAllString(text, -1) {
		for _, d := range leadingDeterminers {
			m = strings.TrimPrefix(m, d)
		}
		if strings.Contains(m, " ") {
			out = append(out, m)
		}
	}
	for _, m := range resourceIDPattern.FindAllString(text, -1) {
		if words := idToWords(m); words != "" {
			out = append(out, words)
		}
	}
	for _, m := range quotedPattern.FindAllStringSubmatch(text, -1) {
		q := m[1]
		if q == "" {
			q = m[2]
		}
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	return out
}

// idToWords turns res://vegan_pasta-primavera into "vegan pasta primavera".
func idToWords(id string) string {
	s := strings.TrimPrefix(id, ResourceScheme)
	s = strings.NewReplacer("_", " ", "-", " ", "/", " ", ".", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

func contentTokens(lower string) map[string]bool {
	tokens := make(map[string]bool)
	for _, w := range wordPattern.FindAllString(lower, -1) {
		if !stopwords[w] {
			tokens[w] = true
		}
	}
	return tokens
}

func sharesToken(queryTokens map[string]bool, candidate string) bool {
	for _, w := range wordPattern.FindAllString(strings.ToLower(candidate), -1) {
		if queryTokens[w] {
			return true
		}
	}
	return false
}
