package retrieval

import "unicode/utf8"

// charsPerToken is the rough size of a token in bytes of English text.
const charsPerToken = 4

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int {
	return (len(text) + charsPerToken - 1) / charsPerToken
}

// truncateToTokens cuts text to at most tokens estimated tokens,
// never splitting a UTF-8 sequence.
func truncateToTokens(text string, tokens int) string {
	limit := tokens * charsPerToken
	if limit <= 0 {
		return ""
	}
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
