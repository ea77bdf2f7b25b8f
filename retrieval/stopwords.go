package retrieval

// stopwords are ignored when matching a query against enhancement
// candidates, so that "the" or "can" never counts as a shared subject.
var stopwords = map[string]bool{
	"a": true, "about": true, "all": true, "also": true, "am": true, "an": true,
	"and": true, "any": true, "are": true, "as": true, "at": true, "be": true,
	"but": true, "by": true, "can": true, "could": true, "did": true, "do": true,
	"does": true, "for": true, "from": true, "had": true, "has": true, "have": true,
	"how": true, "i": true, "if": true, "in": true, "into": true, "is": true,
	"it": true, "it's": true, "its": true, "me": true, "more": true, "my": true,
	"no": true, "not": true, "of": true, "on": true, "one": true, "or": true,
	"our": true, "same": true, "should": true, "so": true, "some": true,
	"than": true, "that": true, "the": true, "their": true, "them": true,
	"then": true, "there": true, "these": true, "they": true, "this": true,
	"those": true, "to": true, "too": true, "us": true, "was": true, "we": true,
	"were": true, "what": true, "when": true, "where": true, "which": true,
	"who": true, "why": true, "will": true, "with": true, "would": true,
	"you": true, "your": true, "instead": true, "another": true, "else": true,
}
