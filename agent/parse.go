// Model output parsing.
//
// Information Hiding:
// - Text protocol markers and their precedence hidden
// - Recovery from fabricated observations hidden
// - Action Input decoding hidden

package agent

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	jsonutil "github.com/richinex/theseus/internal/json"
	"github.com/richinex/theseus/model"
)

// ErrProtocol is returned by parsers when the output holds neither a
// usable action nor a final answer.
var ErrProtocol = errors.New("model output violates the response protocol")

// Parsed is the structured form of one model reply.
// At most one of Action and Answer is set.
type Parsed struct {
	Thought string
	Action  *model.Action
	Answer  *string
}

// OutputParser turns raw model text into a Parsed reply. A non-nil error
// wrapping ErrProtocol means the reply is unusable; Parsed.Thought should
// still carry whatever reasoning could be recovered.
type OutputParser interface {
	Parse(text string) (Parsed, error)
}

// ParserFunc adapts a function into an OutputParser.
type ParserFunc func(text string) (Parsed, error)

// Parse calls f.
func (f ParserFunc) Parse(text string) (Parsed, error) { return f(text) }

var (
	thoughtMarker     = regexp.MustCompile(`(?m)^[ \t]*Thought[ \t]*:`)
	actionLine        = regexp.MustCompile(`(?m)^[ \t]*Action[ \t]*:[ \t]*(.+)$`)
	actionInputMarker = regexp.MustCompile(`(?m)^[ \t]*Action[ \t]+Input[ \t]*:`)
	finalAnswerMarker = regexp.MustCompile(`(?m)^[ \t]*Final[ \t]+Answer[ \t]*:`)
	observationMarker = regexp.MustCompile(`(?m)^[ \t]*Observation[ \t]*:`)
	answerEnd         = regexp.MustCompile(`(?m)^[ \t]*(?:Action[ \t]+Input|Action|Observation)[ \t]*:`)
	anyMarker         = regexp.MustCompile(`(?m)^[ \t]*(?:Action[ \t]+Input|Action|Final[ \t]+Answer|Observation)[ \t]*:`)
)

// ParseOutput reads the Thought/Action/Action Input or Thought/Final Answer
// protocol. Text the model wrote after its Action Input as if it were the
// tool's observation is discarded first, so an invented Final Answer there
// cannot end the run. A Final Answer otherwise takes precedence over an Action.
func ParseOutput(text string) (Parsed, error) {
	if loc := actionInputMarker.FindStringIndex(text); loc != nil {
		if obs := observationMarker.FindStringIndex(text[loc[1]:]); obs != nil {
			text = text[:loc[1]+obs[0]]
		}
	}

	p := Parsed{Thought: extractThought(text)}

	if loc := finalAnswerMarker.FindStringIndex(text); loc != nil {
		answer := text[loc[1]:]
		if end := answerEnd.FindStringIndex(answer); end != nil {
			answer = answer[:end[0]]
		}
		answer = strings.TrimSpace(answer)
		if answer != "" {
			p.Answer = &answer
			return p, nil
		}
		p.Thought = appendNote(p.Thought, "Final Answer was empty")
		return p, fmt.Errorf("%w: empty Final Answer", ErrProtocol)
	}

	m := actionLine.FindStringSubmatch(text)
	if m == nil {
		return p, fmt.Errorf("%w: no Action or Final Answer", ErrProtocol)
	}
	tool := strings.Trim(strings.TrimSpace(m[1]), "`\"'")

	loc := actionInputMarker.FindStringIndex(text)
	if loc == nil {
		p.Thought = appendNote(p.Thought, "Action Input is missing")
		return p, fmt.Errorf("%w: Action Input missing for %s", ErrProtocol, tool)
	}

	args, err := jsonutil.DecodeObject(text[loc[1]:])
	if err != nil {
		note := "Action Input is not valid JSON"
		if errors.Is(err, jsonutil.ErrNotObject) {
			note = "Action Input must be a JSON object"
		}
		p.Thought = appendNote(p.Thought, note)
		return p, fmt.Errorf("%w: %s: %v", ErrProtocol, note, err)
	}

	p.Action = &model.Action{Tool: tool, Args: args}
	return p, nil
}

// extractThought returns the text after "Thought:" up to the next marker,
// or the text before the first marker when no Thought label is present.
func extractThought(text string) string {
	start := 0
	if loc := thoughtMarker.FindStringIndex(text); loc != nil {
		start = loc[1]
	}
	rest := text[start:]
	if loc := anyMarker.FindStringIndex(rest); loc != nil {
		rest = rest[:loc[0]]
	}
	return strings.TrimSpace(rest)
}

func appendNote(thought, note string) string {
	note = "(parse error: " + note + ")"
	if thought == "" {
		return note
	}
	return thought + "\n" + note
}

var _ OutputParser = ParserFunc(ParseOutput)
