// Prompt construction.
//
// Information Hiding:
// - Protocol instructions wording hidden
// - Step transcript linearization hidden

package agent

import (
	"fmt"
	"strings"

	"github.com/richinex/theseus/llm"
	"github.com/richinex/theseus/retrieval"
	"github.com/richinex/theseus/tools"
)

const protocolInstructions = `Work on the request step by step. Reply in exactly one of these two formats.

To use a tool:
Thought: <your reasoning>
Action: <tool name>
Action Input: <JSON object with the tool arguments>

To answer:
Thought: <your reasoning>
Final Answer: <the answer for the user>

Stop after Action Input. Never write an Observation yourself; it is supplied after the tool runs.`

const preferContext = `Prefer the retrieved knowledge and earlier observations over calling a tool again. Call a tool only when they cannot answer the request.`

// systemPrompt combines the base instructions, the tool catalog and the
// retrieved resources.
func systemPrompt(base string, bundle retrieval.ConversationContext) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(base))
	b.WriteString("\n\n")
	b.WriteString(protocolInstructions)

	b.WriteString("\n\nAvailable tools:\n")
	if len(bundle.Tools) == 0 {
		b.WriteString("No tools are available. Answer directly with a Final Answer.")
	} else {
		b.WriteString(tools.Describe(bundle.Tools))
	}

	if len(bundle.Resources) > 0 {
		b.WriteString("\n\nRetrieved knowledge:\n")
		for _, r := range bundle.Resources {
			fmt.Fprintf(&b, "[%s]\n%s\n\n", r.ID, r.Text)
		}
		b.WriteString(preferContext)
	}
	return b.String()
}

// userPrompt renders the query followed by the steps taken so far.
func userPrompt(query string, steps []Step) string {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(query)

	for _, s := range steps {
		b.WriteString("\n\n")
		if s.Thought != "" {
			fmt.Fprintf(&b, "Thought: %s\n", s.Thought)
		}
		if s.Action != nil {
			fmt.Fprintf(&b, "Action: %s\nAction Input: %s\n", s.Action.Tool, string(s.Action.Args))
		}
		if s.Observation != nil {
			fmt.Fprintf(&b, "Observation: %s", *s.Observation)
		}
	}
	if len(steps) > 0 {
		b.WriteString("\n\nContinue with the next Thought.")
	}
	return b.String()
}

// messages assembles the full request for one model call.
func messages(base, query string, bundle retrieval.ConversationContext, steps []Step) []llm.ChatMessage {
	out := make([]llm.ChatMessage, 0, len(bundle.History)+2)
	out = append(out, llm.SystemMessage(systemPrompt(base, bundle)))
	out = append(out, bundle.History...)
	out = append(out, llm.UserMessage(userPrompt(query, steps)))
	return out
}
