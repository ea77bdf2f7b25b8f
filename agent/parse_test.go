package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOutput_Action(t *testing.T) {
	p, err := ParseOutput("Thought: I should look it up.\nAction: get_recipe\nAction Input: {\"name\": \"soup\"}")
	require.NoError(t, err)
	require.NotNil(t, p.Action)
	assert.Nil(t, p.Answer)
	assert.Equal(t, "I should look it up.", p.Thought)
	assert.Equal(t, "get_recipe", p.Action.Tool)
	assert.JSONEq(t, `{"name":"soup"}`, string(p.Action.Args))
}

func TestParseOutput_FinalAnswer(t *testing.T) {
	p, err := ParseOutput("Thought: I know this.\nFinal Answer: Use zucchini\nand peppers.")
	require.NoError(t, err)
	require.NotNil(t, p.Answer)
	assert.Nil(t, p.Action)
	assert.Equal(t, "Use zucchini\nand peppers.", *p.Answer)
	assert.Equal(t, "I know this.", p.Thought)
}

func TestParseOutput_FinalAnswerWinsOverAction(t *testing.T) {
	p, err := ParseOutput("Thought: done\nAction: search\nFinal Answer: 42")
	require.NoError(t, err)
	require.NotNil(t, p.Answer)
	assert.Equal(t, "42", *p.Answer)
	assert.Nil(t, p.Action)
}

func TestParseOutput_FinalAnswerStopsAtLaterAction(t *testing.T) {
	p, err := ParseOutput("Thought: t\nFinal Answer: done\nwith two lines\nAction: search\nAction Input: {\"q\":\"a\"}")
	require.NoError(t, err)
	require.NotNil(t, p.Answer)
	assert.Equal(t, "done\nwith two lines", *p.Answer)
	assert.Nil(t, p.Action)

	p, err = ParseOutput("Final Answer: soup\nObservation: invented")
	require.NoError(t, err)
	assert.Equal(t, "soup", *p.Answer)

	_, err = ParseOutput("Final Answer:\nAction: search")
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestParseOutput_DiscardsFabricatedObservation(t *testing.T) {
	text := "Thought: look it up\n" +
		"Action: search_knowledge\n" +
		"Action Input: {\"query\": \"pasta\"}\n" +
		"Observation: pasta is made of clay\n" +
		"Thought: now I know\n" +
		"Final Answer: clay"

	p, err := ParseOutput(text)
	require.NoError(t, err)
	assert.Nil(t, p.Answer)
	require.NotNil(t, p.Action)
	assert.Equal(t, "search_knowledge", p.Action.Tool)
	assert.JSONEq(t, `{"query":"pasta"}`, string(p.Action.Args))
}

func TestParseOutput_ActionInputFencedAndTrailing(t *testing.T) {
	p, err := ParseOutput("Thought: x\nAction: `fetch_url`\nAction Input: ```json\n{\"url\": \"https://example.com\"}\n```")
	require.NoError(t, err)
	require.NotNil(t, p.Action)
	assert.Equal(t, "fetch_url", p.Action.Tool)
	assert.JSONEq(t, `{"url":"https://example.com"}`, string(p.Action.Args))
}

func TestParseOutput_Invalid(t *testing.T) {
	tests := []struct {
		name string
		text string
		note string
	}{
		{"no markers", "I am just chatting.", ""},
		{"missing input", "Thought: hmm\nAction: search", "(parse error: Action Input is missing)"},
		{"bad json", "Thought: hmm\nAction: search\nAction Input: {query: pasta", "(parse error: Action Input is not valid JSON)"},
		{"array input", "Thought: hmm\nAction: search\nAction Input: [1, 2]", "(parse error: Action Input must be a JSON object)"},
		{"empty answer", "Thought: hmm\nFinal Answer:   ", "(parse error: Final Answer was empty)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParseOutput(tt.text)
			require.ErrorIs(t, err, ErrProtocol)
			assert.Nil(t, p.Action)
			assert.Nil(t, p.Answer)
			if tt.note != "" {
				assert.Contains(t, p.Thought, tt.note)
				assert.Contains(t, p.Thought, "hmm")
			}
		})
	}
}

func TestParseOutput_ThoughtWithoutLabel(t *testing.T) {
	p, err := ParseOutput("Let me check.\nAction: search\nAction Input: {}")
	require.NoError(t, err)
	assert.Equal(t, "Let me check.", p.Thought)
	assert.JSONEq(t, `{}`, string(p.Action.Args))
}
