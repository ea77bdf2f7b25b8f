package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicChatJoinsSystemMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)

		var req struct {
			System []struct {
				Text string `json:"text"`
			} `json:"system"`
			Messages []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.System, 1)
		assert.Equal(t, "first\n\nsecond", req.System[0].Text)
		assert.Len(t, req.Messages, 2)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "assistant", req.Messages[1].Role)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-20250514","content":[{"type":"text","text":"Final Answer: hi"}],"stop_reason":"end_turn","usage":{"input_tokens":9,"output_tokens":4}}`)
	}))
	defer server.Close()

	provider := NewAnthropicProvider("test-key", ModelAnthropicClaudeSonnet4, 64, 0,
		option.WithBaseURL(server.URL), option.WithMaxRetries(0))

	resp, err := provider.Chat(context.Background(), []ChatMessage{
		SystemMessage("first"),
		SystemMessage("second"),
		UserMessage("q"),
		AssistantMessage("a"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Final Answer: hi", resp.Content)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, uint32(13), resp.Usage.TotalTokens)
}

func TestConvertToAnthropicMessagesTreatsToolAsUser(t *testing.T) {
	msgs, system := convertToAnthropicMessages([]ChatMessage{
		{Role: RoleTool, Content: "observation"},
	})
	assert.Empty(t, system)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", string(msgs[0].Role))
}
