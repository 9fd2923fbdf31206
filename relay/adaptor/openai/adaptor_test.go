package openai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/laiskygw/llm-gateway/model"
	"github.com/laiskygw/llm-gateway/relay/ir"
)

func TestParseRequest_DecodesMessagesSystemAndTools(t *testing.T) {
	body := []byte(`{
		"model": "gpt-4o",
		"stream": false,
		"messages": [
			{"role": "system", "content": "be terse"},
			{"role": "user", "content": "hi"}
		],
		"tools": [{"type": "function", "function": {"name": "lookup", "description": "look something up", "parameters": {"type": "object"}}}]
	}`)

	req, err := Adaptor.ParseRequest(body)
	require.NoError(t, err)
	require.Equal(t, "gpt-4o", req.Model)
	require.Equal(t, "be terse", req.System)
	require.Len(t, req.Messages, 1)
	require.Equal(t, ir.RoleUser, req.Messages[0].Role)
	require.Equal(t, "hi", req.Messages[0].Content[0].Text)
	require.Len(t, req.Tools, 1)
	require.Equal(t, "lookup", req.Tools[0].Name)
}

func TestParseRequest_RejectsStreamWithMultipleChoices(t *testing.T) {
	body := []byte(`{"model":"gpt-4o","stream":true,"n":2,"messages":[{"role":"user","content":"hi"}]}`)
	_, err := Adaptor.ParseRequest(body)
	require.Error(t, err)
}

func TestLogicalModel_SplitsProviderSuffix(t *testing.T) {
	systemName, providerSelector, err := Adaptor.LogicalModel([]byte(`{"model":"gpt-4o@azure-primary"}`))
	require.NoError(t, err)
	require.Equal(t, "gpt-4o", systemName)
	require.Equal(t, "azure-primary", providerSelector)
}

func TestParseUnary_DecodesToolCallsAndUsage(t *testing.T) {
	body := []byte(`{
		"id": "chatcmpl-1",
		"model": "gpt-4o",
		"choices": [{
			"index": 0,
			"finish_reason": "tool_calls",
			"message": {
				"role": "assistant",
				"tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "lookup", "arguments": "{}"}}]
			}
		}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 4, "total_tokens": 14}
	}`)

	resp, err := Adaptor.ParseUnary(model.ProviderTypeOpenAI, body)
	require.NoError(t, err)
	require.Equal(t, ir.StopToolUse, resp.StopReason)
	require.Len(t, resp.ToolCalls, 1)
	require.Equal(t, "lookup", resp.ToolCalls[0].Name)
	require.Equal(t, 10, resp.Usage.PromptTokens)
	require.Equal(t, 14, resp.Usage.TotalTokens)
}

func TestSerializeUnary_FlattensThinkingAheadOfText(t *testing.T) {
	resp := &ir.Response{
		Model:      "gpt-4o",
		StopReason: ir.StopEndTurn,
		Content: []ir.ContentBlock{
			{Kind: ir.ContentThinking, Thinking: "step one"},
			{Kind: ir.ContentText, Text: "final answer"},
		},
	}

	wireBody, err := Adaptor.SerializeUnary(resp)
	require.NoError(t, err)
	// encoding/json escapes '<' and '>' on the wire, so compare the decoded content.
	var decoded ChatResponse
	require.NoError(t, json.Unmarshal(wireBody, &decoded))
	var content string
	require.NoError(t, json.Unmarshal(decoded.Choices[0].Message.Content, &content))
	require.Equal(t, "<think>step one</think>final answer", content)
	require.Contains(t, string(wireBody), `"finish_reason":"stop"`)
}
