// Package openai implements the openai-chat client dialect: request
// parsing, unary response serialization, and SSE chunk
// parsing/serialization, against the IR (spec.md §4.5).
//
// Grounded on the teacher's relay/adaptor/openai package shape (dispatch
// methods on an Adaptor type, dynamic JSON at the edges via
// json.RawMessage) and on spec.md §9's tolerant-SSE-termination note,
// which several of the teacher's vendor-specific workaround comments
// (DeepSeek, trailing bare [DONE]) describe directly.
package openai

import "encoding/json"

// ChatMessage is one wire-format message. Content is a RawMessage because
// the wire allows either a plain string or a multimodal content array;
// decodeContent below normalizes both shapes into IR content blocks.
type ChatMessage struct {
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content,omitempty"`
	Name       string          `json:"name,omitempty"`
	ToolCalls  []ToolCallWire  `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ReasoningContent string   `json:"reasoning_content,omitempty"`
}

// ToolCallWire is the wire shape of a complete (unary) or accumulating
// (stream delta) tool call.
type ToolCallWire struct {
	Index    *int         `json:"index,omitempty"`
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Function FunctionCall `json:"function"`
}

type FunctionCall struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// ToolWire is a tool declaration in the request.
type ToolWire struct {
	Type     string       `json:"type"`
	Function FunctionSpec `json:"function"`
}

type FunctionSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ChatRequest is the inbound POST /v1/chat/completions body.
type ChatRequest struct {
	Model       string          `json:"model"`
	Messages    []ChatMessage   `json:"messages"`
	Tools       []ToolWire      `json:"tools,omitempty"`
	ToolChoice  json.RawMessage `json:"tool_choice,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	N           int             `json:"n,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
	Stop        json.RawMessage `json:"stop,omitempty"`
}

// ChatResponse is the unary POST /v1/chat/completions reply.
type ChatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   *UsageWire   `json:"usage,omitempty"`
}

type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type UsageWire struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatChunk is one "chat.completion.chunk" SSE data payload.
type ChatChunk struct {
	ID      string          `json:"id"`
	Object  string          `json:"object"`
	Model   string          `json:"model"`
	Choices []ChatChunkChoice `json:"choices"`
	Usage   *UsageWire      `json:"usage,omitempty"`
}

type ChatChunkChoice struct {
	Index        int            `json:"index"`
	Delta        ChatChunkDelta `json:"delta"`
	FinishReason *string        `json:"finish_reason"`
}

type ChatChunkDelta struct {
	Role             string         `json:"role,omitempty"`
	Content          string         `json:"content,omitempty"`
	ReasoningContent string         `json:"reasoning_content,omitempty"`
	ToolCalls        []ToolCallWire `json:"tool_calls,omitempty"`
}

// ErrorEnvelope is the {"error": {...}} shape OpenAI-dialect errors use.
type ErrorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Param   string `json:"param,omitempty"`
		Code    string `json:"code,omitempty"`
	} `json:"error"`
}
