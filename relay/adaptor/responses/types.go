// Package responses implements the openai-responses client dialect (POST
// /v1/responses): request parsing, unary response serialization, and SSE
// event parsing/serialization, against the IR (spec.md §4.5).
package responses

import "encoding/json"

// InputPart is one element of an input message's content array.
type InputPart struct {
	Type     string `json:"type"` // input_text, input_image
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// InputItem is one turn of the "input" array. Role-bearing items are
// messages; function_call_output items feed a tool result back in.
type InputItem struct {
	Type    string      `json:"type,omitempty"` // "message" (default), "function_call_output"
	Role    string      `json:"role,omitempty"`
	Content []InputPart `json:"content,omitempty"`

	CallID string `json:"call_id,omitempty"`
	Output string `json:"output,omitempty"`
}

// ToolWire is a flat function-tool declaration (no nested "function" key,
// unlike the chat-completions dialect).
type ToolWire struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// Request is the inbound POST /v1/responses body. Input may be a bare
// string (single user turn) or the full InputItem array.
type Request struct {
	Model           string          `json:"model"`
	Input           json.RawMessage `json:"input"`
	Instructions    string          `json:"instructions,omitempty"`
	Tools           []ToolWire      `json:"tools,omitempty"`
	ToolChoice      json.RawMessage `json:"tool_choice,omitempty"`
	MaxOutputTokens int             `json:"max_output_tokens,omitempty"`
	Temperature     *float64        `json:"temperature,omitempty"`
	TopP            *float64        `json:"top_p,omitempty"`
	Stream          bool            `json:"stream,omitempty"`
}

// OutputContentPart is one element of a "message" output item's content.
type OutputContentPart struct {
	Type string `json:"type"` // output_text
	Text string `json:"text,omitempty"`
}

// OutputItem is a tagged union over the kinds of output the model produced.
type OutputItem struct {
	Type string `json:"type"` // message, function_call, reasoning

	ID      string              `json:"id,omitempty"`
	Role    string              `json:"role,omitempty"`
	Content []OutputContentPart `json:"content,omitempty"`

	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`

	Summary []OutputContentPart `json:"summary,omitempty"`
}

// UsageWire is the responses-dialect usage shape.
type UsageWire struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Response is the unary POST /v1/responses reply.
type Response struct {
	ID     string       `json:"id"`
	Object string       `json:"object"`
	Model  string       `json:"model"`
	Status string       `json:"status"`
	Output []OutputItem `json:"output"`
	Usage  UsageWire    `json:"usage"`
}

// ErrorEnvelope is the {"error": {...}} shape the Responses API uses.
type ErrorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
