// Package anthropic implements the anthropic client dialect (POST
// /v1/messages): request parsing, unary response serialization, and SSE
// event parsing/serialization, against the IR (spec.md §4.5). The IR's
// stream event set is modeled directly on this dialect's block protocol
// (spec.md §4.5 "strictest superset"), so this package's stream.go is the
// most nearly 1:1 of the three adaptors.
package anthropic

import "encoding/json"

// ContentBlockWire is one element of a Message's content array, a tagged
// union on Type.
type ContentBlockWire struct {
	Type string `json:"type"`

	Text string `json:"text,omitempty"`

	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`

	ID    string          `json:"id,omitempty"`    // tool_use
	Name  string          `json:"name,omitempty"`  // tool_use
	Input json.RawMessage `json:"input,omitempty"` // tool_use, complete JSON

	ToolUseID string          `json:"tool_use_id,omitempty"` // tool_result
	Content   json.RawMessage `json:"content,omitempty"`     // tool_result: string or block array
	IsError   bool            `json:"is_error,omitempty"`

	Source *ImageSource `json:"source,omitempty"` // image
}

type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// MessageWire is one turn.
type MessageWire struct {
	Role    string             `json:"role"`
	Content []ContentBlockWire `json:"content"`
}

// ToolWire is a tool declaration.
type ToolWire struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// ToolChoiceWire constrains tool use.
type ToolChoiceWire struct {
	Type string `json:"type"` // auto, any, tool, none
	Name string `json:"name,omitempty"`
}

// MessagesRequest is the inbound POST /v1/messages body.
type MessagesRequest struct {
	Model         string          `json:"model"`
	Messages      []MessageWire   `json:"messages"`
	System        json.RawMessage `json:"system,omitempty"` // string or block array
	MaxTokens     int             `json:"max_tokens"`
	Temperature   *float64        `json:"temperature,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	TopK          *int            `json:"top_k,omitempty"`
	Stream        bool            `json:"stream,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Tools         []ToolWire      `json:"tools,omitempty"`
	ToolChoice    *ToolChoiceWire `json:"tool_choice,omitempty"`
}

// MessagesResponse is the unary POST /v1/messages reply.
type MessagesResponse struct {
	ID           string             `json:"id"`
	Type         string             `json:"type"`
	Role         string             `json:"role"`
	Model        string             `json:"model"`
	Content      []ContentBlockWire `json:"content"`
	StopReason   string             `json:"stop_reason"`
	StopSequence *string            `json:"stop_sequence,omitempty"`
	Usage        UsageWire          `json:"usage"`
}

type UsageWire struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ErrorEnvelope is the {"type":"error","error":{...}} shape Anthropic uses.
type ErrorEnvelope struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
