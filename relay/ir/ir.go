// Package ir defines the Internal Request/Response representation that
// sits between the three client dialects (openai-chat, openai-responses,
// anthropic) and the five provider dialects. Adaptors only ever convert to
// and from this closed set of types; no adaptor converts directly to
// another adaptor's wire shape (spec.md §4.5, §9).
package ir

// Role is a chat turn's author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ContentKind distinguishes the block types a Message's content can carry.
type ContentKind string

const (
	ContentText     ContentKind = "text"
	ContentThinking ContentKind = "thinking"
	ContentToolUse  ContentKind = "tool_use"
	ContentToolResult ContentKind = "tool_result"
	ContentImage    ContentKind = "image"
)

// ContentBlock is one block of a Message's content array. Only the fields
// relevant to Kind are populated.
type ContentBlock struct {
	Kind ContentKind `json:"kind"`

	Text string `json:"text,omitempty"`

	// Thinking holds provider "reasoning" content (OpenAI reasoning_content
	// deltas, Anthropic thinking blocks) normalized to one shape.
	Thinking string `json:"thinking,omitempty"`
	// Signature is Anthropic's thinking-block signature, round-tripped
	// opaquely so a subsequent turn can replay it.
	Signature string `json:"signature,omitempty"`

	// Tool-use fields.
	ToolUseID   string `json:"tool_use_id,omitempty"`
	ToolName    string `json:"tool_name,omitempty"`
	ToolInput   string `json:"tool_input,omitempty"` // raw JSON, possibly partial mid-stream
	ToolResult  string `json:"tool_result,omitempty"`
	ToolIsError bool   `json:"tool_is_error,omitempty"`

	// ImageURL/ImageB64 hold inbound multimodal image references; the
	// gateway never re-encodes images, only threads them through.
	ImageURL  string `json:"image_url,omitempty"`
	ImageB64  string `json:"image_b64,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

// Message is one turn of the conversation.
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
	// Name disambiguates multiple tool/function participants.
	Name string `json:"name,omitempty"`
}

// ToolSpec is a callable tool definition, independent of the wire dialect
// used to declare it (OpenAI's {type:"function",function:{...}} vs.
// Anthropic's flat {name,description,input_schema}).
type ToolSpec struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  string `json:"parameters,omitempty"` // raw JSON schema
}

// ToolChoice constrains which tool (if any) the model must call.
type ToolChoice struct {
	Mode string `json:"mode"` // "auto", "none", "required", "tool"
	Name string `json:"name,omitempty"`
}

// Request is the translated client request, provider-agnostic.
type Request struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	System   string    `json:"system,omitempty"`

	Tools      []ToolSpec  `json:"tools,omitempty"`
	ToolChoice *ToolChoice `json:"tool_choice,omitempty"`

	MaxTokens     int      `json:"max_tokens,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	TopP          *float64 `json:"top_p,omitempty"`
	TopK          *int     `json:"top_k,omitempty"`
	Stream        bool     `json:"stream"`
	StopSequences []string `json:"stop_sequences,omitempty"`
	N             int      `json:"n,omitempty"`

	// ExtraParams carries dialect-specific fields the IR has no slot for,
	// passed through to the provider verbatim (spec.md §9 "dynamic JSON at
	// the edges").
	ExtraParams map[string]any `json:"extra_params,omitempty"`
	// ExtraHeaders carries non-excluded inbound headers forwarded to the
	// upstream verbatim (spec.md §6).
	ExtraHeaders map[string]string `json:"-"`
}

// Usage is token accounting, normalized across providers.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// StopReason is the normalized completion stop reason.
type StopReason string

const (
	StopEndTurn      StopReason = "end_turn"
	StopMaxTokens    StopReason = "max_tokens"
	StopToolUse      StopReason = "tool_use"
	StopStopSequence StopReason = "stop_sequence"
	StopUnknown      StopReason = "unknown"
)

// Response is the translated provider response, unary form.
type Response struct {
	Model      string
	Content    []ContentBlock
	StopReason StopReason
	Usage      Usage
	// ToolCalls is the flattened list of complete tool invocations,
	// ordered by first appearance, for persistence (spec.md §3 Completion.completion).
	ToolCalls []ToolCall
}

// ToolCall is one complete tool invocation, keyed by id (never by stream
// index -- spec.md §9 "Tool-call reconstruction").
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // complete JSON
}

// EventType enumerates the IR streaming event set, modeled directly on
// Anthropic's block protocol because spec.md §4.5 calls it "the strictest
// superset".
type EventType string

const (
	EventMessageStart      EventType = "message_start"
	EventContentBlockStart EventType = "content_block_start"
	EventContentBlockDelta EventType = "content_block_delta"
	EventContentBlockStop  EventType = "content_block_stop"
	EventMessageDelta      EventType = "message_delta"
	EventMessageStop       EventType = "message_stop"
	EventUsage             EventType = "usage"
)

// DeltaType enumerates the content_block_delta variants.
type DeltaType string

const (
	DeltaText       DeltaType = "text_delta"
	DeltaThinking   DeltaType = "thinking_delta"
	DeltaInputJSON  DeltaType = "input_json_delta"
	DeltaSignature  DeltaType = "signature_delta"
)

// StreamEvent is one unit of the IR stream event set.
type StreamEvent struct {
	Type EventType

	// Index addresses the content block a content_block_* event refers to.
	// It is the only addressing key available during an
	// input_json_delta/content_block_stop; -1 means "not applicable".
	Index int

	// ContentBlockStart fields.
	BlockKind ContentKind
	ToolUseID string // set on content_block_start for a tool_use block
	ToolName  string

	// ContentBlockDelta fields.
	Delta        DeltaType
	Text         string // text_delta / thinking_delta payload
	PartialJSON  string // input_json_delta payload
	Signature    string // signature_delta payload

	// message_delta / message_stop / usage fields.
	StopReason StopReason
	Usage      Usage

	// Model is set on message_start.
	Model string
}
