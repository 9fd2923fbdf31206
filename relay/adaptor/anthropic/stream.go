package anthropic

import (
	"encoding/json"

	"github.com/Laisky/errors/v2"

	"github.com/laiskygw/llm-gateway/model"
	"github.com/laiskygw/llm-gateway/relay/adaptor"
	"github.com/laiskygw/llm-gateway/relay/ir"
)

// streamEnvelope is the shared discriminator every Anthropic SSE "data:"
// payload carries in its own "type" field, so this parser never needs the
// sibling "event:" line to classify a frame.
type streamEnvelope struct {
	Type string `json:"type"`

	Message *struct {
		Model string    `json:"model"`
		Usage UsageWire `json:"usage"`
	} `json:"message,omitempty"`

	Index int `json:"index"`

	ContentBlock *ContentBlockWire `json:"content_block,omitempty"`

	Delta *struct {
		Type         string  `json:"type"`
		Text         string  `json:"text,omitempty"`
		Thinking     string  `json:"thinking,omitempty"`
		PartialJSON  string  `json:"partial_json,omitempty"`
		Signature    string  `json:"signature,omitempty"`
		StopReason   string  `json:"stop_reason,omitempty"`
		StopSequence *string `json:"stop_sequence,omitempty"`
	} `json:"delta,omitempty"`

	Usage *UsageWire `json:"usage,omitempty"`
}

// streamParser is a fresh-per-response adaptor.StreamParser. Anthropic's
// wire protocol is already block-structured, so this is close to a direct
// pass-through; it still tracks a little state to attach usage correctly
// to the final message_delta (spec.md §4.8: "message_delta" carries
// output_tokens, "message_start" carries input_tokens).
type streamParser struct {
	inputTokens int
}

// NewStreamParser implements adaptor.ResponseAdaptor.
func (messagesAdaptor) NewStreamParser(providerType model.ProviderType) adaptor.StreamParser {
	return &streamParser{}
}

func (p *streamParser) ParseChunk(raw []byte) ([]ir.StreamEvent, error) {
	var env streamEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.Wrap(err, "decode anthropic stream event")
	}

	switch env.Type {
	case "message_start":
		model := ""
		if env.Message != nil {
			model = env.Message.Model
			p.inputTokens = env.Message.Usage.InputTokens
		}
		return []ir.StreamEvent{{Type: ir.EventMessageStart, Model: model, Index: -1}}, nil

	case "content_block_start":
		if env.ContentBlock == nil {
			return nil, nil
		}
		ev := ir.StreamEvent{Type: ir.EventContentBlockStart, Index: env.Index}
		switch env.ContentBlock.Type {
		case "text":
			ev.BlockKind = ir.ContentText
		case "thinking":
			ev.BlockKind = ir.ContentThinking
		case "tool_use":
			ev.BlockKind = ir.ContentToolUse
			ev.ToolUseID = env.ContentBlock.ID
			ev.ToolName = env.ContentBlock.Name
		default:
			return nil, nil
		}
		return []ir.StreamEvent{ev}, nil

	case "content_block_delta":
		if env.Delta == nil {
			return nil, nil
		}
		ev := ir.StreamEvent{Type: ir.EventContentBlockDelta, Index: env.Index}
		switch env.Delta.Type {
		case "text_delta":
			ev.Delta = ir.DeltaText
			ev.Text = env.Delta.Text
		case "thinking_delta":
			ev.Delta = ir.DeltaThinking
			ev.Text = env.Delta.Thinking
		case "input_json_delta":
			ev.Delta = ir.DeltaInputJSON
			ev.PartialJSON = env.Delta.PartialJSON
		case "signature_delta":
			ev.Delta = ir.DeltaSignature
			ev.Signature = env.Delta.Signature
		default:
			return nil, nil
		}
		return []ir.StreamEvent{ev}, nil

	case "content_block_stop":
		return []ir.StreamEvent{{Type: ir.EventContentBlockStop, Index: env.Index}}, nil

	case "message_delta":
		ev := ir.StreamEvent{Type: ir.EventMessageDelta, Index: -1}
		if env.Delta != nil {
			ev.StopReason = stopReasonFromWire(env.Delta.StopReason)
		}
		outputTokens := 0
		if env.Usage != nil {
			outputTokens = env.Usage.OutputTokens
		}
		ev.Usage = ir.Usage{PromptTokens: p.inputTokens, CompletionTokens: outputTokens, TotalTokens: p.inputTokens + outputTokens}
		return []ir.StreamEvent{ev}, nil

	case "message_stop":
		return []ir.StreamEvent{{Type: ir.EventMessageStop, Index: -1}}, nil

	case "ping":
		return nil, nil

	default:
		return nil, nil
	}
}

// SerializeStreamEvent implements adaptor.ResponseAdaptor: renders one IR
// event as an "event: X\ndata: {...}\n\n" frame pair (no [DONE] terminator
// -- spec.md §4.5, §6).
func (messagesAdaptor) SerializeStreamEvent(ev ir.StreamEvent) ([]byte, error) {
	switch ev.Type {
	case ir.EventMessageStart:
		return frame("message_start", map[string]any{
			"type": "message_start",
			"message": map[string]any{
				"id": "msg_stream", "type": "message", "role": "assistant",
				"model": ev.Model, "content": []any{},
				"usage": map[string]any{"input_tokens": 0, "output_tokens": 0},
			},
		})

	case ir.EventContentBlockStart:
		block := map[string]any{}
		switch ev.BlockKind {
		case ir.ContentText:
			block = map[string]any{"type": "text", "text": ""}
		case ir.ContentThinking:
			block = map[string]any{"type": "thinking", "thinking": ""}
		case ir.ContentToolUse:
			block = map[string]any{"type": "tool_use", "id": ev.ToolUseID, "name": ev.ToolName, "input": map[string]any{}}
		default:
			return nil, nil
		}
		return frame("content_block_start", map[string]any{"type": "content_block_start", "index": ev.Index, "content_block": block})

	case ir.EventContentBlockDelta:
		var delta map[string]any
		switch ev.Delta {
		case ir.DeltaText:
			delta = map[string]any{"type": "text_delta", "text": ev.Text}
		case ir.DeltaThinking:
			delta = map[string]any{"type": "thinking_delta", "thinking": ev.Text}
		case ir.DeltaInputJSON:
			delta = map[string]any{"type": "input_json_delta", "partial_json": ev.PartialJSON}
		case ir.DeltaSignature:
			delta = map[string]any{"type": "signature_delta", "signature": ev.Signature}
		default:
			return nil, nil
		}
		return frame("content_block_delta", map[string]any{"type": "content_block_delta", "index": ev.Index, "delta": delta})

	case ir.EventContentBlockStop:
		return frame("content_block_stop", map[string]any{"type": "content_block_stop", "index": ev.Index})

	case ir.EventMessageDelta:
		return frame("message_delta", map[string]any{
			"type":  "message_delta",
			"delta": map[string]any{"stop_reason": wireFromStopReason(ev.StopReason), "stop_sequence": nil},
			"usage": map[string]any{"output_tokens": ev.Usage.CompletionTokens},
		})

	case ir.EventMessageStop:
		return frame("message_stop", map[string]any{"type": "message_stop"})

	default:
		return nil, nil
	}
}

func frame(event string, payload map[string]any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal sse payload")
	}
	out := "event: " + event + "\ndata: " + string(data) + "\n\n"
	return []byte(out), nil
}

// StreamTerminator implements adaptor.ResponseAdaptor: Anthropic's wire
// protocol has no "[DONE]" sentinel (spec.md §6).
func (messagesAdaptor) StreamTerminator() []byte {
	return nil
}
