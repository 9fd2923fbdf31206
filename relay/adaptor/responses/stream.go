package responses

import (
	"encoding/json"

	"github.com/Laisky/errors/v2"

	"github.com/laiskygw/llm-gateway/model"
	"github.com/laiskygw/llm-gateway/relay/adaptor"
	"github.com/laiskygw/llm-gateway/relay/ir"
)

type streamEnvelope struct {
	Type string `json:"type"`

	Response *struct {
		Model string    `json:"model"`
		Usage UsageWire `json:"usage"`
	} `json:"response,omitempty"`

	OutputIndex int `json:"output_index"`

	Item *OutputItem `json:"item,omitempty"`

	Delta string `json:"delta,omitempty"`

	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// streamParser is a fresh-per-response adaptor.StreamParser for the
// response.* event stream, addressing IR content blocks by the wire's
// own output_index (spec.md §9: index is needed to route deltas even
// though tool calls are keyed by id for storage).
type streamParser struct {
	openedKind map[int]ir.ContentKind
}

// NewStreamParser implements adaptor.ResponseAdaptor.
func (responsesAdaptor) NewStreamParser(providerType model.ProviderType) adaptor.StreamParser {
	return &streamParser{openedKind: map[int]ir.ContentKind{}}
}

func (p *streamParser) ParseChunk(raw []byte) ([]ir.StreamEvent, error) {
	var env streamEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.Wrap(err, "decode responses stream event")
	}

	switch env.Type {
	case "response.created":
		model := ""
		if env.Response != nil {
			model = env.Response.Model
		}
		return []ir.StreamEvent{{Type: ir.EventMessageStart, Model: model, Index: -1}}, nil

	case "response.output_item.added":
		if env.Item == nil {
			return nil, nil
		}
		switch env.Item.Type {
		case "message":
			p.openedKind[env.OutputIndex] = ir.ContentText
			return []ir.StreamEvent{{Type: ir.EventContentBlockStart, Index: env.OutputIndex, BlockKind: ir.ContentText}}, nil
		case "function_call":
			p.openedKind[env.OutputIndex] = ir.ContentToolUse
			return []ir.StreamEvent{{Type: ir.EventContentBlockStart, Index: env.OutputIndex, BlockKind: ir.ContentToolUse, ToolUseID: env.Item.CallID, ToolName: env.Item.Name}}, nil
		case "reasoning":
			p.openedKind[env.OutputIndex] = ir.ContentThinking
			return []ir.StreamEvent{{Type: ir.EventContentBlockStart, Index: env.OutputIndex, BlockKind: ir.ContentThinking}}, nil
		default:
			return nil, nil
		}

	case "response.output_text.delta":
		return []ir.StreamEvent{{Type: ir.EventContentBlockDelta, Index: env.OutputIndex, Delta: ir.DeltaText, Text: env.Delta}}, nil

	case "response.reasoning_summary_text.delta":
		return []ir.StreamEvent{{Type: ir.EventContentBlockDelta, Index: env.OutputIndex, Delta: ir.DeltaThinking, Text: env.Delta}}, nil

	case "response.function_call_arguments.delta":
		return []ir.StreamEvent{{Type: ir.EventContentBlockDelta, Index: env.OutputIndex, Delta: ir.DeltaInputJSON, PartialJSON: env.Delta}}, nil

	case "response.output_item.done":
		delete(p.openedKind, env.OutputIndex)
		return []ir.StreamEvent{{Type: ir.EventContentBlockStop, Index: env.OutputIndex}}, nil

	case "response.completed":
		var usage ir.Usage
		if env.Response != nil {
			usage = ir.Usage{PromptTokens: env.Response.Usage.InputTokens, CompletionTokens: env.Response.Usage.OutputTokens, TotalTokens: env.Response.Usage.TotalTokens}
		}
		return []ir.StreamEvent{
			{Type: ir.EventMessageDelta, Index: -1, StopReason: ir.StopEndTurn, Usage: usage},
			{Type: ir.EventMessageStop, Index: -1},
		}, nil

	case "error":
		message := "upstream stream error"
		if env.Error != nil {
			message = env.Error.Message
		}
		return nil, errors.New(message)

	default:
		return nil, nil
	}
}

// SerializeStreamEvent implements adaptor.ResponseAdaptor.
func (responsesAdaptor) SerializeStreamEvent(ev ir.StreamEvent) ([]byte, error) {
	switch ev.Type {
	case ir.EventMessageStart:
		return frame("response.created", map[string]any{"type": "response.created", "response": map[string]any{"model": ev.Model}})

	case ir.EventContentBlockStart:
		var item map[string]any
		switch ev.BlockKind {
		case ir.ContentText:
			item = map[string]any{"type": "message", "role": "assistant", "content": []any{}}
		case ir.ContentThinking:
			item = map[string]any{"type": "reasoning"}
		case ir.ContentToolUse:
			item = map[string]any{"type": "function_call", "call_id": ev.ToolUseID, "name": ev.ToolName, "arguments": ""}
		default:
			return nil, nil
		}
		return frame("response.output_item.added", map[string]any{"type": "response.output_item.added", "output_index": ev.Index, "item": item})

	case ir.EventContentBlockDelta:
		switch ev.Delta {
		case ir.DeltaText:
			return frame("response.output_text.delta", map[string]any{"type": "response.output_text.delta", "output_index": ev.Index, "delta": ev.Text})
		case ir.DeltaThinking:
			return frame("response.reasoning_summary_text.delta", map[string]any{"type": "response.reasoning_summary_text.delta", "output_index": ev.Index, "delta": ev.Text})
		case ir.DeltaInputJSON:
			return frame("response.function_call_arguments.delta", map[string]any{"type": "response.function_call_arguments.delta", "output_index": ev.Index, "delta": ev.PartialJSON})
		default:
			return nil, nil
		}

	case ir.EventContentBlockStop:
		return frame("response.output_item.done", map[string]any{"type": "response.output_item.done", "output_index": ev.Index})

	case ir.EventMessageDelta:
		return frame("response.completed", map[string]any{
			"type": "response.completed",
			"response": map[string]any{
				"status": "completed",
				"usage":  map[string]any{"input_tokens": ev.Usage.PromptTokens, "output_tokens": ev.Usage.CompletionTokens, "total_tokens": ev.Usage.TotalTokens},
			},
		})

	case ir.EventMessageStop:
		return nil, nil

	default:
		return nil, nil
	}
}

func frame(event string, payload map[string]any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal sse payload")
	}
	return []byte("event: " + event + "\ndata: " + string(data) + "\n\n"), nil
}

// StreamTerminator implements adaptor.ResponseAdaptor: the Responses API
// has no "[DONE]" sentinel; response.completed is itself terminal.
func (responsesAdaptor) StreamTerminator() []byte {
	return nil
}
