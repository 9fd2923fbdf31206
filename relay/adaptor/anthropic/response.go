package anthropic

import (
	"encoding/json"

	"github.com/Laisky/errors/v2"

	"github.com/laiskygw/llm-gateway/model"
	"github.com/laiskygw/llm-gateway/relay/ir"
)

func stopReasonFromWire(s string) ir.StopReason {
	switch s {
	case "end_turn", "stop":
		return ir.StopEndTurn
	case "max_tokens":
		return ir.StopMaxTokens
	case "tool_use":
		return ir.StopToolUse
	case "stop_sequence":
		return ir.StopStopSequence
	default:
		return ir.StopUnknown
	}
}

func wireFromStopReason(r ir.StopReason) string {
	switch r {
	case ir.StopEndTurn:
		return "end_turn"
	case ir.StopMaxTokens:
		return "max_tokens"
	case ir.StopToolUse:
		return "tool_use"
	case ir.StopStopSequence:
		return "stop_sequence"
	default:
		return "end_turn"
	}
}

// ParseUnary implements adaptor.ResponseAdaptor: decodes a complete
// Anthropic Messages response into the IR.
func (messagesAdaptor) ParseUnary(providerType model.ProviderType, body []byte) (*ir.Response, error) {
	var wire MessagesResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, errors.Wrap(err, "decode messages response")
	}

	resp := &ir.Response{
		Model:      wire.Model,
		StopReason: stopReasonFromWire(wire.StopReason),
		Usage: ir.Usage{
			PromptTokens:     wire.Usage.InputTokens,
			CompletionTokens: wire.Usage.OutputTokens,
			TotalTokens:      wire.Usage.InputTokens + wire.Usage.OutputTokens,
		},
	}

	for _, b := range wire.Content {
		switch b.Type {
		case "text":
			resp.Content = append(resp.Content, ir.ContentBlock{Kind: ir.ContentText, Text: b.Text})
		case "thinking":
			resp.Content = append(resp.Content, ir.ContentBlock{Kind: ir.ContentThinking, Thinking: b.Thinking, Signature: b.Signature})
		case "tool_use":
			resp.Content = append(resp.Content, ir.ContentBlock{Kind: ir.ContentToolUse, ToolUseID: b.ID, ToolName: b.Name, ToolInput: string(b.Input)})
			resp.ToolCalls = append(resp.ToolCalls, ir.ToolCall{ID: b.ID, Name: b.Name, Arguments: string(b.Input)})
		}
	}

	return resp, nil
}

// SerializeUnary implements adaptor.ResponseAdaptor: renders the IR
// response as an Anthropic Messages body.
func (messagesAdaptor) SerializeUnary(resp *ir.Response) ([]byte, error) {
	wire := MessagesResponse{
		Type:       "message",
		Role:       "assistant",
		Model:      resp.Model,
		StopReason: wireFromStopReason(resp.StopReason),
		Usage: UsageWire{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}

	for _, b := range resp.Content {
		switch b.Kind {
		case ir.ContentText:
			wire.Content = append(wire.Content, ContentBlockWire{Type: "text", Text: b.Text})
		case ir.ContentThinking:
			wire.Content = append(wire.Content, ContentBlockWire{Type: "thinking", Thinking: b.Thinking, Signature: b.Signature})
		case ir.ContentToolUse:
			wire.Content = append(wire.Content, ContentBlockWire{Type: "tool_use", ID: b.ToolUseID, Name: b.ToolName, Input: json.RawMessage(nonEmptyJSON(b.ToolInput))})
		}
	}

	out, err := json.Marshal(wire)
	if err != nil {
		return nil, errors.Wrap(err, "marshal messages response")
	}
	return out, nil
}

func nonEmptyJSON(raw string) string {
	if raw == "" {
		return "{}"
	}
	return raw
}
