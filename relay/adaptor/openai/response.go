package openai

import (
	"encoding/json"
	"strings"

	"github.com/Laisky/errors/v2"

	"github.com/laiskygw/llm-gateway/model"
	"github.com/laiskygw/llm-gateway/relay/ir"
)

// ParseUnary implements adaptor.ResponseAdaptor: decodes a complete
// openai/azure/ollama chat-completions body into the IR. All three
// provider types share this wire shape (spec.md §1), so providerType is
// accepted for interface symmetry but not branched on here.
func (chatAdaptor) ParseUnary(providerType model.ProviderType, body []byte) (*ir.Response, error) {
	var wire ChatResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, errors.Wrap(err, "decode chat completion response")
	}
	if len(wire.Choices) == 0 {
		return nil, errors.New("chat completion response has no choices")
	}

	choice := wire.Choices[0]
	resp := &ir.Response{
		Model:      wire.Model,
		StopReason: stopReasonFromFinish(choice.FinishReason),
	}
	if wire.Usage != nil {
		resp.Usage = ir.Usage{
			PromptTokens:     wire.Usage.PromptTokens,
			CompletionTokens: wire.Usage.CompletionTokens,
			TotalTokens:      wire.Usage.TotalTokens,
		}
	}

	if choice.Message.ReasoningContent != "" {
		resp.Content = append(resp.Content, ir.ContentBlock{Kind: ir.ContentThinking, Thinking: choice.Message.ReasoningContent})
	}
	content, err := decodeContent(choice.Message.Content)
	if err != nil {
		return nil, err
	}
	resp.Content = append(resp.Content, content...)

	for _, tc := range choice.Message.ToolCalls {
		resp.Content = append(resp.Content, ir.ContentBlock{
			Kind:      ir.ContentToolUse,
			ToolUseID: tc.ID,
			ToolName:  tc.Function.Name,
			ToolInput: tc.Function.Arguments,
		})
		resp.ToolCalls = append(resp.ToolCalls, ir.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return resp, nil
}

func stopReasonFromFinish(finish string) ir.StopReason {
	switch finish {
	case "stop":
		return ir.StopEndTurn
	case "length":
		return ir.StopMaxTokens
	case "tool_calls", "function_call":
		return ir.StopToolUse
	case "":
		return ir.StopUnknown
	default:
		return ir.StopUnknown
	}
}

func finishFromStopReason(reason ir.StopReason) string {
	switch reason {
	case ir.StopEndTurn:
		return "stop"
	case ir.StopMaxTokens:
		return "length"
	case ir.StopToolUse:
		return "tool_calls"
	case ir.StopStopSequence:
		return "stop"
	default:
		return "stop"
	}
}

// SerializeUnary implements adaptor.ResponseAdaptor: renders the IR
// response as an openai-chat completion body. Thinking content is
// flattened into a leading "<think>...</think>" block concatenated with
// text, as spec.md §4.5 requires for the stored/serialized record (the
// streaming wire path keeps reasoning_content separate; see stream.go).
func (chatAdaptor) SerializeUnary(resp *ir.Response) ([]byte, error) {
	var thinking, text strings.Builder
	var toolCalls []ToolCallWire
	for _, b := range resp.Content {
		switch b.Kind {
		case ir.ContentThinking:
			thinking.WriteString(b.Thinking)
		case ir.ContentText:
			text.WriteString(b.Text)
		case ir.ContentToolUse:
			toolCalls = append(toolCalls, ToolCallWire{
				ID:   b.ToolUseID,
				Type: "function",
				Function: FunctionCall{
					Name:      b.ToolName,
					Arguments: b.ToolInput,
				},
			})
		}
	}

	content := text.String()
	if thinking.Len() > 0 {
		content = "<think>" + thinking.String() + "</think>" + content
	}

	message := ChatMessage{
		Role: "assistant",
	}
	if content != "" {
		raw, err := json.Marshal(content)
		if err != nil {
			return nil, errors.Wrap(err, "marshal message content")
		}
		message.Content = raw
	}
	message.ToolCalls = toolCalls

	wire := ChatResponse{
		Object: "chat.completion",
		Model:  resp.Model,
		Choices: []ChatChoice{{
			Index:        0,
			Message:      message,
			FinishReason: finishFromStopReason(resp.StopReason),
		}},
		Usage: &UsageWire{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}

	out, err := json.Marshal(wire)
	if err != nil {
		return nil, errors.Wrap(err, "marshal chat completion response")
	}
	return out, nil
}
