package responses

import (
	"encoding/json"
	"strings"

	"github.com/Laisky/errors/v2"

	"github.com/laiskygw/llm-gateway/model"
	"github.com/laiskygw/llm-gateway/relay/ir"
)

// ParseUnary implements adaptor.ResponseAdaptor: decodes a complete
// OpenAI Responses body into the IR.
func (responsesAdaptor) ParseUnary(providerType model.ProviderType, body []byte) (*ir.Response, error) {
	var wire Response
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, errors.Wrap(err, "decode responses response")
	}

	resp := &ir.Response{
		Model:      wire.Model,
		StopReason: ir.StopEndTurn,
		Usage: ir.Usage{
			PromptTokens:     wire.Usage.InputTokens,
			CompletionTokens: wire.Usage.OutputTokens,
			TotalTokens:      wire.Usage.TotalTokens,
		},
	}

	for _, item := range wire.Output {
		switch item.Type {
		case "message":
			for _, part := range item.Content {
				if part.Type == "output_text" {
					resp.Content = append(resp.Content, ir.ContentBlock{Kind: ir.ContentText, Text: part.Text})
				}
			}
		case "reasoning":
			var thinking strings.Builder
			for _, part := range item.Summary {
				thinking.WriteString(part.Text)
			}
			if thinking.Len() > 0 {
				resp.Content = append(resp.Content, ir.ContentBlock{Kind: ir.ContentThinking, Thinking: thinking.String()})
			}
		case "function_call":
			resp.Content = append(resp.Content, ir.ContentBlock{Kind: ir.ContentToolUse, ToolUseID: item.CallID, ToolName: item.Name, ToolInput: item.Arguments})
			resp.ToolCalls = append(resp.ToolCalls, ir.ToolCall{ID: item.CallID, Name: item.Name, Arguments: item.Arguments})
			resp.StopReason = ir.StopToolUse
		}
	}

	return resp, nil
}

// SerializeUnary implements adaptor.ResponseAdaptor: renders the IR
// response as an OpenAI Responses body.
func (responsesAdaptor) SerializeUnary(resp *ir.Response) ([]byte, error) {
	wire := Response{
		Object: "response",
		Model:  resp.Model,
		Status: "completed",
		Usage: UsageWire{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}

	var thinking, text strings.Builder
	for _, b := range resp.Content {
		switch b.Kind {
		case ir.ContentThinking:
			thinking.WriteString(b.Thinking)
		case ir.ContentText:
			text.WriteString(b.Text)
		case ir.ContentToolUse:
			wire.Output = append(wire.Output, OutputItem{Type: "function_call", CallID: b.ToolUseID, Name: b.ToolName, Arguments: b.ToolInput})
		}
	}
	if thinking.Len() > 0 {
		wire.Output = append([]OutputItem{{Type: "reasoning", Summary: []OutputContentPart{{Type: "output_text", Text: thinking.String()}}}}, wire.Output...)
	}
	if text.Len() > 0 {
		wire.Output = append(wire.Output, OutputItem{Type: "message", Role: "assistant", Content: []OutputContentPart{{Type: "output_text", Text: text.String()}}})
	}

	out, err := json.Marshal(wire)
	if err != nil {
		return nil, errors.Wrap(err, "marshal responses response")
	}
	return out, nil
}
