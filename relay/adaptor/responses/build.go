package responses

import (
	"encoding/json"

	"github.com/Laisky/errors/v2"

	"github.com/laiskygw/llm-gateway/relay/ir"
)

// BuildRequestBody implements adaptor.ProviderParser: renders the IR
// request as a POST /v1/responses body for the failover executor to send
// upstream.
func (responsesAdaptor) BuildRequestBody(req *ir.Request) ([]byte, error) {
	wire := Request{
		Model:           req.Model,
		Instructions:    req.System,
		MaxOutputTokens: req.MaxTokens,
		Temperature:     req.Temperature,
		TopP:            req.TopP,
		Stream:          req.Stream,
	}

	var items []InputItem
	for _, m := range req.Messages {
		if m.Role == ir.RoleSystem {
			continue
		}

		var toolResult *ContentBlockFromTool
		var parts []InputPart
		for _, b := range m.Content {
			switch b.Kind {
			case ir.ContentText:
				parts = append(parts, InputPart{Type: "input_text", Text: b.Text})
			case ir.ContentImage:
				url := b.ImageURL
				if url == "" {
					url = "data:" + b.MediaType + ";base64," + b.ImageB64
				}
				parts = append(parts, InputPart{Type: "input_image", ImageURL: url})
			case ir.ContentToolResult:
				toolResult = &ContentBlockFromTool{callID: b.ToolUseID, output: b.ToolResult}
			case ir.ContentToolUse:
				items = append(items, InputItem{
					Type: "function_call", CallID: b.ToolUseID, Output: "",
				})
			}
		}

		if toolResult != nil {
			items = append(items, InputItem{
				Type: "function_call_output", CallID: toolResult.callID, Output: toolResult.output,
			})
			continue
		}
		if len(parts) > 0 {
			items = append(items, InputItem{Type: "message", Role: string(m.Role), Content: parts})
		}
	}

	raw, err := json.Marshal(items)
	if err != nil {
		return nil, errors.Wrap(err, "marshal input items")
	}
	wire.Input = raw

	for _, t := range req.Tools {
		wire.Tools = append(wire.Tools, ToolWire{
			Type: "function", Name: t.Name, Description: t.Description,
			Parameters: jsonRawOrObject(t.Parameters),
		})
	}

	if req.ToolChoice != nil {
		switch req.ToolChoice.Mode {
		case "auto", "none", "required":
			tc, _ := json.Marshal(req.ToolChoice.Mode)
			wire.ToolChoice = tc
		case "tool":
			tc, err := json.Marshal(map[string]string{"type": "function", "name": req.ToolChoice.Name})
			if err == nil {
				wire.ToolChoice = tc
			}
		}
	}

	out, err := json.Marshal(wire)
	if err != nil {
		return nil, errors.Wrap(err, "marshal responses request")
	}
	return out, nil
}

// ContentBlockFromTool carries a decoded tool_result block's addressing
// fields through BuildRequestBody's per-message loop.
type ContentBlockFromTool struct {
	callID string
	output string
}

func jsonRawOrObject(raw string) json.RawMessage {
	if raw == "" {
		return json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return json.RawMessage(raw)
}
