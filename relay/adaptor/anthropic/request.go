package anthropic

import (
	"encoding/json"

	"github.com/Laisky/errors/v2"

	"github.com/laiskygw/llm-gateway/relay/adaptor"
	"github.com/laiskygw/llm-gateway/relay/ir"
)

func decodeSystem(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []ContentBlockWire
	if err := json.Unmarshal(raw, &blocks); err == nil {
		var out string
		for _, b := range blocks {
			out += b.Text
		}
		return out
	}
	return ""
}

func decodeToolResultContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []ContentBlockWire
	if err := json.Unmarshal(raw, &blocks); err == nil {
		var out string
		for _, b := range blocks {
			out += b.Text
		}
		return out
	}
	return ""
}

func decodeToolChoice(w *ToolChoiceWire) *ir.ToolChoice {
	if w == nil {
		return nil
	}
	switch w.Type {
	case "auto":
		return &ir.ToolChoice{Mode: "auto"}
	case "any":
		return &ir.ToolChoice{Mode: "required"}
	case "none":
		return &ir.ToolChoice{Mode: "none"}
	case "tool":
		return &ir.ToolChoice{Mode: "tool", Name: w.Name}
	default:
		return nil
	}
}

// messagesAdaptor implements adaptor.RequestAdaptor/ResponseAdaptor for the
// anthropic client dialect.
type messagesAdaptor struct{}

// ParseRequest implements adaptor.RequestAdaptor.
func (messagesAdaptor) ParseRequest(body []byte) (*ir.Request, error) {
	var wire MessagesRequest
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, errors.Wrap(err, "decode messages request")
	}
	if wire.Model == "" {
		return nil, errors.New("model is required")
	}

	req := &ir.Request{
		Model:         wire.Model,
		System:        decodeSystem(wire.System),
		MaxTokens:     wire.MaxTokens,
		Temperature:   wire.Temperature,
		TopP:          wire.TopP,
		TopK:          wire.TopK,
		Stream:        wire.Stream,
		StopSequences: wire.StopSequences,
		ToolChoice:    decodeToolChoice(wire.ToolChoice),
	}

	for _, m := range wire.Messages {
		var content []ir.ContentBlock
		for _, b := range m.Content {
			switch b.Type {
			case "text":
				content = append(content, ir.ContentBlock{Kind: ir.ContentText, Text: b.Text})
			case "thinking":
				content = append(content, ir.ContentBlock{Kind: ir.ContentThinking, Thinking: b.Thinking, Signature: b.Signature})
			case "tool_use":
				content = append(content, ir.ContentBlock{Kind: ir.ContentToolUse, ToolUseID: b.ID, ToolName: b.Name, ToolInput: string(b.Input)})
			case "tool_result":
				content = append(content, ir.ContentBlock{Kind: ir.ContentToolResult, ToolUseID: b.ToolUseID, ToolResult: decodeToolResultContent(b.Content), ToolIsError: b.IsError})
			case "image":
				if b.Source != nil {
					block := ir.ContentBlock{Kind: ir.ContentImage, MediaType: b.Source.MediaType}
					if b.Source.Type == "base64" {
						block.ImageB64 = b.Source.Data
					} else {
						block.ImageURL = b.Source.URL
					}
					content = append(content, block)
				}
			}
		}
		req.Messages = append(req.Messages, ir.Message{Role: ir.Role(m.Role), Content: content})
	}

	for _, t := range wire.Tools {
		req.Tools = append(req.Tools, ir.ToolSpec{Name: t.Name, Description: t.Description, Parameters: string(t.InputSchema)})
	}

	return req, nil
}

// LogicalModel implements adaptor.RequestAdaptor.
func (messagesAdaptor) LogicalModel(body []byte) (systemName, providerSelector string, err error) {
	var probe struct {
		Model string `json:"model"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return "", "", errors.Wrap(err, "probe model field")
	}
	systemName, providerSelector = adaptor.SplitModelProvider(probe.Model)
	return systemName, providerSelector, nil
}
