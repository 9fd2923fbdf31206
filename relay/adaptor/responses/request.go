package responses

import (
	"encoding/json"

	"github.com/Laisky/errors/v2"

	"github.com/laiskygw/llm-gateway/relay/adaptor"
	"github.com/laiskygw/llm-gateway/relay/ir"
)

func decodeInput(raw json.RawMessage) ([]ir.Message, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == "" {
			return nil, nil
		}
		return []ir.Message{{Role: ir.RoleUser, Content: []ir.ContentBlock{{Kind: ir.ContentText, Text: asString}}}}, nil
	}

	var items []InputItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errors.Wrap(err, "decode input items")
	}

	messages := make([]ir.Message, 0, len(items))
	for _, item := range items {
		if item.Type == "function_call_output" {
			messages = append(messages, ir.Message{
				Role:    ir.RoleTool,
				Content: []ir.ContentBlock{{Kind: ir.ContentToolResult, ToolUseID: item.CallID, ToolResult: item.Output}},
			})
			continue
		}

		var blocks []ir.ContentBlock
		for _, part := range item.Content {
			switch part.Type {
			case "input_text":
				blocks = append(blocks, ir.ContentBlock{Kind: ir.ContentText, Text: part.Text})
			case "input_image":
				blocks = append(blocks, ir.ContentBlock{Kind: ir.ContentImage, ImageURL: part.ImageURL})
			}
		}
		role := item.Role
		if role == "" {
			role = "user"
		}
		messages = append(messages, ir.Message{Role: ir.Role(role), Content: blocks})
	}
	return messages, nil
}

func decodeToolChoice(raw json.RawMessage) *ir.ToolChoice {
	if len(raw) == 0 {
		return nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		switch asString {
		case "auto", "none", "required":
			return &ir.ToolChoice{Mode: asString}
		}
		return nil
	}
	var named struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &named); err == nil && named.Name != "" {
		return &ir.ToolChoice{Mode: "tool", Name: named.Name}
	}
	return nil
}

// responsesAdaptor implements adaptor.RequestAdaptor/ResponseAdaptor for
// the openai-responses client dialect.
type responsesAdaptor struct{}

// ParseRequest implements adaptor.RequestAdaptor.
func (responsesAdaptor) ParseRequest(body []byte) (*ir.Request, error) {
	var wire Request
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, errors.Wrap(err, "decode responses request")
	}
	if wire.Model == "" {
		return nil, errors.New("model is required")
	}

	messages, err := decodeInput(wire.Input)
	if err != nil {
		return nil, err
	}

	req := &ir.Request{
		Model:       wire.Model,
		System:      wire.Instructions,
		Messages:    messages,
		MaxTokens:   wire.MaxOutputTokens,
		Temperature: wire.Temperature,
		TopP:        wire.TopP,
		Stream:      wire.Stream,
		ToolChoice:  decodeToolChoice(wire.ToolChoice),
	}

	for _, t := range wire.Tools {
		if t.Type != "" && t.Type != "function" {
			continue
		}
		req.Tools = append(req.Tools, ir.ToolSpec{Name: t.Name, Description: t.Description, Parameters: string(t.Parameters)})
	}

	return req, nil
}

// LogicalModel implements adaptor.RequestAdaptor.
func (responsesAdaptor) LogicalModel(body []byte) (systemName, providerSelector string, err error) {
	var probe struct {
		Model string `json:"model"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return "", "", errors.Wrap(err, "probe model field")
	}
	systemName, providerSelector = adaptor.SplitModelProvider(probe.Model)
	return systemName, providerSelector, nil
}
