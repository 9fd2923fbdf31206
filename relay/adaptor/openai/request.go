package openai

import (
	"encoding/json"

	"github.com/Laisky/errors/v2"

	"github.com/laiskygw/llm-gateway/relay/adaptor"
	"github.com/laiskygw/llm-gateway/relay/ir"
)

// multimodalPart is one element of an OpenAI multimodal content array.
type multimodalPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
}

// decodeContent normalizes the wire's string-or-array content field into
// IR content blocks.
func decodeContent(raw json.RawMessage) ([]ir.ContentBlock, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == "" {
			return nil, nil
		}
		return []ir.ContentBlock{{Kind: ir.ContentText, Text: asString}}, nil
	}

	var parts []multimodalPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil, errors.Wrap(err, "decode chat message content")
	}

	blocks := make([]ir.ContentBlock, 0, len(parts))
	for _, p := range parts {
		switch p.Type {
		case "text":
			blocks = append(blocks, ir.ContentBlock{Kind: ir.ContentText, Text: p.Text})
		case "image_url":
			blocks = append(blocks, ir.ContentBlock{Kind: ir.ContentImage, ImageURL: p.ImageURL.URL})
		}
	}
	return blocks, nil
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
		Type     string `json:"type"`
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	}
	if err := json.Unmarshal(raw, &named); err == nil && named.Function.Name != "" {
		return &ir.ToolChoice{Mode: "tool", Name: named.Function.Name}
	}
	return nil
}

func decodeStop(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		if one == "" {
			return nil
		}
		return []string{one}
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	return nil
}

// chatAdaptor implements adaptor.RequestAdaptor/ResponseAdaptor for the
// openai-chat client dialect.
type chatAdaptor struct{}

// ParseRequest implements adaptor.RequestAdaptor.
func (chatAdaptor) ParseRequest(body []byte) (*ir.Request, error) {
	var wire ChatRequest
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, errors.Wrap(err, "decode chat completion request")
	}
	if wire.Model == "" {
		return nil, errors.New("model is required")
	}
	if wire.Stream && wire.N > 1 {
		return nil, errors.New("stream=true is incompatible with n>1")
	}

	req := &ir.Request{
		Model:         wire.Model,
		Temperature:   wire.Temperature,
		TopP:          wire.TopP,
		MaxTokens:     wire.MaxTokens,
		Stream:        wire.Stream,
		N:             wire.N,
		StopSequences: decodeStop(wire.Stop),
		ToolChoice:    decodeToolChoice(wire.ToolChoice),
	}

	for _, m := range wire.Messages {
		if m.Role == "system" {
			content, err := decodeContent(m.Content)
			if err != nil {
				return nil, err
			}
			for _, b := range content {
				req.System += b.Text
			}
			continue
		}

		content, err := decodeContent(m.Content)
		if err != nil {
			return nil, err
		}
		if m.ReasoningContent != "" {
			content = append([]ir.ContentBlock{{Kind: ir.ContentThinking, Thinking: m.ReasoningContent}}, content...)
		}
		for _, tc := range m.ToolCalls {
			content = append(content, ir.ContentBlock{
				Kind:      ir.ContentToolUse,
				ToolUseID: tc.ID,
				ToolName:  tc.Function.Name,
				ToolInput: tc.Function.Arguments,
			})
		}
		if m.ToolCallID != "" {
			content = append(content, ir.ContentBlock{
				Kind:       ir.ContentToolResult,
				ToolUseID:  m.ToolCallID,
				ToolResult: firstText(content),
			})
		}

		req.Messages = append(req.Messages, ir.Message{
			Role:    ir.Role(m.Role),
			Content: content,
			Name:    m.Name,
		})
	}

	for _, t := range wire.Tools {
		if t.Type != "" && t.Type != "function" {
			continue
		}
		req.Tools = append(req.Tools, ir.ToolSpec{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  string(t.Function.Parameters),
		})
	}

	return req, nil
}

func firstText(blocks []ir.ContentBlock) string {
	for _, b := range blocks {
		if b.Kind == ir.ContentText {
			return b.Text
		}
	}
	return ""
}

// LogicalModel implements adaptor.RequestAdaptor: splits the OpenAI
// "model@provider" suffix convention (spec.md §4.4 step 1) without fully
// parsing the body.
func (chatAdaptor) LogicalModel(body []byte) (systemName, providerSelector string, err error) {
	var probe struct {
		Model string `json:"model"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return "", "", errors.Wrap(err, "probe model field")
	}
	systemName, providerSelector = adaptor.SplitModelProvider(probe.Model)
	return systemName, providerSelector, nil
}
