package openai

import (
	"encoding/json"

	"github.com/Laisky/errors/v2"

	"github.com/laiskygw/llm-gateway/relay/ir"
)

// BuildRequestBody implements adaptor.ProviderParser: renders the IR
// request as an openai/azure/ollama chat-completions body for the
// failover executor to send upstream.
func (chatAdaptor) BuildRequestBody(req *ir.Request) ([]byte, error) {
	wire := ChatRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		N:           req.N,
		Stream:      req.Stream,
	}

	if req.System != "" {
		content, err := json.Marshal(req.System)
		if err != nil {
			return nil, errors.Wrap(err, "marshal system content")
		}
		wire.Messages = append(wire.Messages, ChatMessage{Role: "system", Content: content})
	}

	for _, m := range req.Messages {
		msg := ChatMessage{Role: string(m.Role), Name: m.Name}

		var text string
		for _, b := range m.Content {
			switch b.Kind {
			case ir.ContentText:
				text += b.Text
			case ir.ContentThinking:
				msg.ReasoningContent += b.Thinking
			case ir.ContentToolUse:
				msg.ToolCalls = append(msg.ToolCalls, ToolCallWire{
					ID: b.ToolUseID, Type: "function",
					Function: FunctionCall{Name: b.ToolName, Arguments: b.ToolInput},
				})
			case ir.ContentToolResult:
				msg.Role = "tool"
				msg.ToolCallID = b.ToolUseID
				text = b.ToolResult
			}
		}
		if text != "" || msg.Content == nil {
			raw, err := json.Marshal(text)
			if err != nil {
				return nil, errors.Wrap(err, "marshal message content")
			}
			msg.Content = raw
		}
		wire.Messages = append(wire.Messages, msg)
	}

	for _, t := range req.Tools {
		wire.Tools = append(wire.Tools, ToolWire{
			Type: "function",
			Function: FunctionSpec{
				Name: t.Name, Description: t.Description,
				Parameters: jsonRawOrObject(t.Parameters),
			},
		})
	}

	if req.ToolChoice != nil {
		switch req.ToolChoice.Mode {
		case "auto", "none", "required":
			raw, _ := json.Marshal(req.ToolChoice.Mode)
			wire.ToolChoice = raw
		case "tool":
			raw, err := json.Marshal(map[string]any{"type": "function", "function": map[string]string{"name": req.ToolChoice.Name}})
			if err == nil {
				wire.ToolChoice = raw
			}
		}
	}

	if len(req.StopSequences) > 0 {
		raw, err := json.Marshal(req.StopSequences)
		if err != nil {
			return nil, errors.Wrap(err, "marshal stop sequences")
		}
		wire.Stop = raw
	}

	out, err := json.Marshal(wire)
	if err != nil {
		return nil, errors.Wrap(err, "marshal chat completion request")
	}
	return out, nil
}

func jsonRawOrObject(raw string) json.RawMessage {
	if raw == "" {
		return json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return json.RawMessage(raw)
}
