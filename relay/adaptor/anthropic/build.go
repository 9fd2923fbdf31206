package anthropic

import (
	"encoding/json"

	"github.com/Laisky/errors/v2"

	"github.com/laiskygw/llm-gateway/relay/ir"
)

// BuildRequestBody implements adaptor.ProviderParser: renders the IR
// request as an Anthropic /v1/messages body for the failover executor to
// send upstream.
func (messagesAdaptor) BuildRequestBody(req *ir.Request) ([]byte, error) {
	wire := MessagesRequest{
		Model:         req.Model,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		TopK:          req.TopK,
		Stream:        req.Stream,
		StopSequences: req.StopSequences,
	}
	if wire.MaxTokens == 0 {
		wire.MaxTokens = 4096
	}

	if req.System != "" {
		raw, err := json.Marshal(req.System)
		if err != nil {
			return nil, errors.Wrap(err, "marshal system prompt")
		}
		wire.System = raw
	}

	for _, m := range req.Messages {
		if m.Role == ir.RoleSystem {
			continue
		}
		msg := MessageWire{Role: string(m.Role)}
		for _, b := range m.Content {
			switch b.Kind {
			case ir.ContentText:
				msg.Content = append(msg.Content, ContentBlockWire{Type: "text", Text: b.Text})
			case ir.ContentThinking:
				msg.Content = append(msg.Content, ContentBlockWire{
					Type: "thinking", Thinking: b.Thinking, Signature: b.Signature,
				})
			case ir.ContentToolUse:
				msg.Content = append(msg.Content, ContentBlockWire{
					Type: "tool_use", ID: b.ToolUseID, Name: b.ToolName,
					Input: jsonRawOrEmptyObject(b.ToolInput),
				})
			case ir.ContentToolResult:
				msg.Role = "user"
				content, err := json.Marshal(b.ToolResult)
				if err != nil {
					return nil, errors.Wrap(err, "marshal tool result")
				}
				msg.Content = append(msg.Content, ContentBlockWire{
					Type: "tool_result", ToolUseID: b.ToolUseID, Content: content, IsError: b.ToolIsError,
				})
			case ir.ContentImage:
				src := &ImageSource{MediaType: b.MediaType}
				if b.ImageB64 != "" {
					src.Type, src.Data = "base64", b.ImageB64
				} else {
					src.Type, src.URL = "url", b.ImageURL
				}
				msg.Content = append(msg.Content, ContentBlockWire{Type: "image", Source: src})
			}
		}
		wire.Messages = append(wire.Messages, msg)
	}

	for _, t := range req.Tools {
		wire.Tools = append(wire.Tools, ToolWire{
			Name: t.Name, Description: t.Description, InputSchema: jsonRawOrEmptyObject(t.Parameters),
		})
	}

	if req.ToolChoice != nil {
		switch req.ToolChoice.Mode {
		case "auto":
			wire.ToolChoice = &ToolChoiceWire{Type: "auto"}
		case "required":
			wire.ToolChoice = &ToolChoiceWire{Type: "any"}
		case "none":
			wire.ToolChoice = &ToolChoiceWire{Type: "none"}
		case "tool":
			wire.ToolChoice = &ToolChoiceWire{Type: "tool", Name: req.ToolChoice.Name}
		}
	}

	out, err := json.Marshal(wire)
	if err != nil {
		return nil, errors.Wrap(err, "marshal messages request")
	}
	return out, nil
}

func jsonRawOrEmptyObject(raw string) json.RawMessage {
	if raw == "" {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(raw)
}
