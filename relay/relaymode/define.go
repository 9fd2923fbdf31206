// Package relaymode identifies which client-facing API surface a request
// arrived on, independent of which provider eventually serves it.
package relaymode

const (
	Unknown = iota
	ChatCompletions
	Embeddings
	// ResponseAPI is for OpenAI Responses API direct requests.
	ResponseAPI
	// ClaudeMessages is for Anthropic Messages API direct requests.
	ClaudeMessages
)

func String(mode int) string {
	switch mode {
	case ChatCompletions:
		return "chat"
	case Embeddings:
		return "embedding"
	case ResponseAPI:
		return "response_api"
	case ClaudeMessages:
		return "claude_messages"
	default:
		return "unknown"
	}
}
