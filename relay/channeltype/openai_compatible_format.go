package channeltype

import "strings"

// OpenAI-compatible providers can be driven through either the legacy
// chat-completions wire format or the newer responses format; the admin
// picks one per provider via Provider.ApiVersion / a free-text hint.
const (
	OpenAICompatibleAPIFormatChatCompletion = "chat_completion"
	OpenAICompatibleAPIFormatResponse       = "response"
)

// NormalizeOpenAICompatibleAPIFormat accepts loose admin input (casing,
// hyphens, a trailing "_api", a plural "responses") and maps it onto one of
// the two canonical format constants, defaulting to chat-completion.
func NormalizeOpenAICompatibleAPIFormat(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.TrimSuffix(s, "_api")
	s = strings.TrimSuffix(s, "s")

	switch s {
	case "response":
		return OpenAICompatibleAPIFormatResponse
	default:
		return OpenAICompatibleAPIFormatChatCompletion
	}
}

// UseOpenAICompatibleResponseAPI reports whether a provider configured with
// the given format hint should be dispatched through the responses adaptor.
func UseOpenAICompatibleResponseAPI(raw string) bool {
	return NormalizeOpenAICompatibleAPIFormat(raw) == OpenAICompatibleAPIFormatResponse
}
