package relaymode

import "strings"

// GetByPath maps an inbound request path to a relay mode. A query string and
// a trailing slash are ignored.
func GetByPath(path string) int {
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		path = path[:idx]
	}
	path = strings.TrimSuffix(path, "/")

	switch {
	case strings.HasSuffix(path, "/chat/completions"):
		return ChatCompletions
	case strings.HasSuffix(path, "/embeddings"):
		return Embeddings
	case strings.Contains(path, "/responses"):
		return ResponseAPI
	case strings.Contains(path, "/messages"):
		return ClaudeMessages
	default:
		return Unknown
	}
}
