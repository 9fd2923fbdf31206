// Package channeltype describes which client-facing endpoints a provider
// type is capable of serving, and how to interpret OpenAI-compatible
// provider configuration (chat-completions dialect vs. responses dialect).
package channeltype

import (
	"slices"
	"strings"

	"github.com/laiskygw/llm-gateway/model"
	"github.com/laiskygw/llm-gateway/relay/relaymode"
)

// Endpoint represents a client-facing API surface. Its value mirrors the
// corresponding relaymode constant so the two can be compared directly.
type Endpoint int

const (
	EndpointChatCompletions Endpoint = Endpoint(relaymode.ChatCompletions)
	EndpointEmbeddings      Endpoint = Endpoint(relaymode.Embeddings)
	EndpointResponseAPI     Endpoint = Endpoint(relaymode.ResponseAPI)
	EndpointClaudeMessages  Endpoint = Endpoint(relaymode.ClaudeMessages)
)

// EndpointInfo is metadata about an endpoint, useful for admin-facing
// listings of what a given provider configuration supports.
type EndpointInfo struct {
	ID   Endpoint
	Name string
	Path string
}

func AllEndpoints() []EndpointInfo {
	return []EndpointInfo{
		{ID: EndpointChatCompletions, Name: "chat_completions", Path: "/v1/chat/completions"},
		{ID: EndpointEmbeddings, Name: "embeddings", Path: "/v1/embeddings"},
		{ID: EndpointResponseAPI, Name: "response_api", Path: "/v1/responses"},
		{ID: EndpointClaudeMessages, Name: "claude_messages", Path: "/v1/messages"},
	}
}

var endpointNameToID = func() map[string]Endpoint {
	m := make(map[string]Endpoint, 4)
	for _, e := range AllEndpoints() {
		m[e.Name] = e.ID
	}
	return m
}()

var endpointIDToName = func() map[Endpoint]string {
	m := make(map[Endpoint]string, 4)
	for _, e := range AllEndpoints() {
		m[e.ID] = e.Name
	}
	return m
}()

// EndpointNameToID returns -1 if name is not recognized.
func EndpointNameToID(name string) Endpoint {
	if id, ok := endpointNameToID[strings.ToLower(strings.TrimSpace(name))]; ok {
		return id
	}
	return -1
}

func EndpointIDToName(id Endpoint) string {
	return endpointIDToName[id]
}

func ParseEndpointList(names []string) []Endpoint {
	result := make([]Endpoint, 0, len(names))
	for _, name := range names {
		if id := EndpointNameToID(name); id >= 0 {
			result = append(result, id)
		}
	}
	return result
}

func EndpointListToNames(endpoints []Endpoint) []string {
	result := make([]string, 0, len(endpoints))
	for _, id := range endpoints {
		if name := EndpointIDToName(id); name != "" {
			result = append(result, name)
		}
	}
	return result
}

// DefaultEndpointsForProviderType returns the endpoints a freshly
// configured provider of this type supports out of the box.
func DefaultEndpointsForProviderType(t model.ProviderType) []Endpoint {
	switch t {
	case model.ProviderTypeOpenAI:
		return []Endpoint{EndpointChatCompletions, EndpointEmbeddings, EndpointResponseAPI}
	case model.ProviderTypeOpenAIResponses:
		return []Endpoint{EndpointResponseAPI}
	case model.ProviderTypeAnthropic:
		return []Endpoint{EndpointClaudeMessages, EndpointChatCompletions}
	case model.ProviderTypeAzure:
		return []Endpoint{EndpointChatCompletions, EndpointEmbeddings, EndpointResponseAPI}
	case model.ProviderTypeOllama:
		return []Endpoint{EndpointChatCompletions, EndpointEmbeddings}
	default:
		return []Endpoint{EndpointChatCompletions}
	}
}

func IsEndpointSupported(relayMode int, supportedEndpoints []Endpoint) bool {
	return slices.Contains(supportedEndpoints, Endpoint(relayMode))
}

func IsEndpointSupportedByName(endpointName string, supportedEndpointNames []string) bool {
	normalized := strings.ToLower(strings.TrimSpace(endpointName))
	for _, name := range supportedEndpointNames {
		if strings.ToLower(strings.TrimSpace(name)) == normalized {
			return true
		}
	}
	return false
}

func RelayModeToEndpointName(mode int) string {
	return EndpointIDToName(Endpoint(mode))
}
