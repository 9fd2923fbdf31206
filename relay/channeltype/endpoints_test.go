package channeltype

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/laiskygw/llm-gateway/model"
	"github.com/laiskygw/llm-gateway/relay/relaymode"
)

func TestAllEndpointsConsistency(t *testing.T) {
	endpoints := AllEndpoints()
	require.NotEmpty(t, endpoints)

	for _, ep := range endpoints {
		require.NotEmpty(t, ep.Name)
		require.NotEmpty(t, ep.Path)
		require.True(t, ep.ID >= 0)
	}
}

func TestEndpointNameConversion(t *testing.T) {
	testCases := []struct {
		name       string
		expectedID Endpoint
	}{
		{"chat_completions", EndpointChatCompletions},
		{"embeddings", EndpointEmbeddings},
		{"response_api", EndpointResponseAPI},
		{"claude_messages", EndpointClaudeMessages},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expectedID, EndpointNameToID(tc.name))
			require.Equal(t, tc.name, EndpointIDToName(tc.expectedID))
		})
	}

	require.Equal(t, Endpoint(-1), EndpointNameToID("unknown_endpoint"))
	require.Equal(t, "", EndpointIDToName(Endpoint(-999)))
}

func TestDefaultEndpointsForProviderType(t *testing.T) {
	providerTypes := []model.ProviderType{
		model.ProviderTypeOpenAI,
		model.ProviderTypeOpenAIResponses,
		model.ProviderTypeAnthropic,
		model.ProviderTypeAzure,
		model.ProviderTypeOllama,
	}

	for _, pt := range providerTypes {
		t.Run(string(pt), func(t *testing.T) {
			endpoints := DefaultEndpointsForProviderType(pt)
			require.NotEmpty(t, endpoints, "provider type should have default endpoints")
		})
	}
}

func TestOpenAISupportsResponseAPI(t *testing.T) {
	require.Contains(t, DefaultEndpointsForProviderType(model.ProviderTypeOpenAI), EndpointResponseAPI)
}

func TestAnthropicDoesNotSupportEmbeddings(t *testing.T) {
	require.NotContains(t, DefaultEndpointsForProviderType(model.ProviderTypeAnthropic), EndpointEmbeddings)
}

func TestOllamaSupportsEmbeddings(t *testing.T) {
	require.Contains(t, DefaultEndpointsForProviderType(model.ProviderTypeOllama), EndpointEmbeddings)
}

func TestIsEndpointSupported(t *testing.T) {
	supported := []Endpoint{EndpointChatCompletions, EndpointEmbeddings}

	require.True(t, IsEndpointSupported(relaymode.ChatCompletions, supported))
	require.True(t, IsEndpointSupported(relaymode.Embeddings, supported))
	require.False(t, IsEndpointSupported(relaymode.ClaudeMessages, supported))
}

func TestIsEndpointSupportedByName(t *testing.T) {
	supported := []string{"chat_completions", "embeddings", "Response_API"}

	require.True(t, IsEndpointSupportedByName("chat_completions", supported))
	require.True(t, IsEndpointSupportedByName("CHAT_COMPLETIONS", supported))
	require.True(t, IsEndpointSupportedByName("response_api", supported))
	require.False(t, IsEndpointSupportedByName("claude_messages", supported))
}

func TestRelayModeToEndpointName(t *testing.T) {
	require.Equal(t, "chat_completions", RelayModeToEndpointName(relaymode.ChatCompletions))
	require.Equal(t, "embeddings", RelayModeToEndpointName(relaymode.Embeddings))
	require.Equal(t, "response_api", RelayModeToEndpointName(relaymode.ResponseAPI))
	require.Equal(t, "claude_messages", RelayModeToEndpointName(relaymode.ClaudeMessages))
	require.Equal(t, "", RelayModeToEndpointName(relaymode.Unknown))
}

func TestParseEndpointList(t *testing.T) {
	names := []string{"chat_completions", "invalid", "embeddings", "", "response_api"}
	endpoints := ParseEndpointList(names)

	require.Len(t, endpoints, 3)
	require.Contains(t, endpoints, EndpointChatCompletions)
	require.Contains(t, endpoints, EndpointEmbeddings)
	require.Contains(t, endpoints, EndpointResponseAPI)
}

func TestEndpointListToNames(t *testing.T) {
	endpoints := []Endpoint{EndpointChatCompletions, EndpointEmbeddings, Endpoint(-1)}
	names := EndpointListToNames(endpoints)

	require.Len(t, names, 2)
	require.Contains(t, names, "chat_completions")
	require.Contains(t, names, "embeddings")
}
