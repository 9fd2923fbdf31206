package openai

import (
	"github.com/laiskygw/llm-gateway/model"
	"github.com/laiskygw/llm-gateway/relay/adaptor"
)

// Adaptor is the exported handle tests/callers can reference directly;
// chatAdaptor (unexported) carries the actual method set.
var Adaptor chatAdaptor

func init() {
	adaptor.Register(adaptor.DialectOpenAIChat, Adaptor, Adaptor)

	// openai, azure, and ollama all speak the chat-completions wire
	// format on the provider side (spec.md §1).
	adaptor.RegisterProviderParser(model.ProviderTypeOpenAI, Adaptor)
	adaptor.RegisterProviderParser(model.ProviderTypeAzure, Adaptor)
	adaptor.RegisterProviderParser(model.ProviderTypeOllama, Adaptor)
}
