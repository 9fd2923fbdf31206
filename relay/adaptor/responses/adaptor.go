package responses

import (
	"github.com/laiskygw/llm-gateway/model"
	"github.com/laiskygw/llm-gateway/relay/adaptor"
)

// Adaptor is the exported handle; responsesAdaptor (unexported) carries
// the actual method set.
var Adaptor responsesAdaptor

func init() {
	adaptor.Register(adaptor.DialectOpenAIResponses, Adaptor, Adaptor)
	adaptor.RegisterProviderParser(model.ProviderTypeOpenAIResponses, Adaptor)
}
