package anthropic

import (
	"github.com/laiskygw/llm-gateway/model"
	"github.com/laiskygw/llm-gateway/relay/adaptor"
)

// Adaptor is the exported handle; messagesAdaptor (unexported) carries the
// actual method set.
var Adaptor messagesAdaptor

func init() {
	adaptor.Register(adaptor.DialectAnthropic, Adaptor, Adaptor)
	adaptor.RegisterProviderParser(model.ProviderTypeAnthropic, Adaptor)
}
