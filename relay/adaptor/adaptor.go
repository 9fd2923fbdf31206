// Package adaptor defines the RequestAdaptor/ResponseAdaptor contracts
// (spec.md §4.5, §9) and the dispatch tables that select a concrete
// implementation by client dialect and by provider type. The per-dialect
// and per-provider-type implementations live in the sibling openai/,
// anthropic/, and responses/ packages; this package only wires them
// together so relay/controller never branches on dialect itself.
package adaptor

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/laiskygw/llm-gateway/common/ctxkey"
	"github.com/laiskygw/llm-gateway/relay/ir"
	"github.com/laiskygw/llm-gateway/model"
)

// SplitModelProvider splits the "model@provider" suffix convention
// (spec.md §4.4 step 1) shared across all three client dialects.
func SplitModelProvider(requested string) (systemName, provider string) {
	if idx := strings.LastIndexByte(requested, '@'); idx >= 0 {
		return requested[:idx], requested[idx+1:]
	}
	return requested, ""
}

// Dialect identifies a client-facing wire format (spec.md §4.5).
type Dialect string

const (
	DialectOpenAIChat      Dialect = "openai-chat"
	DialectOpenAIResponses Dialect = "openai-responses"
	DialectAnthropic       Dialect = "anthropic"
)

// RequestAdaptor converts between a client dialect's wire request and the
// IR, and builds the provider-native HTTP request from the IR once a
// candidate provider has been resolved.
type RequestAdaptor interface {
	// ParseRequest validates+extracts the inbound body into the IR
	// (spec.md §4.5 "Request" direction). body is the raw JSON.
	ParseRequest(body []byte) (*ir.Request, error)

	// LogicalModel extracts (systemName, providerSelector) from the parsed
	// body without fully validating it, used by the "model@provider"
	// parse step ahead of §4.4 resolution.
	LogicalModel(body []byte) (systemName, providerSelector string, err error)
}

// ProviderParser converts a provider's native response (unary or
// streaming) into the IR. Selected by provider type, NOT by client
// dialect, since the provider actually serving a request need not match
// the dialect the client spoke (e.g. a client on /v1/chat/completions may
// be routed to an anthropic-type provider -- spec.md §4.4/§4.7).
type ProviderParser interface {
	// BuildRequestBody renders the IR request in this provider type's
	// native wire shape, for the failover executor to send upstream.
	BuildRequestBody(req *ir.Request) ([]byte, error)

	// ParseUnary decodes a provider's complete JSON body into the IR response.
	ParseUnary(providerType model.ProviderType, body []byte) (*ir.Response, error)

	// NewStreamParser returns a fresh, single-stream parser for one
	// provider HTTP response. Parsing state (which content-block indices
	// have already been opened, OpenAI's implicit block boundaries, etc.)
	// lives on the returned value, never on the ProviderParser itself, so
	// one adaptor instance safely serves many concurrent streams
	// (spec.md §9: "streaming as a state machine, not callbacks").
	NewStreamParser(providerType model.ProviderType) StreamParser
}

// ClientSerializer renders the IR back into one client dialect's wire
// shape (spec.md §4.5 "Response" direction). Selected by client dialect.
type ClientSerializer interface {
	// SerializeUnary renders the IR response in this adaptor's client dialect.
	SerializeUnary(resp *ir.Response) ([]byte, error)

	// SerializeStreamEvent renders one IR stream event as zero or more
	// complete SSE frames ("event: ...\ndata: ...\n\n" or "data: ...\n\n")
	// in this adaptor's client dialect. Returning nil means "nothing to
	// forward for this event in this dialect".
	SerializeStreamEvent(ev ir.StreamEvent) ([]byte, error)

	// StreamTerminator returns the trailing frame emitted once after the
	// last event (chat/responses: "data: [DONE]\n\n"; anthropic: nil).
	StreamTerminator() []byte
}

// ResponseAdaptor is the union every dialect package's struct actually
// implements; Register accepts it and stores it in the client-serializer
// table; RegisterProviderParser accepts it for the provider-type table.
type ResponseAdaptor interface {
	ProviderParser
	ClientSerializer
}

// StreamParser decodes successive provider SSE "data:" payloads (already
// stripped of the "data:" prefix and surrounding whitespace) for a single
// provider HTTP response into zero or more IR stream events per call. A
// single provider frame may fan out to several IR events (e.g. one OpenAI
// chat chunk can open and fill a content block in the same frame).
type StreamParser interface {
	ParseChunk(raw []byte) ([]ir.StreamEvent, error)
}

var requestAdaptors = map[Dialect]RequestAdaptor{}
var clientSerializers = map[Dialect]ClientSerializer{}
var providerParsers = map[model.ProviderType]ProviderParser{}

// Register is called from each dialect sub-package's init() to populate the
// client-facing dispatch tables, mirroring the teacher's
// relay.GetAdaptor(channelType) table-lookup pattern (spec.md §4.5
// implementation notes) without an import cycle (adaptor/openai imports
// adaptor, not the reverse).
func Register(d Dialect, req RequestAdaptor, resp ResponseAdaptor) {
	requestAdaptors[d] = req
	clientSerializers[d] = resp
}

// RegisterProviderParser populates the provider-type dispatch table used
// to parse an upstream's native response regardless of which client
// dialect the caller is being served in (spec.md §4.4: the resolved
// provider need not match the inbound dialect).
func RegisterProviderParser(t model.ProviderType, parser ProviderParser) {
	providerParsers[t] = parser
}

// ForRequest returns the RequestAdaptor for a client dialect.
func ForRequest(d Dialect) (RequestAdaptor, error) {
	a, ok := requestAdaptors[d]
	if !ok {
		return nil, fmt.Errorf("no request adaptor registered for dialect %q", d)
	}
	return a, nil
}

// ForResponse returns the ClientSerializer for a client dialect.
func ForResponse(d Dialect) (ClientSerializer, error) {
	a, ok := clientSerializers[d]
	if !ok {
		return nil, fmt.Errorf("no response serializer registered for dialect %q", d)
	}
	return a, nil
}

// ForProvider returns the ProviderParser for a provider type.
func ForProvider(t model.ProviderType) (ProviderParser, error) {
	a, ok := providerParsers[t]
	if !ok {
		return nil, fmt.Errorf("no provider parser registered for provider type %q", t)
	}
	return a, nil
}

// DialectFromContextValue narrows a loosely-typed gin-context value (set
// by middleware) back to a Dialect.
func DialectFromContextValue(v any) (Dialect, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	return Dialect(s), true
}

// ContextKey re-exports ctxkey.Dialect so callers don't need a second import.
const ContextKey = ctxkey.Dialect

// ProviderRequestBuilder builds the provider-native *http.Request for one
// failover attempt against one candidate. No type implements it: relay/failover
// builds requests with its own functions (requestURL, setAuthHeader), since
// URL and headers differ by provider type, not by client dialect.
type ProviderRequestBuilder interface {
	Build(providerType model.ProviderType, baseURL, apiKey, apiVersion string, req *ir.Request, extraHeaders map[string]string) (*http.Request, error)
}
