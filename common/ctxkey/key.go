// Package ctxkey centralizes the string keys used to stash per-request
// state on the gin.Context so middleware and handlers agree on names
// without importing each other.
package ctxkey

import "github.com/gin-gonic/gin"

const (
	// ApiKey holds the resolved *model.ApiKey for the current request.
	// Set in: middleware.Authenticate. Read widely for rate limiting, billing, and logs.
	ApiKey = "api_key"

	// ApiKeyId is the numeric id of the authenticated ApiKey.
	ApiKeyId = "api_key_id"

	// RequestModel is the logical model name as requested by the client (e.g. "gpt-4").
	// Invariant: never mutated after the request parser sets it; provider-side remapping
	// happens via the resolved Model row, not by rewriting this value.
	RequestModel = "request_model"

	// TargetProvider is the explicit provider selector, either parsed from the
	// "model@provider" suffix or from the X-Provider header (header wins).
	TargetProvider = "target_provider"

	// ReqId is the caller-supplied idempotency key from the ReqId header.
	ReqId = "req_id"

	// Dialect is the inbound client wire format (openai-chat, openai-responses, anthropic).
	Dialect = "dialect"

	// Candidates holds the ordered []resolver.Candidate chosen for this request.
	Candidates = "candidates"

	// Completion holds the transient *model.Completion owned by the handler until
	// it is surrendered to the completion writer exactly once.
	Completion = "completion"

	// KeyRequestBody caches the raw request body bytes for reuse across middleware.
	KeyRequestBody = gin.BodyBytesKey

	// ClientRequestPayloadLogged marks that the inbound payload was already logged once.
	ClientRequestPayloadLogged = "client_request_payload_logged"

	// RateLimitRPM / RateLimitTPM carry the computed limit/remaining pair so the
	// response-header middleware can emit them after the handler runs.
	RateLimitRPM = "rate_limit_rpm"
	RateLimitTPM = "rate_limit_tpm"
)
