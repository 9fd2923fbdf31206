// Package relaymodel holds the wire-level error envelope shared by every
// dialect adaptor, mirroring the teacher's relay/model.ErrorWithStatusCode
// so the dialect-aware serializer never has to re-derive an HTTP status
// from a plain Go error.
package relaymodel

import "net/http"

// Error is the payload nested under the dialect-specific error envelope.
type Error struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}

// ErrorWithStatusCode pairs an Error with the HTTP status it must be sent
// with, carried through the pipeline instead of a plain error so the
// dialect serializer can shape the body without guessing the status.
type ErrorWithStatusCode struct {
	Detail     Error `json:"error"`
	StatusCode int   `json:"-"`
	// LocalError marks errors raised before any upstream call happened
	// (auth, validation, resolution, rate limit, dedup) as opposed to a
	// status forwarded verbatim from a provider.
	LocalError bool `json:"-"`
}

// Error satisfies the error interface so an *ErrorWithStatusCode can be
// returned from ordinary (..., error) signatures (e.g. relay/resolver.Resolve)
// and still be recovered with errors.As at the HTTP boundary.
func (e *ErrorWithStatusCode) Error() string {
	return e.Detail.Message
}

const (
	ErrorTypeAuthentication = "authentication_error"
	ErrorTypeInvalidRequest = "invalid_request_error"
	ErrorTypeRateLimit      = "rate_limit_error"
	ErrorTypeNotFound       = "not_found_error"
	ErrorTypeConflict       = "conflict_error"
	ErrorTypeUpstream       = "upstream_error"
	ErrorTypeInternal       = "internal_error"
)

func newErr(status int, errType, code, message string) *ErrorWithStatusCode {
	return &ErrorWithStatusCode{
		StatusCode: status,
		LocalError: true,
		Detail: Error{
			Message: message,
			Type:    errType,
			Code:    code,
		},
	}
}

// ErrUnauthorized builds the spec.md §4.1 "Invalid API key" 401.
func ErrUnauthorized(message string) *ErrorWithStatusCode {
	if message == "" {
		message = "Invalid API key"
	}
	return newErr(http.StatusUnauthorized, ErrorTypeAuthentication, "invalid_api_key", message)
}

// ErrRateLimited builds the spec.md §4.2/§4.3 429.
func ErrRateLimited(message string) *ErrorWithStatusCode {
	if message == "" {
		message = "Rate limit exceeded"
	}
	return newErr(http.StatusTooManyRequests, ErrorTypeRateLimit, "rate_limit_exceeded", message)
}

// ErrValidation builds a spec.md §4 request-parser/schema 400.
func ErrValidation(message string) *ErrorWithStatusCode {
	return newErr(http.StatusBadRequest, ErrorTypeInvalidRequest, "invalid_request", message)
}

// ErrNotFound builds the spec.md §4.4 "no eligible provider" 404.
func ErrNotFound(message string) *ErrorWithStatusCode {
	return newErr(http.StatusNotFound, ErrorTypeNotFound, "model_not_found", message)
}

// ErrDedupConflict builds the spec.md §4.6 in-flight-replay 409. spec.md §7
// requires the conflicting request-id to ride along with the 409 body;
// it's carried in Param since the envelope has no dedicated slot for it.
func ErrDedupConflict(message, reqID string) *ErrorWithStatusCode {
	err := newErr(http.StatusConflict, ErrorTypeConflict, "request_in_flight", message)
	err.Detail.Param = reqID
	return err
}

// ErrUpstreamExhausted builds the spec.md §4.7 "all providers failed" 502.
func ErrUpstreamExhausted(message string) *ErrorWithStatusCode {
	return newErr(http.StatusBadGateway, ErrorTypeUpstream, "all_providers_failed", message)
}

// ErrInternal builds a generic local-fault 500.
func ErrInternal(message string) *ErrorWithStatusCode {
	return newErr(http.StatusInternalServerError, ErrorTypeInternal, "internal_error", message)
}

// FromUpstream wraps a verbatim upstream status/body pair. Non-retriable
// upstream 4xx statuses are forwarded as-is per spec.md §4.7 step 1.d.
func FromUpstream(status int, message string) *ErrorWithStatusCode {
	return &ErrorWithStatusCode{
		StatusCode: status,
		LocalError: false,
		Detail: Error{
			Message: message,
			Type:    ErrorTypeUpstream,
		},
	}
}
