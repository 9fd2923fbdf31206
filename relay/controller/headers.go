package controller

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/laiskygw/llm-gateway/model"
	relaymodel "github.com/laiskygw/llm-gateway/relay/model"
)

// excludedHeaderNames mirrors spec.md §6's forwarding exclusion set: headers
// the gateway itself interprets, or that are only meaningful hop-to-hop, are
// never relayed to the upstream provider. Matched case-insensitively against
// the lowercased header name.
var excludedHeaderNames = map[string]bool{
	"host":              true,
	"connection":        true,
	"content-length":    true,
	"content-type":      true,
	"authorization":     true,
	"x-api-key":         true,
	"anthropic-version": true,
	"user-agent":        true,
	"origin":            true,
	"referer":           true,
	"cookie":            true,
	"x-provider":        true,
	"reqid":             true,
}

// excludedHeaderPrefixes covers the "accept*" and "sec-*" families spec.md
// §6 names as wildcards.
var excludedHeaderPrefixes = []string{"accept", "sec-"}

// forwardableHeaders implements spec.md §6: every inbound header except the
// excluded set is forwarded verbatim to the upstream provider. Multi-valued
// headers are joined with ", " since ir.Request.ExtraHeaders is a flat map.
func forwardableHeaders(h http.Header) map[string]string {
	out := make(map[string]string)
	for name, values := range h {
		lower := strings.ToLower(name)
		if excludedHeaderNames[lower] {
			continue
		}
		excluded := false
		for _, prefix := range excludedHeaderPrefixes {
			if strings.HasPrefix(lower, prefix) {
				excluded = true
				break
			}
		}
		if excluded || len(values) == 0 {
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

// targetProviderHeader implements spec.md §4.4's "X-Provider header wins"
// rule: the header is logical-provider pinning and is URL-decoded since a
// provider name may contain characters that need escaping in a header value.
func targetProviderHeader(c *gin.Context) string {
	raw := c.GetHeader("X-Provider")
	if raw == "" {
		return ""
	}
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// reqIDHeader extracts and validates the optional ReqId header (spec.md
// §4.6). An invalid shape is a 400, not a silent no-dedup fallback.
func reqIDHeader(c *gin.Context) (string, *relaymodel.ErrorWithStatusCode) {
	reqID := c.GetHeader("ReqId")
	if reqID == "" {
		return "", nil
	}
	if !model.ReqIdPattern.MatchString(reqID) {
		return "", relaymodel.ErrValidation("ReqId does not match the required pattern")
	}
	return reqID, nil
}
