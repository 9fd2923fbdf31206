// Package client builds the shared outbound HTTP clients used to reach
// provider APIs: a relay client for normal requests and an impatient
// short-timeout client for quick metadata/health probes.
package client

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Laisky/zap"

	"github.com/laiskygw/llm-gateway/common/config"
	"github.com/laiskygw/llm-gateway/common/logger"
)

// HTTPClient is the default outbound client used for relay requests.
var HTTPClient *http.Client

// ImpatientHTTPClient is a short-timeout client for quick health checks or metadata requests.
var ImpatientHTTPClient *http.Client

// Init builds the shared HTTP clients with proxy and timeout settings derived from configuration.
// Provider base URLs are validated against SSRF rules immediately before
// each dial (relay/failover.requestURL/EmbeddingsURL, via
// model.Provider.ValidateBaseURL), so the relay transport itself does not
// need a restrictive DialContext the way a user-content fetcher would.
func Init() {
	var transport http.RoundTripper = &http.Transport{}
	if config.RelayProxy != "" {
		logger.Logger.Info("using api relay proxy", zap.String("proxy", config.RelayProxy))
		proxyURL, err := url.Parse(config.RelayProxy)
		if err != nil {
			logger.Logger.Fatal(fmt.Sprintf("RELAY_PROXY set but invalid: %s", config.RelayProxy))
		}
		transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}

	HTTPClient = &http.Client{
		Timeout:   config.RelayTimeout,
		Transport: transport,
	}

	ImpatientHTTPClient = &http.Client{
		Timeout:   5 * time.Second,
		Transport: transport,
	}
}
