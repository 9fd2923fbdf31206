// Package config holds process-wide settings read once from the environment
// at startup, following the teacher's package-level-var convention so the
// rest of the codebase can read config.X directly instead of threading a
// struct through every call.
package config

import (
	"os"
	"strconv"
	"time"
)

var (
	// Port is the HTTP listen port.
	Port = "3000"

	// AdminSuperSecret is the admin-surface secret (the admin surface itself is
	// out of scope and no middleware checks it). common.deriveSecretKey derives
	// the Provider.apiKey encryption key from it.
	AdminSuperSecret = ""

	// DatabaseURL is the GORM DSN. Empty means "use sqlite at ./data/gateway.db".
	DatabaseURL = ""

	// RedisURL backs the per-key and per-model rate limiters.
	RedisURL = "redis://127.0.0.1:6379/0"

	// DefaultRateLimit is the default model token-bucket capacity (§4.3).
	DefaultRateLimit = 60

	// DefaultRefillRate is the default model token-bucket refill rate, tokens/sec.
	DefaultRefillRate = 1.0

	// AllowedOrigins is the raw comma-separated CORS allow-list.
	AllowedOrigins = "*"

	// InitConfigPath / InitConfigJSON / EnableInitConfig / ForciblyAddAPIKey are
	// read from the environment, but nothing in the gateway acts on them: no
	// providers, models or keys are seeded at boot.
	InitConfigPath    = ""
	InitConfigJSON    = ""
	EnableInitConfig  = false
	ForciblyAddAPIKey = false

	// FrontendDir is unused by the core gateway (static file serving is out of
	// scope) but is still read so deployments that set it don't get an unknown-env warning.
	FrontendDir = ""

	// MaxProviderAttempts / SameProviderRetries / RelayTimeout implement §4.7.
	MaxProviderAttempts = 3
	SameProviderRetries = 1
	RelayTimeout        = 120 * time.Second

	// RelayProxy optionally routes all outbound provider traffic through a
	// forward proxy (e.g. to reach providers unreachable from the gateway's network).
	RelayProxy = ""

	// DebugEnabled toggles verbose request/response body logging.
	DebugEnabled = false

	// EnablePrometheusMetrics / OpenTelemetryMetricsEnabled toggle the two
	// MetricsRecorder implementations; either, both, or neither may run.
	EnablePrometheusMetrics   = true
	OpenTelemetryMetricsEnabled = false

	// BlockInternalProviderRequests guards admin-configured Provider baseUrls
	// against SSRF to loopback/private/link-local ranges before the failover
	// executor dials them (spec.md §5-8). Mirrors the teacher's
	// BlockInternalUserContentRequests toggle; disable only for local
	// deployments that intentionally point a Provider at a private endpoint
	// (e.g. a self-hosted Ollama on localhost).
	BlockInternalProviderRequests = true
)

// Init populates the package vars from the environment. Call once from main
// after godotenv.Load.
func Init() {
	Port = getenv("PORT", Port)
	AdminSuperSecret = getenv("ADMIN_SUPER_SECRET", AdminSuperSecret)
	DatabaseURL = getenv("DATABASE_URL", DatabaseURL)
	RedisURL = getenv("REDIS_URL", RedisURL)
	AllowedOrigins = getenv("ALLOWED_ORIGINS", AllowedOrigins)
	InitConfigPath = getenv("INIT_CONFIG_PATH", InitConfigPath)
	InitConfigJSON = getenv("INIT_CONFIG_JSON", InitConfigJSON)
	FrontendDir = getenv("FRONTEND_DIR", FrontendDir)
	RelayProxy = getenv("RELAY_PROXY", RelayProxy)
	DebugEnabled = getenvBool("DEBUG", DebugEnabled)
	EnableInitConfig = getenvBool("ENABLE_INIT_CONFIG", EnableInitConfig)
	ForciblyAddAPIKey = getenvBool("FORCILY_ADD_API_KEYS", ForciblyAddAPIKey)
	DefaultRateLimit = getenvInt("DEFAULT_RATE_LIMIT", DefaultRateLimit)
	EnablePrometheusMetrics = getenvBool("ENABLE_PROMETHEUS_METRICS", EnablePrometheusMetrics)
	OpenTelemetryMetricsEnabled = getenvBool("ENABLE_OTEL_METRICS", OpenTelemetryMetricsEnabled)
	BlockInternalProviderRequests = getenvBool("BLOCK_INTERNAL_PROVIDER_REQUESTS", BlockInternalProviderRequests)
	if v := os.Getenv("DEFAULT_REFILL_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			DefaultRefillRate = f
		}
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
