package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements MetricsRecorder by registering and updating
// prometheus.Collector instruments against the default registry. Exposing
// them is a matter of mounting promhttp.Handler() on /metrics.
type PrometheusRecorder struct {
	relayRequestDuration *prometheus.HistogramVec
	relayRequestsTotal   *prometheus.CounterVec
	relayTokensTotal     *prometheus.CounterVec

	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
	httpActiveRequests  *prometheus.GaugeVec

	providerHealthy          *prometheus.GaugeVec
	providerResponseTime     *prometheus.GaugeVec
	providerSuccessRate      *prometheus.GaugeVec
	providerRequestsInFlight *prometheus.GaugeVec

	dbQueriesTotal *prometheus.CounterVec

	redisCommandDuration *prometheus.HistogramVec
	redisCommandsTotal   *prometheus.CounterVec

	rateLimitHits *prometheus.CounterVec
	dedupOutcomes *prometheus.CounterVec
	tokenAuths    *prometheus.CounterVec

	errorsTotal *prometheus.CounterVec

	modelUsageDuration *prometheus.HistogramVec
}

// NewPrometheusRecorder builds and registers a PrometheusRecorder against reg.
// Pass prometheus.DefaultRegisterer to expose metrics on the default /metrics handler.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := func(c prometheus.Collector) prometheus.Collector {
		reg.MustRegister(c)
		return c
	}

	r := &PrometheusRecorder{
		relayRequestDuration: factory(prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "gateway_relay_request_duration_seconds",
			Help: "Duration of relay requests in seconds",
		}, []string{"provider_id", "provider_type", "model", "dialect", "success"})).(*prometheus.HistogramVec),
		relayRequestsTotal: factory(prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_relay_requests_total",
			Help: "Total number of relay requests",
		}, []string{"provider_id", "provider_type", "model", "dialect", "success"})).(*prometheus.CounterVec),
		relayTokensTotal: factory(prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_relay_tokens_total",
			Help: "Total tokens accounted in relay requests",
		}, []string{"provider_id", "provider_type", "model", "token_type"})).(*prometheus.CounterVec),
		httpRequestDuration: factory(prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "gateway_http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		}, []string{"path", "method", "status_code"})).(*prometheus.HistogramVec),
		httpRequestsTotal: factory(prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"path", "method", "status_code"})).(*prometheus.CounterVec),
		httpActiveRequests: factory(prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_http_active_requests",
			Help: "Number of active HTTP requests",
		}, []string{"path", "method"})).(*prometheus.GaugeVec),
		providerHealthy: factory(prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_provider_healthy",
			Help: "Provider health (1=healthy, 0=unhealthy)",
		}, []string{"provider_id", "provider_name", "provider_type"})).(*prometheus.GaugeVec),
		providerResponseTime: factory(prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_provider_response_time_ms",
			Help: "Provider response time in milliseconds",
		}, []string{"provider_id", "provider_name", "provider_type"})).(*prometheus.GaugeVec),
		providerSuccessRate: factory(prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_provider_success_rate",
			Help: "Provider rolling success rate (0-1)",
		}, []string{"provider_id", "provider_name", "provider_type"})).(*prometheus.GaugeVec),
		providerRequestsInFlight: factory(prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_provider_requests_in_flight",
			Help: "Requests currently in flight per provider",
		}, []string{"provider_id", "provider_name", "provider_type"})).(*prometheus.GaugeVec),
		dbQueriesTotal: factory(prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_db_queries_total",
			Help: "Total number of database queries",
		}, []string{"operation", "table", "success"})).(*prometheus.CounterVec),
		redisCommandDuration: factory(prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "gateway_redis_command_duration_seconds",
			Help: "Duration of Redis commands in seconds",
		}, []string{"command", "success"})).(*prometheus.HistogramVec),
		redisCommandsTotal: factory(prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_redis_commands_total",
			Help: "Total number of Redis commands",
		}, []string{"command", "success"})).(*prometheus.CounterVec),
		rateLimitHits: factory(prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		}, []string{"limit_type", "identifier"})).(*prometheus.CounterVec),
		dedupOutcomes: factory(prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_dedup_outcomes_total",
			Help: "Total number of request dedup decisions by outcome",
		}, []string{"outcome"})).(*prometheus.CounterVec),
		tokenAuths: factory(prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_token_auth_total",
			Help: "Total number of API key authentication attempts",
		}, []string{"success"})).(*prometheus.CounterVec),
		errorsTotal: factory(prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_errors_total",
			Help: "Total number of errors",
		}, []string{"error_type", "component"})).(*prometheus.CounterVec),
		modelUsageDuration: factory(prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "gateway_model_usage_duration_seconds",
			Help: "Duration of model usage",
		}, []string{"model", "provider_type"})).(*prometheus.HistogramVec),
	}

	return r
}

func (r *PrometheusRecorder) RecordHTTPRequest(startTime time.Time, path, method, statusCode string) {
	r.httpRequestDuration.WithLabelValues(path, method, statusCode).Observe(time.Since(startTime).Seconds())
	r.httpRequestsTotal.WithLabelValues(path, method, statusCode).Inc()
}

func (r *PrometheusRecorder) RecordHTTPActiveRequest(path, method string, delta float64) {
	r.httpActiveRequests.WithLabelValues(path, method).Add(delta)
}

func (r *PrometheusRecorder) RecordRelayRequest(startTime time.Time, providerID int, providerType, model, apiKeyID, dialect string, success bool, promptTokens, completionTokens int) {
	providerIDStr := strconv.Itoa(providerID)
	successStr := strconv.FormatBool(success)
	r.relayRequestDuration.WithLabelValues(providerIDStr, providerType, model, dialect, successStr).Observe(time.Since(startTime).Seconds())
	r.relayRequestsTotal.WithLabelValues(providerIDStr, providerType, model, dialect, successStr).Inc()

	if promptTokens > 0 {
		r.relayTokensTotal.WithLabelValues(providerIDStr, providerType, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		r.relayTokensTotal.WithLabelValues(providerIDStr, providerType, model, "completion").Add(float64(completionTokens))
	}
}

func (r *PrometheusRecorder) UpdateProviderMetrics(providerID int, providerName, providerType string, healthy bool, responseTimeMs int, successRate float64) {
	providerIDStr := strconv.Itoa(providerID)
	healthyVal := 0.0
	if healthy {
		healthyVal = 1.0
	}
	r.providerHealthy.WithLabelValues(providerIDStr, providerName, providerType).Set(healthyVal)
	r.providerResponseTime.WithLabelValues(providerIDStr, providerName, providerType).Set(float64(responseTimeMs))
	r.providerSuccessRate.WithLabelValues(providerIDStr, providerName, providerType).Set(successRate)
}

func (r *PrometheusRecorder) UpdateProviderRequestsInFlight(providerID int, providerName, providerType string, delta float64) {
	r.providerRequestsInFlight.WithLabelValues(strconv.Itoa(providerID), providerName, providerType).Add(delta)
}

func (r *PrometheusRecorder) RecordDBQuery(startTime time.Time, operation, table string, success bool) {
	r.dbQueriesTotal.WithLabelValues(operation, table, strconv.FormatBool(success)).Inc()
}

func (r *PrometheusRecorder) UpdateDBConnectionMetrics(inUse, idle int) {}

func (r *PrometheusRecorder) RecordRedisCommand(startTime time.Time, command string, success bool) {
	successStr := strconv.FormatBool(success)
	r.redisCommandDuration.WithLabelValues(command, successStr).Observe(time.Since(startTime).Seconds())
	r.redisCommandsTotal.WithLabelValues(command, successStr).Inc()
}

func (r *PrometheusRecorder) UpdateRedisConnectionMetrics(active int) {}

func (r *PrometheusRecorder) RecordRateLimitHit(limitType, identifier string) {
	r.rateLimitHits.WithLabelValues(limitType, identifier).Inc()
}

func (r *PrometheusRecorder) UpdateRateLimitRemaining(limitType, identifier string, remaining int) {}

func (r *PrometheusRecorder) RecordDedupOutcome(outcome string) {
	r.dedupOutcomes.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRecorder) RecordTokenAuth(success bool) {
	r.tokenAuths.WithLabelValues(strconv.FormatBool(success)).Inc()
}

func (r *PrometheusRecorder) RecordError(errorType, component string) {
	r.errorsTotal.WithLabelValues(errorType, component).Inc()
}

func (r *PrometheusRecorder) RecordModelUsage(modelName, providerType string, latency time.Duration) {
	r.modelUsageDuration.WithLabelValues(modelName, providerType).Observe(latency.Seconds())
}

func (r *PrometheusRecorder) InitSystemMetrics(version, buildTime, goVersion string, startTime time.Time) {
}
