package metrics

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OtelRecorder implements MetricsRecorder on top of the OpenTelemetry metric
// API. It only records instruments; exporting them is left to whatever
// exporter the deployment wires into the global MeterProvider.
type OtelRecorder struct {
	meter metric.Meter

	relayRequestDuration metric.Float64Histogram
	relayRequestsTotal   metric.Int64Counter
	relayTokensUsed      metric.Int64Counter

	httpRequestDuration metric.Float64Histogram
	httpRequestsTotal   metric.Int64Counter
	httpActiveRequests  metric.Float64UpDownCounter

	providerHealthy          metric.Int64Gauge
	providerResponseTime     metric.Int64Gauge
	providerSuccessRate      metric.Float64Gauge
	providerRequestsInFlight metric.Float64UpDownCounter

	dbQueriesTotal metric.Int64Counter

	redisCommandDuration metric.Float64Histogram
	redisCommandsTotal   metric.Int64Counter

	rateLimitHits metric.Int64Counter
	dedupOutcomes metric.Int64Counter
	tokenAuths    metric.Int64Counter

	errorsTotal metric.Int64Counter

	modelUsageDuration metric.Float64Histogram
}

// NewOtelRecorder creates a new OtelRecorder bound to the global MeterProvider.
func NewOtelRecorder() (*OtelRecorder, error) {
	meter := otel.Meter("llm-gateway")
	r := &OtelRecorder{meter: meter}

	var err error
	if r.relayRequestDuration, err = meter.Float64Histogram("gateway_relay_request_duration_seconds", metric.WithDescription("Duration of relay requests in seconds")); err != nil {
		return nil, err
	}
	if r.relayRequestsTotal, err = meter.Int64Counter("gateway_relay_requests_total", metric.WithDescription("Total number of relay requests")); err != nil {
		return nil, err
	}
	if r.relayTokensUsed, err = meter.Int64Counter("gateway_relay_tokens_total", metric.WithDescription("Total tokens accounted in relay requests")); err != nil {
		return nil, err
	}
	if r.httpRequestDuration, err = meter.Float64Histogram("gateway_http_request_duration_seconds", metric.WithDescription("Duration of HTTP requests in seconds")); err != nil {
		return nil, err
	}
	if r.httpRequestsTotal, err = meter.Int64Counter("gateway_http_requests_total", metric.WithDescription("Total number of HTTP requests")); err != nil {
		return nil, err
	}
	if r.httpActiveRequests, err = meter.Float64UpDownCounter("gateway_http_active_requests", metric.WithDescription("Number of active HTTP requests")); err != nil {
		return nil, err
	}
	if r.providerHealthy, err = meter.Int64Gauge("gateway_provider_healthy", metric.WithDescription("Provider health (1=healthy, 0=unhealthy)")); err != nil {
		return nil, err
	}
	if r.providerResponseTime, err = meter.Int64Gauge("gateway_provider_response_time_ms", metric.WithDescription("Provider response time in milliseconds")); err != nil {
		return nil, err
	}
	if r.providerSuccessRate, err = meter.Float64Gauge("gateway_provider_success_rate", metric.WithDescription("Provider rolling success rate (0-1)")); err != nil {
		return nil, err
	}
	if r.providerRequestsInFlight, err = meter.Float64UpDownCounter("gateway_provider_requests_in_flight", metric.WithDescription("Requests currently in flight per provider")); err != nil {
		return nil, err
	}
	if r.dbQueriesTotal, err = meter.Int64Counter("gateway_db_queries_total", metric.WithDescription("Total number of database queries")); err != nil {
		return nil, err
	}
	if r.redisCommandDuration, err = meter.Float64Histogram("gateway_redis_command_duration_seconds", metric.WithDescription("Duration of Redis commands in seconds")); err != nil {
		return nil, err
	}
	if r.redisCommandsTotal, err = meter.Int64Counter("gateway_redis_commands_total", metric.WithDescription("Total number of Redis commands")); err != nil {
		return nil, err
	}
	if r.rateLimitHits, err = meter.Int64Counter("gateway_rate_limit_hits_total", metric.WithDescription("Total number of rate limit rejections")); err != nil {
		return nil, err
	}
	if r.dedupOutcomes, err = meter.Int64Counter("gateway_dedup_outcomes_total", metric.WithDescription("Total number of request dedup decisions by outcome")); err != nil {
		return nil, err
	}
	if r.tokenAuths, err = meter.Int64Counter("gateway_token_auth_total", metric.WithDescription("Total number of API key authentication attempts")); err != nil {
		return nil, err
	}
	if r.errorsTotal, err = meter.Int64Counter("gateway_errors_total", metric.WithDescription("Total number of errors")); err != nil {
		return nil, err
	}
	if r.modelUsageDuration, err = meter.Float64Histogram("gateway_model_usage_duration_seconds", metric.WithDescription("Duration of model usage")); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *OtelRecorder) RecordHTTPRequest(startTime time.Time, path, method, statusCode string) {
	ctx := context.Background()
	attrs := []attribute.KeyValue{
		attribute.String("path", path),
		attribute.String("method", method),
		attribute.String("status_code", statusCode),
	}
	r.httpRequestDuration.Record(ctx, time.Since(startTime).Seconds(), metric.WithAttributes(attrs...))
	r.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (r *OtelRecorder) RecordHTTPActiveRequest(path, method string, delta float64) {
	r.httpActiveRequests.Add(context.Background(), delta, metric.WithAttributes(
		attribute.String("path", path),
		attribute.String("method", method),
	))
}

func (r *OtelRecorder) RecordRelayRequest(startTime time.Time, providerID int, providerType, model, apiKeyID, dialect string, success bool, promptTokens, completionTokens int) {
	ctx := context.Background()
	attrs := []attribute.KeyValue{
		attribute.String("provider_id", strconv.Itoa(providerID)),
		attribute.String("provider_type", providerType),
		attribute.String("model", model),
		attribute.String("api_key_id", apiKeyID),
		attribute.String("dialect", dialect),
		attribute.Bool("success", success),
	}
	r.relayRequestDuration.Record(ctx, time.Since(startTime).Seconds(), metric.WithAttributes(attrs...))
	r.relayRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	if promptTokens > 0 {
		r.relayTokensUsed.Add(ctx, int64(promptTokens), metric.WithAttributes(append(attrs, attribute.String("token_type", "prompt"))...))
	}
	if completionTokens > 0 {
		r.relayTokensUsed.Add(ctx, int64(completionTokens), metric.WithAttributes(append(attrs, attribute.String("token_type", "completion"))...))
	}
}

func (r *OtelRecorder) UpdateProviderMetrics(providerID int, providerName, providerType string, healthy bool, responseTimeMs int, successRate float64) {
	ctx := context.Background()
	attrs := []attribute.KeyValue{
		attribute.String("provider_id", strconv.Itoa(providerID)),
		attribute.String("provider_name", providerName),
		attribute.String("provider_type", providerType),
	}
	healthyVal := int64(0)
	if healthy {
		healthyVal = 1
	}
	r.providerHealthy.Record(ctx, healthyVal, metric.WithAttributes(attrs...))
	r.providerResponseTime.Record(ctx, int64(responseTimeMs), metric.WithAttributes(attrs...))
	r.providerSuccessRate.Record(ctx, successRate, metric.WithAttributes(attrs...))
}

func (r *OtelRecorder) UpdateProviderRequestsInFlight(providerID int, providerName, providerType string, delta float64) {
	r.providerRequestsInFlight.Add(context.Background(), delta, metric.WithAttributes(
		attribute.String("provider_id", strconv.Itoa(providerID)),
		attribute.String("provider_name", providerName),
		attribute.String("provider_type", providerType),
	))
}

func (r *OtelRecorder) RecordDBQuery(startTime time.Time, operation, table string, success bool) {
	r.dbQueriesTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("table", table),
		attribute.Bool("success", success),
	))
}

func (r *OtelRecorder) UpdateDBConnectionMetrics(inUse, idle int) {}

func (r *OtelRecorder) RecordRedisCommand(startTime time.Time, command string, success bool) {
	ctx := context.Background()
	attrs := []attribute.KeyValue{
		attribute.String("command", command),
		attribute.Bool("success", success),
	}
	r.redisCommandDuration.Record(ctx, time.Since(startTime).Seconds(), metric.WithAttributes(attrs...))
	r.redisCommandsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (r *OtelRecorder) UpdateRedisConnectionMetrics(active int) {}

func (r *OtelRecorder) RecordRateLimitHit(limitType, identifier string) {
	r.rateLimitHits.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("limit_type", limitType),
		attribute.String("identifier", identifier),
	))
}

func (r *OtelRecorder) UpdateRateLimitRemaining(limitType, identifier string, remaining int) {}

func (r *OtelRecorder) RecordDedupOutcome(outcome string) {
	r.dedupOutcomes.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (r *OtelRecorder) RecordTokenAuth(success bool) {
	r.tokenAuths.Add(context.Background(), 1, metric.WithAttributes(attribute.Bool("success", success)))
}

func (r *OtelRecorder) RecordError(errorType, component string) {
	r.errorsTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("error_type", errorType),
		attribute.String("component", component),
	))
}

func (r *OtelRecorder) RecordModelUsage(modelName, providerType string, latency time.Duration) {
	r.modelUsageDuration.Record(context.Background(), latency.Seconds(), metric.WithAttributes(
		attribute.String("model", modelName),
		attribute.String("provider_type", providerType),
	))
}

func (r *OtelRecorder) InitSystemMetrics(version, buildTime, goVersion string, startTime time.Time) {
}
