package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/laiskygw/llm-gateway/common/config"
)

// Init wires GlobalRecorder from the enabled backends. It mirrors the
// teacher's monitor.InitMonitoring fan-out: zero, one, or both recorders can
// be active and RecordX calls always have somewhere safe to go.
func Init() error {
	var recorders []MetricsRecorder

	if config.EnablePrometheusMetrics {
		recorders = append(recorders, NewPrometheusRecorder(prometheus.DefaultRegisterer))
	}

	if config.OpenTelemetryMetricsEnabled {
		otelRecorder, err := NewOtelRecorder()
		if err != nil {
			return err
		}
		recorders = append(recorders, otelRecorder)
	}

	switch len(recorders) {
	case 0:
		GlobalRecorder = &NoOpRecorder{}
	case 1:
		GlobalRecorder = recorders[0]
	default:
		GlobalRecorder = &MultiRecorder{Recorders: recorders}
	}

	return nil
}
