package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

var resolverErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "event_scheduler_resolver_errors_total",
	Help: "GraphQL resolver failures by root field and error code.",
}, []string{"field", "code"})

type requestMetrics struct {
	logger         *log.Logger
	start          time.Time
	requestID      string
	operation      string
	decodeDuration time.Duration
	execDuration   time.Duration
	encodeDuration time.Duration
	errorCount     int
	errorStage     string
}

func newRequestMetrics(logger *log.Logger, requestID string) *requestMetrics {
	return &requestMetrics{
		logger:    logger,
		start:     time.Now(),
		requestID: requestID,
	}
}

func (m *requestMetrics) ObserveDecode(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.decodeDuration = duration
}

func (m *requestMetrics) ObserveExec(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.execDuration = duration
}

func (m *requestMetrics) ObserveEncode(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.encodeDuration = duration
}

func (m *requestMetrics) SetOperation(name string) {
	m.operation = name
}

func (m *requestMetrics) SetErrorCount(count int) {
	if count < 0 {
		count = 0
	}
	m.errorCount = count
}

func (m *requestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *requestMetrics) Log(status int, err error) {
	if m == nil || m.logger == nil {
		return
	}

	fields := log.Fields{
		"route":       graphqlRoute,
		"status":      status,
		"total_ms":    durationToMillis(time.Since(m.start)),
		"error_count": m.errorCount,
	}

	if m.operation != "" {
		fields["operation"] = m.operation
	}
	if m.requestID != "" {
		fields["request_id"] = m.requestID
	}
	if m.decodeDuration > 0 {
		fields["decode_ms"] = durationToMillis(m.decodeDuration)
	}
	if m.execDuration > 0 {
		fields["exec_ms"] = durationToMillis(m.execDuration)
	}
	if m.encodeDuration > 0 {
		fields["encode_ms"] = durationToMillis(m.encodeDuration)
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	m.logger.WithFields(fields).Info("graphql.request.metrics")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
