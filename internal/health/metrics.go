package health

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/svcbench/pkg/protocol"
)

// Metrics holds the Prometheus instruments for a probe run.
type Metrics struct {
	ConnectionsTotal *prometheus.CounterVec
	RequestsTotal    *prometheus.CounterVec
	ResponsesTotal   *prometheus.CounterVec
	RequestDuration  prometheus.Histogram
}

var _ protocol.ConnObserver = (*Metrics)(nil)

// NewMetrics creates the metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ConnectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "svcbench",
				Name:      "connections_total",
				Help:      "Connections acquired by the HTTP client, by whether they were reused",
			},
			[]string{"reused"},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "svcbench",
				Name:      "requests_total",
				Help:      "Requests sent, by outcome (response or error)",
			},
			[]string{"outcome"},
		),
		ResponsesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "svcbench",
				Name:      "responses_total",
				Help:      "Responses received, by status code",
			},
			[]string{"code"},
		),
		RequestDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "svcbench",
				Name:      "request_duration_seconds",
				Help:      "Request latency histogram",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
			},
		),
	}
}

// ConnAcquired counts a connection handed to a request.
func (m *Metrics) ConnAcquired(reused bool) {
	m.ConnectionsTotal.WithLabelValues(strconv.FormatBool(reused)).Inc()
}

// RecordRequest records the outcome of one SendRequest call. A transport
// error that still carries a status code (redirect limit) also counts
// towards that code.
func (m *Metrics) RecordRequest(stats *protocol.RequestStats, err error, elapsed time.Duration) {
	m.RequestDuration.Observe(elapsed.Seconds())

	if err != nil {
		m.RequestsTotal.WithLabelValues("error").Inc()

		var pe *protocol.Error
		if errors.As(err, &pe) && pe.StatusCode > 0 {
			m.ResponsesTotal.WithLabelValues(strconv.Itoa(pe.StatusCode)).Inc()
		}
		return
	}

	m.RequestsTotal.WithLabelValues("response").Inc()
	if stats != nil {
		m.ResponsesTotal.WithLabelValues(statusCode(stats.Status)).Inc()
	}
}

// statusCode extracts the numeric code from a status line like "200 OK".
func statusCode(status string) string {
	code, _, _ := strings.Cut(status, " ")
	return code
}
