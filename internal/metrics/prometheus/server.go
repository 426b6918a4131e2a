// Package prometheus implements metrics.ServerMetrics on the shared registry.
package prometheus

import (
	"strconv"

	"github.com/gotcp/httpd/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type serverMetrics struct {
	connectionsAccepted prometheus.Counter
	connectionsRejected prometheus.Counter
	connectionsClosed   prometheus.Counter
	connectionsTimedOut prometheus.Counter
	activeConnections   prometheus.Gauge
	responses           *prometheus.CounterVec
	bytesSent           prometheus.Counter
	queueRejected       prometheus.Counter
}

// NewServerMetrics returns a no-op implementation unless metrics.InitRegistry
// has been called.
func NewServerMetrics() metrics.ServerMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopServerMetrics()
	}

	var reg = metrics.GetRegistry()
	var factory = promauto.With(reg)

	return &serverMetrics{
		connectionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "httpd_connections_accepted_total",
			Help: "Total number of connections accepted",
		}),
		connectionsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "httpd_connections_rejected_total",
			Help: "Total number of connections closed at accept because the server was full",
		}),
		connectionsClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "httpd_connections_closed_total",
			Help: "Total number of connections closed",
		}),
		connectionsTimedOut: factory.NewCounter(prometheus.CounterOpts{
			Name: "httpd_connections_timed_out_total",
			Help: "Total number of idle connections closed by the timer sweep",
		}),
		activeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "httpd_active_connections",
			Help: "Current number of open connections",
		}),
		responses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "httpd_responses_total",
			Help: "Total number of responses by status code",
		}, []string{"status"}),
		bytesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "httpd_bytes_sent_total",
			Help: "Total bytes written to clients, headers and bodies",
		}),
		queueRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "httpd_queue_rejected_total",
			Help: "Total number of requests dropped because the work queue was full",
		}),
	}
}

func (m *serverMetrics) ConnectionAccepted() { m.connectionsAccepted.Inc() }
func (m *serverMetrics) ConnectionRejected() { m.connectionsRejected.Inc() }
func (m *serverMetrics) ConnectionClosed()   { m.connectionsClosed.Inc() }
func (m *serverMetrics) ConnectionTimedOut() { m.connectionsTimedOut.Inc() }

func (m *serverMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

func (m *serverMetrics) ResponseSent(status int) {
	m.responses.WithLabelValues(strconv.Itoa(status)).Inc()
}

func (m *serverMetrics) BytesSent(n int64) {
	if n > 0 {
		m.bytesSent.Add(float64(n))
	}
}

func (m *serverMetrics) QueueRejected() { m.queueRejected.Inc() }
