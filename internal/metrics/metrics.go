package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Queue metrics
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "qworker_queue_depth",
			Help: "Current number of envelopes waiting in the bounded queue",
		},
	)

	QueueCapacity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "qworker_queue_capacity",
			Help: "Configured capacity of the bounded queue",
		},
	)

	QueueEnqueuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qworker_queue_enqueued_total",
			Help: "Total number of envelopes successfully enqueued",
		},
	)

	QueueRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qworker_queue_rejected_total",
			Help: "Total number of envelopes rejected because the queue was full",
		},
	)

	QueueConsumersBusy = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "qworker_queue_consumers_busy",
			Help: "Number of consumer goroutines currently executing an envelope",
		},
	)

	ImmediateInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "qworker_immediate_inflight",
			Help: "Number of immediate-mode executions currently running",
		},
	)

	// Handler dispatch metrics
	HandlerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qworker_handler_requests_total",
			Help: "Total number of handler invocations by handler id and outcome",
		},
		[]string{"handler_id", "outcome"},
	)

	HandlerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qworker_handler_duration_seconds",
			Help:    "Handler execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler_id"},
	)

	// Connection metrics
	ConnectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qworker_connections_total",
			Help: "Total number of TCP connections accepted by the worker",
		},
	)

	DecodeErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qworker_decode_errors_total",
			Help: "Total number of envelopes that failed to decode",
		},
	)

	// Registry metrics
	RegistryPushFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qworker_registry_push_failures_total",
			Help: "Total number of failed registry push operations",
		},
	)

	RegistryRemoveFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qworker_registry_remove_failures_total",
			Help: "Total number of failed registry remove operations",
		},
	)

	// Discovery metrics
	DiscoveryPeersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "qworker_discovery_peers_total",
			Help: "Number of workers currently known to the discovery map",
		},
	)

	DiscoveryAnnouncementsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qworker_discovery_announcements_total",
			Help: "Total number of discovery announcements processed",
		},
	)
)

func init() {
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(QueueCapacity)
	prometheus.MustRegister(QueueEnqueuedTotal)
	prometheus.MustRegister(QueueRejectedTotal)
	prometheus.MustRegister(QueueConsumersBusy)
	prometheus.MustRegister(ImmediateInFlight)
	prometheus.MustRegister(HandlerRequestsTotal)
	prometheus.MustRegister(HandlerDuration)
	prometheus.MustRegister(ConnectionsTotal)
	prometheus.MustRegister(DecodeErrorsTotal)
	prometheus.MustRegister(RegistryPushFailuresTotal)
	prometheus.MustRegister(RegistryRemoveFailuresTotal)
	prometheus.MustRegister(DiscoveryPeersTotal)
	prometheus.MustRegister(DiscoveryAnnouncementsTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
