package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyjia/hr-approval/internal/application/port"
)

const namespace = "hrflow"

// Recorder implements port.MetricsRecorder with Prometheus collectors
type Recorder struct {
	registry *prometheus.Registry

	submissions   *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// NewRecorder creates a recorder with its own registry, including Go runtime and process collectors
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submissions_total",
				Help:      "Total number of submitted requests",
			},
			[]string{"request_type"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Total number of transition attempts by outcome",
			},
			[]string{"request_type", "action", "outcome"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Total number of notification deliveries by channel",
			},
			[]string{"channel", "outcome"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	r.registry.MustRegister(
		r.submissions,
		r.transitions,
		r.notifications,
		r.httpRequests,
		r.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// RecordSubmission implements port.MetricsRecorder
func (r *Recorder) RecordSubmission(requestType string) {
	r.submissions.WithLabelValues(requestType).Inc()
}

// RecordTransition implements port.MetricsRecorder
func (r *Recorder) RecordTransition(requestType, action, outcome string) {
	r.transitions.WithLabelValues(requestType, action, outcome).Inc()
}

// RecordNotification implements port.MetricsRecorder
func (r *Recorder) RecordNotification(channel, outcome string) {
	r.notifications.WithLabelValues(channel, outcome).Inc()
}

// RecordHTTPRequest records one served API request. path is the route template.
func (r *Recorder) RecordHTTPRequest(method, path string, status int, seconds float64) {
	r.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, path).Observe(seconds)
}

// Registry returns the registry the collectors are registered on
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler returns the Prometheus exposition handler
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Verify interface compliance
var _ port.MetricsRecorder = (*Recorder)(nil)
