package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "corslight"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// Dispatcher metrics
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	rejectedTotal     *prometheus.CounterVec
	dispatchersActive prometheus.Gauge

	// Storage metrics
	evictionsTotal *prometheus.CounterVec

	// Client metrics
	clientRoundTrip    *prometheus.HistogramVec
	clientOpenRequests prometheus.Gauge
	clientErrorsTotal  *prometheus.CounterVec
}

// NewRegistry creates a registry with every corslight metric registered.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests answered by dispatchers.",
		}, []string{"verb", "result"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time spent handling a request inside the dispatcher.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"verb"}),

		rejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_messages_total",
			Help:      "Inbound messages rejected before reaching a verb handler.",
		}, []string{"reason"}),

		dispatchersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatchers_active",
			Help:      "Dispatchers currently installed.",
		}),

		evictionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Records deleted because their expiry policy fired.",
		}, []string{"reason"}),

		clientRoundTrip: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "round_trip_seconds",
			Help:      "Time from issuing a request to its completion.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"verb", "result"}),

		clientOpenRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "open_requests",
			Help:      "Requests waiting for a response.",
		}),

		clientErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "errors_total",
			Help:      "Inbound messages the client could not attribute to a request.",
		}, []string{"kind"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.requestsTotal,
		r.requestDuration,
		r.rejectedTotal,
		r.dispatchersActive,
		r.evictionsTotal,
		r.clientRoundTrip,
		r.clientOpenRequests,
		r.clientErrorsTotal,
	)

	return r
}

// Registerer exposes the underlying registry for components that bring
// their own collectors.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.registry
}

// Gatherer exposes the underlying registry for tests and custom exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// RecordRequest counts a request answered with the given result
// ("ok" or an error label).
func (r *Registry) RecordRequest(verb, result string) {
	if r == nil {
		return
	}
	r.requestsTotal.WithLabelValues(verb, result).Inc()
}

// ObserveRequestDuration records dispatcher handling latency.
func (r *Registry) ObserveRequestDuration(verb string, seconds float64) {
	if r == nil {
		return
	}
	r.requestDuration.WithLabelValues(verb).Observe(seconds)
}

// RecordRejected counts a message rejected for reason.
func (r *Registry) RecordRejected(reason string) {
	if r == nil {
		return
	}
	r.rejectedTotal.WithLabelValues(reason).Inc()
}

// IncDispatchers increments the installed dispatcher gauge.
func (r *Registry) IncDispatchers() {
	if r == nil {
		return
	}
	r.dispatchersActive.Inc()
}

// DecDispatchers decrements the installed dispatcher gauge.
func (r *Registry) DecDispatchers() {
	if r == nil {
		return
	}
	r.dispatchersActive.Dec()
}

// RecordEviction counts a record evicted for reason.
func (r *Registry) RecordEviction(reason string) {
	if r == nil {
		return
	}
	r.evictionsTotal.WithLabelValues(reason).Inc()
}

// ObserveClientRoundTrip records the latency of a completed client request.
func (r *Registry) ObserveClientRoundTrip(verb, result string, seconds float64) {
	if r == nil {
		return
	}
	r.clientRoundTrip.WithLabelValues(verb, result).Observe(seconds)
}

// SetClientOpenRequests sets the number of requests awaiting a response.
func (r *Registry) SetClientOpenRequests(n int) {
	if r == nil {
		return
	}
	r.clientOpenRequests.Set(float64(n))
}

// RecordClientError counts an inbound message the client rejected.
func (r *Registry) RecordClientError(kind string) {
	if r == nil {
		return
	}
	r.clientErrorsTotal.WithLabelValues(kind).Inc()
}
