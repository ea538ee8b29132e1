// Package metrics holds the prometheus collectors of the host and the HTTP
// middleware that feeds them.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "fnhost"

var (
	responseTime = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_seconds",
			Help:      "HTTP response time by route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	totalHTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests by code, method and route."},
		[]string{"code", "method", "route"},
	)

	specializations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "specializations_total", Help: "Specialize calls by result kind."},
		[]string{"result"},
	)

	specializeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "specialize_seconds",
			Help:      "Time spent loading an artifact.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
	)

	invocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "invocations_total", Help: "Handler invocations by result kind."},
		[]string{"result"},
	)

	invokeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invoke_seconds",
			Help:      "Handler invocation time.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	hostState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: namespace, Name: "state", Help: "1 for the current host state, 0 otherwise."},
		[]string{"state"},
	)
)

func init() {
	prometheus.MustRegister(
		responseTime,
		totalHTTPRequests,
		specializations,
		specializeDuration,
		invocations,
		invokeDuration,
		hostState,
	)
}
