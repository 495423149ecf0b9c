package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imageforge",
			Name:      "generations_total",
			Help:      "Image generation attempts by outcome",
		},
		[]string{"model", "provider", "outcome"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "imageforge",
			Name:      "generation_duration_seconds",
			Help:      "Provider call duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider"},
	)

	CreditsDebitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "imageforge",
			Name:      "credits_debited_total",
			Help:      "Credits spent on generations",
		},
	)

	CreditsRefundedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "imageforge",
			Name:      "credits_refunded_total",
			Help:      "Credits returned after failed generations",
		},
	)

	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imageforge",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "imageforge",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method", "route"},
	)
)

// RecordGeneration records one pipeline outcome and, when the provider was
// called, its latency.
func RecordGeneration(model, provider, outcome string, providerTime time.Duration) {
	GenerationsTotal.WithLabelValues(model, provider, outcome).Inc()
	if providerTime > 0 {
		GenerationDuration.WithLabelValues(provider).Observe(providerTime.Seconds())
	}
}

func RecordDebit(credits int) {
	CreditsDebitedTotal.Add(float64(credits))
}

func RecordRefund(credits int) {
	CreditsRefundedTotal.Add(float64(credits))
}

// RecordRequest records an HTTP request
func RecordRequest(method, route string, status int, d time.Duration) {
	RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
