package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for fetching and tracking.
type Metrics struct {
	Registry           *prometheus.Registry
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    prometheus.Histogram
	RetriesTotal       prometheus.Counter
	ErrorsTotal        *prometheus.CounterVec
	IdentityBansTotal  prometheus.Counter
	ObservationsTotal  prometheus.Counter
	PagesTotal         prometheus.Counter
	NotificationsTotal prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_requests_total",
			Help: "Total fetch attempts by outcome.",
		},
		[]string{"outcome"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pricewatch_request_duration_seconds",
			Help:    "Latency of single fetch attempts.",
			Buckets: prometheus.DefBuckets,
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pricewatch_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_errors_total",
			Help: "Total number of failed fetches and rejected products by type.",
		},
		[]string{"error_type"},
	)
	bans := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pricewatch_identity_bans_total",
			Help: "Total number of identities banned after a 503.",
		},
	)
	observations := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pricewatch_observations_total",
			Help: "Total number of product observations recorded.",
		},
	)
	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pricewatch_pages_total",
			Help: "Total number of listing pages fetched.",
		},
	)
	notifications := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pricewatch_notifications_total",
			Help: "Total number of price drop events emitted.",
		},
	)

	registry.MustRegister(requests, requestDuration, retries, errorsTotal, bans, observations, pages, notifications)

	return &Metrics{
		Registry:           registry,
		RequestsTotal:      requests,
		RequestDuration:    requestDuration,
		RetriesTotal:       retries,
		ErrorsTotal:        errorsTotal,
		IdentityBansTotal:  bans,
		ObservationsTotal:  observations,
		PagesTotal:         pages,
		NotificationsTotal: notifications,
	}
}

// IncRequest increments the requests counter for an outcome label.
func (m *Metrics) IncRequest(outcome string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveDuration records a fetch attempt duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncBan increments the identity bans counter.
func (m *Metrics) IncBan() {
	if m == nil {
		return
	}
	m.IdentityBansTotal.Inc()
}

// AddObservations adds n recorded observations.
func (m *Metrics) AddObservations(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ObservationsTotal.Add(float64(n))
}

// IncPage increments the listing pages counter.
func (m *Metrics) IncPage() {
	if m == nil {
		return
	}
	m.PagesTotal.Inc()
}

// IncNotification increments the notifications counter.
func (m *Metrics) IncNotification() {
	if m == nil {
		return
	}
	m.NotificationsTotal.Inc()
}
