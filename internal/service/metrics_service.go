package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Student view fetch outcomes.
const (
	FetchOutcomeOK         = "ok"
	FetchOutcomeNotFound   = "not_found"
	FetchOutcomeError      = "error"
	FetchOutcomeSuperseded = "superseded"
)

// MetricsService encapsulates Prometheus instrumentation. A nil *MetricsService is a valid no-op.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	dbQueryDuration  *prometheus.HistogramVec
	viewFetchSeconds prometheus.Histogram
	viewFetchTotal   *prometheus.CounterVec
	feedEvents       *prometheus.CounterVec
	feedDeliveries   prometheus.Counter
	relayUpstream    *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	viewFetchSeconds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "student_view_fetch_duration_seconds",
		Help:    "Duration of a full student view fetch",
		Buckets: prometheus.DefBuckets,
	})

	viewFetchTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "student_view_fetches_total",
		Help: "Student view fetches by outcome",
	}, []string{"outcome"})

	feedEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "change_feed_events_total",
		Help: "Change feed events received by table and operation",
	}, []string{"table", "op"})

	feedDeliveries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "change_feed_deliveries_total",
		Help: "Change feed signals delivered to subscriptions",
	})

	relayUpstream := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tutor_relay_upstream_responses_total",
		Help: "Responses received from the tutoring model provider by status",
	}, []string{"status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, dbQueryDuration, viewFetchSeconds, viewFetchTotal, feedEvents, feedDeliveries, relayUpstream, goroutines)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		dbQueryDuration:  dbQueryDuration,
		viewFetchSeconds: viewFetchSeconds,
		viewFetchTotal:   viewFetchTotal,
		feedEvents:       feedEvents,
		feedDeliveries:   feedDeliveries,
		relayUpstream:    relayUpstream,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// TrackSubscriptions exports the number of open change feed subscriptions.
func (m *MetricsService) TrackSubscriptions(active func() int) {
	if m == nil || active == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "change_feed_subscriptions",
		Help: "Open change feed subscriptions",
	}, func() float64 {
		return float64(active())
	}))
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// ObserveViewFetch records one student view fetch.
func (m *MetricsService) ObserveViewFetch(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.viewFetchTotal.WithLabelValues(outcome).Inc()
	if outcome != FetchOutcomeSuperseded {
		m.viewFetchSeconds.Observe(duration.Seconds())
	}
}

// RecordFeedEvent counts a change feed event and how many subscriptions it reached.
func (m *MetricsService) RecordFeedEvent(table, op string, delivered int) {
	if m == nil {
		return
	}
	m.feedEvents.WithLabelValues(table, op).Inc()
	m.feedDeliveries.Add(float64(delivered))
}

// RecordRelayUpstream counts a provider response status. Transport failures use status 0.
func (m *MetricsService) RecordRelayUpstream(status int) {
	if m == nil {
		return
	}
	m.relayUpstream.WithLabelValues(fmt.Sprintf("%d", status)).Inc()
}
