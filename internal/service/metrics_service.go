package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/course-reg-api/internal/graph"
	"github.com/noah-isme/course-reg-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	allocations     *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	storeSize       *prometheus.GaugeVec

	requestCount         uint64
	requestDurationTotal uint64

	mu                 sync.Mutex
	allocationCounts   map[string]uint64
	notificationCounts map[string]uint64
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

	allocations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "registration_allocations_total",
		Help: "Seat allocation outcomes",
	}, []string{"outcome"})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Notification delivery outcomes",
	}, []string{"outcome"})

	storeSize := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "registration_store_items",
		Help: "Number of items held by each entity store",
	}, []string{"store"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, allocations, notifications, storeSize, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:           registry,
		handler:            handler,
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		allocations:        allocations,
		notifications:      notifications,
		storeSize:          storeSize,
		allocationCounts:   make(map[string]uint64),
		notificationCounts: make(map[string]uint64),
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

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordAllocation counts one allocation outcome.
func (m *MetricsService) RecordAllocation(outcome string) {
	if m == nil {
		return
	}
	m.allocations.WithLabelValues(outcome).Inc()
	m.mu.Lock()
	m.allocationCounts[outcome]++
	m.mu.Unlock()
}

// RecordNotification counts one notification outcome. It is called from
// queue workers.
func (m *MetricsService) RecordNotification(outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(outcome).Inc()
	m.mu.Lock()
	m.notificationCounts[outcome]++
	m.mu.Unlock()
}

// ObserveStores publishes store sizes. Callers must hold the graph lock
// while reading the stats.
func (m *MetricsService) ObserveStores(stats graph.Stats) {
	if m == nil {
		return
	}
	m.storeSize.WithLabelValues("users").Set(float64(stats.Users))
	m.storeSize.WithLabelValues("students").Set(float64(stats.Students))
	m.storeSize.WithLabelValues("courses").Set(float64(stats.Courses))
	m.storeSize.WithLabelValues("indexes").Set(float64(stats.Indexes))
	m.storeSize.WithLabelValues("registrations").Set(float64(stats.Registrations))
}

// Snapshot returns aggregated metrics suitable for the health endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	m.mu.Lock()
	allocations := make(map[string]uint64, len(m.allocationCounts))
	for k, v := range m.allocationCounts {
		allocations[k] = v
	}
	notifications := make(map[string]uint64, len(m.notificationCounts))
	for k, v := range m.notificationCounts {
		notifications[k] = v
	}
	m.mu.Unlock()

	return models.SystemMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		Allocations:              allocations,
		Notifications:            notifications,
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
