package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/kidcode-rewards-api/internal/models"
)

// MetricsService owns the Prometheus registry for HTTP, cache and reward
// instrumentation. A nil *MetricsService is a valid no-op.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	cacheWrite      prometheus.Histogram
	cacheLookups    *prometheus.CounterVec
	xpAwarded       *prometheus.CounterVec
	xpEvents        *prometheus.CounterVec
	badgesAwarded   *prometheus.CounterVec
	enrichFailures  *prometheus.CounterVec
	periodResets    *prometheus.CounterVec
}

// NewMetricsService registers the collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache lookups",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_write_seconds",
			Help:    "Latency for cache writes",
			Buckets: prometheus.DefBuckets,
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups by result",
		}, []string{"result"}),
		xpAwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rewards_xp_awarded_total",
			Help: "XP credited to students by activity type",
		}, []string{"activity"}),
		xpEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rewards_xp_events_total",
			Help: "Ledger writes by activity type and outcome",
		}, []string{"activity", "outcome"}),
		badgesAwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rewards_badges_awarded_total",
			Help: "Badges awarded by badge id",
		}, []string{"badge"}),
		enrichFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rewards_enrichment_failures_total",
			Help: "Best-effort steps that failed after XP was recorded",
		}, []string{"step"}),
		periodResets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rewards_period_resets_total",
			Help: "Weekly and monthly XP resets by outcome",
		}, []string{"period", "outcome"}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal, m.cacheLatency, m.cacheWrite,
		m.cacheLookups, m.xpAwarded, m.xpEvents, m.badgesAwarded, m.enrichFailures, m.periodResets, goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
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

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveCacheWrite tracks cache write latency.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordXP counts a ledger write. Outcome is "credited" or "duplicate".
func (m *MetricsService) RecordXP(activity models.ActivityType, xp int, outcome string) {
	if m == nil {
		return
	}
	m.xpEvents.WithLabelValues(string(activity), outcome).Inc()
	if xp > 0 {
		m.xpAwarded.WithLabelValues(string(activity)).Add(float64(xp))
	}
}

// RecordBadgeAwarded counts an awarded badge.
func (m *MetricsService) RecordBadgeAwarded(badgeID string) {
	if m == nil {
		return
	}
	m.badgesAwarded.WithLabelValues(badgeID).Inc()
}

// RecordEnrichmentFailure counts a failed best-effort step.
func (m *MetricsService) RecordEnrichmentFailure(step string) {
	if m == nil {
		return
	}
	m.enrichFailures.WithLabelValues(step).Inc()
}

// RecordPeriodReset counts a weekly or monthly reset attempt.
func (m *MetricsService) RecordPeriodReset(kind models.PeriodKind, outcome string) {
	if m == nil {
		return
	}
	m.periodResets.WithLabelValues(string(kind), outcome).Inc()
}
