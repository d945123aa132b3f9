package providers

import (
	"complywatch/internal/structures"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"strconv"
	"time"
)

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	ObservePersistenceDuration(duration time.Duration)
	ObserveScanPass(triggered, failed, conflicts int, duration time.Duration)
	IncAlerts(severity string, suppressed bool)
	ObserveDigestPass(processed, emailed int, duration time.Duration)
}

type MetricsProvider struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	persistenceDuration prometheus.Histogram
	scansTotal          *prometheus.CounterVec
	passDuration        *prometheus.HistogramVec
	alertsTotal         *prometheus.CounterVec
	digestUsers         *prometheus.CounterVec
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *MetricsProvider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *MetricsProvider) ObservePersistenceDuration(duration time.Duration) {
	m.persistenceDuration.Observe(duration.Seconds())
}

func (m *MetricsProvider) ObserveScanPass(triggered, failed, conflicts int, duration time.Duration) {
	m.scansTotal.WithLabelValues("dispatched").Add(float64(triggered))
	m.scansTotal.WithLabelValues("failed").Add(float64(failed))
	m.scansTotal.WithLabelValues("conflict").Add(float64(conflicts))
	m.passDuration.WithLabelValues("scan").Observe(duration.Seconds())
}

func (m *MetricsProvider) IncAlerts(severity string, suppressed bool) {
	m.alertsTotal.WithLabelValues(severity, strconv.FormatBool(suppressed)).Inc()
}

func (m *MetricsProvider) ObserveDigestPass(processed, emailed int, duration time.Duration) {
	m.digestUsers.WithLabelValues("processed").Add(float64(processed))
	m.digestUsers.WithLabelValues("emailed").Add(float64(emailed))
	m.passDuration.WithLabelValues("digest").Observe(duration.Seconds())
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	return &MetricsProvider{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "complywatch_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "complywatch_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "complywatch_cache_hits_total",
			Help: "Total number of cache hits",
		}),

		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "complywatch_cache_misses_total",
			Help: "Total number of cache misses",
		}),

		persistenceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "complywatch_persistence_duration_seconds",
			Help:    "Duration of store snapshot persistence in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		scansTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "complywatch_scans_total",
			Help: "Scan dispatch outcomes by result",
		}, []string{"result"}),

		passDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "complywatch_pass_duration_seconds",
			Help:    "Duration of scheduler passes in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"pass"}),

		alertsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "complywatch_alerts_total",
			Help: "Alert records written, by severity and suppression",
		}, []string{"severity", "suppressed"}),

		digestUsers: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "complywatch_digest_users_total",
			Help: "Users processed and emailed by the weekly digest",
		}, []string{"outcome"}),
	}
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncCacheHits()                                    {}
func (n *noopMetrics) IncCacheMisses()                                  {}
func (n *noopMetrics) ObservePersistenceDuration(_ time.Duration)       {}
func (n *noopMetrics) ObserveScanPass(_, _, _ int, _ time.Duration)     {}
func (n *noopMetrics) IncAlerts(_ string, _ bool)                       {}
func (n *noopMetrics) ObserveDigestPass(_, _ int, _ time.Duration)      {}
