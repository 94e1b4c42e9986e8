package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Search metrics
	SearchesTotal        *prometheus.CounterVec
	SearchDuration       prometheus.Histogram
	SearchResultsPerPage prometheus.Histogram

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive       prometheus.Gauge
	DBConnectionsIdle         prometheus.Gauge
	DBConnectionsWaitCount    prometheus.Gauge
	DBConnectionsWaitDuration prometheus.Gauge

	// Signup metrics
	AccessCodesIssuedTotal prometheus.Counter
	VerificationsTotal     *prometheus.CounterVec

	// Business metrics
	OrganizationsTotal prometheus.Gauge
	UsersTotal         prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgsearch_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orgsearch_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orgsearch_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		// Search metrics
		SearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgsearch_searches_total",
				Help: "Total number of search requests",
			},
			[]string{"ranked", "status"},
		),
		SearchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "orgsearch_search_duration_seconds",
				Help:    "Search execution duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
		),
		SearchResultsPerPage: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "orgsearch_search_results_per_page",
				Help:    "Number of results returned per search page",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),

		// Cache metrics
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgsearch_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_class"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgsearch_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_class"},
		),

		// Database metrics
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "orgsearch_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "orgsearch_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBConnectionsWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "orgsearch_db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),
		DBConnectionsWaitDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "orgsearch_db_connections_wait_duration_seconds",
				Help: "Total time spent waiting for connections",
			},
		),

		// Signup metrics
		AccessCodesIssuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "orgsearch_access_codes_issued_total",
				Help: "Total number of access codes issued",
			},
		),
		VerificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgsearch_verifications_total",
				Help: "Total number of code verification attempts",
			},
			[]string{"outcome"},
		),

		// Business metrics
		OrganizationsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "orgsearch_organizations_total",
				Help: "Total number of indexed organizations",
			},
		),
		UsersTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "orgsearch_users_total",
				Help: "Total number of verified users",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.SearchesTotal,
		m.SearchDuration,
		m.SearchResultsPerPage,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.DBConnectionsWaitCount,
		m.DBConnectionsWaitDuration,
		m.AccessCodesIssuedTotal,
		m.VerificationsTotal,
		m.OrganizationsTotal,
		m.UsersTotal,
	)

	return m
}

// Recording helpers are nil-safe so callers can hold a nil *Metrics when
// metrics are disabled.

// ObserveSearch records one search execution.
func (m *Metrics) ObserveSearch(ranked bool, status string, duration time.Duration, results int) {
	if m == nil {
		return
	}
	m.SearchesTotal.WithLabelValues(strconv.FormatBool(ranked), status).Inc()
	m.SearchDuration.Observe(duration.Seconds())
	if status == "success" {
		m.SearchResultsPerPage.Observe(float64(results))
	}
}

// CacheHit records a cache hit for the given class.
func (m *Metrics) CacheHit(class string) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.WithLabelValues(class).Inc()
}

// CacheMiss records a cache miss for the given class.
func (m *Metrics) CacheMiss(class string) {
	if m == nil {
		return
	}
	m.CacheMissesTotal.WithLabelValues(class).Inc()
}

// SetDBPoolStats publishes connection pool gauges from sql.DBStats.
func (m *Metrics) SetDBPoolStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	m.DBConnectionsWaitCount.Set(float64(stats.WaitCount))
	m.DBConnectionsWaitDuration.Set(stats.WaitDuration.Seconds())
}

// AccessCodeIssued counts one issued access code.
func (m *Metrics) AccessCodeIssued() {
	if m == nil {
		return
	}
	m.AccessCodesIssuedTotal.Inc()
}

// VerificationAttempt counts one code verification with its outcome.
func (m *Metrics) VerificationAttempt(outcome string) {
	if m == nil {
		return
	}
	m.VerificationsTotal.WithLabelValues(outcome).Inc()
}

// SetOrganizationsTotal publishes the indexed organization count.
func (m *Metrics) SetOrganizationsTotal(n int64) {
	if m == nil {
		return
	}
	m.OrganizationsTotal.Set(float64(n))
}

// SetUsersTotal publishes the verified user count.
func (m *Metrics) SetUsersTotal(n int64) {
	if m == nil {
		return
	}
	m.UsersTotal.Set(float64(n))
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			// Label by route pattern, not raw path, to bound cardinality.
			path := routePattern(r)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, path).Observe(float64(rw.bytesWritten))
		})
	}
}

func routePattern(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
