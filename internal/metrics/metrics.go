package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skywatch_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skywatch_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	tableFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skywatch_table_fetches_total",
			Help: "Total number of table fetches by source and result.",
		},
		[]string{"source", "result"},
	)

	tableFetchDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skywatch_table_fetch_duration_seconds",
			Help:    "Table fetch duration in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"source"},
	)

	tableRows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "skywatch_table_rows",
			Help: "Number of rows in the most recent successful fetch.",
		},
		[]string{"source"},
	)

	tableAgeSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "skywatch_table_age_seconds",
			Help: "Age of the table currently served, in seconds.",
		},
		[]string{"source"},
	)

	archiveWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skywatch_archive_writes_total",
			Help: "Total number of tables written to the archive.",
		},
		[]string{"source"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(tableFetchesTotal)
	prometheus.MustRegister(tableFetchDurationSeconds)
	prometheus.MustRegister(tableRows)
	prometheus.MustRegister(tableAgeSeconds)
	prometheus.MustRegister(archiveWritesTotal)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records the outcome and duration of one table fetch.
func ObserveFetch(source string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	tableFetchesTotal.WithLabelValues(source, result).Inc()
	tableFetchDurationSeconds.WithLabelValues(source).Observe(d.Seconds())
}

// SetTableRows sets the row gauge for source.
func SetTableRows(source string, n int) {
	tableRows.WithLabelValues(source).Set(float64(n))
}

// SetTableAge sets the age gauge for source.
func SetTableAge(source string, seconds float64) {
	tableAgeSeconds.WithLabelValues(source).Set(seconds)
}

// IncArchiveWrites counts one archived table for source.
func IncArchiveWrites(source string) {
	archiveWritesTotal.WithLabelValues(source).Inc()
}

var knownRoutes = map[string]bool{
	"/":              true,
	"/healthz":       true,
	"/readyz":        true,
	"/metrics":       true,
	"/api/v1/tables": true,
}

// normalizeRoute maps a request path to a bounded set of label values.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/api/v1/tables/"); ok && rest != "" {
		switch {
		case !strings.Contains(rest, "/"):
			return "/api/v1/tables/{source}"
		case strings.Count(rest, "/") == 1 && strings.HasSuffix(rest, "/fetch") && rest != "/fetch":
			return "/api/v1/tables/{source}/fetch"
		}
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
