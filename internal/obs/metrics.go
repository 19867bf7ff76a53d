package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ledger and HTTP metrics.
var (
	entriesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_journal_entries_created_total",
			Help: "Journal entries accepted by the entry engine.",
		},
		[]string{"entry_type"},
	)

	entriesPosted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_journal_entries_posted_total",
		Help: "Journal entries moved from draft to posted.",
	})

	entriesUnposted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_journal_entries_unposted_total",
		Help: "Privileged unposts of journal entries.",
	})

	depreciationRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_depreciation_runs_total",
		Help: "Monthly depreciation runs executed.",
	})

	reportDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_report_duration_seconds",
			Help:    "Report generation latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"report"},
	)

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		entriesCreated, entriesPosted, entriesUnposted, depreciationRuns,
		reportDuration,
		httpInFlight, httpRequestsTotal, httpRequestDuration,
	)
}

// CountEntryCreated records an accepted journal entry.
func CountEntryCreated(entryType string) { entriesCreated.WithLabelValues(entryType).Inc() }

// CountEntryPosted records a draft->posted transition.
func CountEntryPosted() { entriesPosted.Inc() }

// CountEntryUnposted records a privileged posted->draft transition.
func CountEntryUnposted() { entriesUnposted.Inc() }

// CountDepreciationRun records one monthly depreciation run.
func CountDepreciationRun() { depreciationRuns.Inc() }

// ObserveReport records how long a report took to build.
func ObserveReport(report string, d time.Duration) {
	reportDuration.WithLabelValues(report).Observe(d.Seconds())
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument wraps an HTTP handler with RPS/latency/in-flight metrics.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code for metrics labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
