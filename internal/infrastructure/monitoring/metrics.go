package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

type DBMetrics struct {
	QueryDuration *prometheus.HistogramVec
}

type BusinessMetrics struct {
	CalculationsTotal          *prometheus.CounterVec
	DataIntegrityWarningsTotal *prometheus.CounterVec
	WritebackTotal             *prometheus.CounterVec
	EventsPublishedTotal       *prometheus.CounterVec
	RefreshRunsTotal           *prometheus.CounterVec
}

var (
	HTTP = HTTPMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_engine_http_requests_total",
				Help: "Total number of HTTP requests received.",
			},
			[]string{"method", "path", "code"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loan_engine_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "code"},
		),
	}

	DB = DBMetrics{
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loan_engine_db_query_duration_seconds",
				Help:    "Histogram of database query latencies.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_name", "status"},
		),
	}

	Business = BusinessMetrics{
		CalculationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_engine_calculations_total",
				Help: "Total number of loan figure calculations, by calculation state and outcome.",
			},
			[]string{"state", "outcome"},
		),
		DataIntegrityWarningsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_engine_data_integrity_warnings_total",
				Help: "Total number of stored-data defects worked around during calculation.",
			},
			[]string{"code"},
		),
		WritebackTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_engine_writeback_total",
				Help: "Total number of derived-figure write-back attempts, by outcome.",
			},
			[]string{"outcome"},
		),
		EventsPublishedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_engine_events_published_total",
				Help: "Total number of domain events published, by routing key and status.",
			},
			[]string{"routing_key", "status"},
		),
		RefreshRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_engine_refresh_runs_total",
				Help: "Total number of scheduled figure refresh runs, by status.",
			},
			[]string{"status"},
		),
	}
)

func RecordHTTPRequest(method, path, code string, duration time.Duration) {
	HTTP.RequestsTotal.WithLabelValues(method, path, code).Inc()
	HTTP.RequestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
}

func RecordDBQuery(queryName, status string, duration time.Duration) {
	DB.QueryDuration.WithLabelValues(queryName, status).Observe(duration.Seconds())
}

func RecordCalculation(state, outcome string) {
	Business.CalculationsTotal.WithLabelValues(state, outcome).Inc()
}

func RecordDataIntegrityWarning(code string) {
	Business.DataIntegrityWarningsTotal.WithLabelValues(code).Inc()
}

func RecordWriteback(outcome string) {
	Business.WritebackTotal.WithLabelValues(outcome).Inc()
}

func RecordEventPublished(routingKey, status string) {
	Business.EventsPublishedTotal.WithLabelValues(routingKey, status).Inc()
}

func RecordRefreshRun(status string) {
	Business.RefreshRunsTotal.WithLabelValues(status).Inc()
}
