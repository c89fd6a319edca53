package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestsInFlight prometheus.Gauge
	httpRequestDuration  *prometheus.HistogramVec

	// Backtest metrics
	backtestsTotal    *prometheus.CounterVec
	backtestDuration  *prometheus.HistogramVec
	barsProcessed     *prometheus.CounterVec
	tradesTotal       *prometheus.CounterVec
	providerRequests  *prometheus.CounterVec
	resultsPublished  *prometheus.CounterVec
	jobsActive        prometheus.Gauge
	lastSharpeByStrat *prometheus.GaugeVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	r.backtestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fastquant_backtests_total",
			Help: "Total number of backtests by strategy and outcome",
		},
		[]string{"strategy", "status"},
	)
	r.backtestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fastquant_backtest_duration_seconds",
			Help:    "Backtest duration in seconds, including price fetch",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"strategy"},
	)
	r.barsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fastquant_bars_processed_total",
			Help: "Total number of price bars fed into strategies",
		},
		[]string{"strategy"},
	)
	r.tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fastquant_trades_total",
			Help: "Total number of simulated trade entries",
		},
		[]string{"strategy"},
	)
	r.providerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fastquant_provider_requests_total",
			Help: "Total number of price provider fetches",
		},
		[]string{"provider", "status"},
	)
	r.resultsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fastquant_results_published_total",
			Help: "Total number of results handed to a sink",
		},
		[]string{"sink", "status"},
	)
	r.jobsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fastquant_jobs_active",
			Help: "Number of queued or running backtest jobs",
		},
	)
	r.lastSharpeByStrat = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fastquant_last_sharpe_ratio",
			Help: "Sharpe ratio of the most recent finite result per strategy",
		},
		[]string{"strategy"},
	)

	reg.MustRegister(r.backtestsTotal)
	reg.MustRegister(r.backtestDuration)
	reg.MustRegister(r.barsProcessed)
	reg.MustRegister(r.tradesTotal)
	reg.MustRegister(r.providerRequests)
	reg.MustRegister(r.resultsPublished)
	reg.MustRegister(r.jobsActive)
	reg.MustRegister(r.lastSharpeByStrat)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordBacktest records a finished run. status is "ok", "degenerate" or "error".
func (r *Registry) RecordBacktest(strategy, status string, bars, trades int, duration float64) {
	r.backtestsTotal.WithLabelValues(strategy, status).Inc()
	r.backtestDuration.WithLabelValues(strategy).Observe(duration)
	if bars > 0 {
		r.barsProcessed.WithLabelValues(strategy).Add(float64(bars))
	}
	if trades > 0 {
		r.tradesTotal.WithLabelValues(strategy).Add(float64(trades))
	}
}

// SetLastSharpe stores the latest Sharpe ratio; callers skip non-finite values.
func (r *Registry) SetLastSharpe(strategy string, v float64) {
	r.lastSharpeByStrat.WithLabelValues(strategy).Set(v)
}

// RecordProviderRequest records a price fetch outcome.
func (r *Registry) RecordProviderRequest(provider string, err error) {
	r.providerRequests.WithLabelValues(provider, errStatus(err)).Inc()
}

// RecordPublish records a result hand-off to a sink (store, archive, notifier).
func (r *Registry) RecordPublish(sink string, err error) {
	r.resultsPublished.WithLabelValues(sink, errStatus(err)).Inc()
}

// JobStarted and JobFinished track in-flight asynchronous jobs.
func (r *Registry) JobStarted() {
	r.jobsActive.Inc()
}

func (r *Registry) JobFinished() {
	r.jobsActive.Dec()
}

func errStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
