package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"call-screener/internal/config"
)

// Collector collects and exposes metrics for the call screener service
type Collector struct {
	config *config.MetricsConfig
	logger *zap.Logger

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Screening metrics
	decisionsTotal   *prometheus.CounterVec
	decisionDuration prometheus.Histogram

	// Reputation metrics
	reputationRequestsTotal *prometheus.CounterVec
	reputationDuration      prometheus.Histogram

	// Cache metrics
	cacheOperationsTotal *prometheus.CounterVec

	// Analysis queue metrics
	analysisJobsTotal *prometheus.CounterVec
	analysisQueueSize prometheus.Gauge
}

// NewCollector creates a new metrics collector
func NewCollector(cfg *config.Config, logger *zap.Logger) *Collector {
	return newCollector(&cfg.Metrics, logger)
}

func newCollector(cfg *config.MetricsConfig, logger *zap.Logger) *Collector {
	if !cfg.Enabled {
		logger.Info("metrics collection disabled")
		return &Collector{
			config: cfg,
			logger: logger,
		}
	}

	histogramBuckets := cfg.HistogramBuckets
	if len(histogramBuckets) == 0 {
		histogramBuckets = []float64{0.0005, 0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0}
	}

	collector := &Collector{
		config: cfg,
		logger: logger,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "call_screener_http_requests_total",
				Help: "Total number of HTTP requests processed",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "call_screener_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: histogramBuckets,
			},
			[]string{"method", "endpoint"},
		),

		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "call_screener_decisions_total",
				Help: "Total number of screening decisions",
			},
			[]string{"outcome"}, // outcome: allowed/rejected/silenced
		),

		decisionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "call_screener_decision_duration_seconds",
				Help:    "Rule evaluation duration in seconds",
				Buckets: histogramBuckets,
			},
		),

		reputationRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "call_screener_reputation_requests_total",
				Help: "Total number of reputation lookups",
			},
			[]string{"result"}, // result: success/error/none
		),

		reputationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "call_screener_reputation_duration_seconds",
				Help:    "Reputation lookup duration in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
			},
		),

		cacheOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "call_screener_cache_operations_total",
				Help: "Total number of reputation cache operations",
			},
			[]string{"operation", "result"}, // operation: get/set, result: hit/miss/error
		),

		analysisJobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "call_screener_analysis_jobs_total",
				Help: "Total number of background analysis jobs",
			},
			[]string{"result"}, // result: queued/dropped/completed/failed
		),

		analysisQueueSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "call_screener_analysis_queue_size",
				Help: "Number of analysis jobs currently queued",
			},
		),
	}

	collector.register()

	logger.Info("metrics collector initialized",
		zap.Bool("enabled", cfg.Enabled),
		zap.String("path", cfg.Path))

	return collector
}

func (m *Collector) register() {
	if !m.config.Enabled {
		return
	}

	prometheus.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.decisionsTotal,
		m.decisionDuration,
		m.reputationRequestsTotal,
		m.reputationDuration,
		m.cacheOperationsTotal,
		m.analysisJobsTotal,
		m.analysisQueueSize,
	)
}

// RecordHTTPRequest records HTTP request metrics
func (m *Collector) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if !m.config.Enabled {
		return
	}

	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordDecision records the outcome and duration of one screening decision
func (m *Collector) RecordDecision(outcome string, duration time.Duration) {
	if !m.config.Enabled {
		return
	}

	m.decisionsTotal.WithLabelValues(outcome).Inc()
	m.decisionDuration.Observe(duration.Seconds())
}

// RecordReputationRequest records a reputation lookup
func (m *Collector) RecordReputationRequest(result string, duration time.Duration) {
	if !m.config.Enabled {
		return
	}

	m.reputationRequestsTotal.WithLabelValues(result).Inc()
	m.reputationDuration.Observe(duration.Seconds())
}

// RecordCacheOperation records a reputation cache operation
func (m *Collector) RecordCacheOperation(operation, result string) {
	if !m.config.Enabled {
		return
	}

	m.cacheOperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordAnalysisJob records a background analysis job state transition
func (m *Collector) RecordAnalysisJob(result string) {
	if !m.config.Enabled {
		return
	}

	m.analysisJobsTotal.WithLabelValues(result).Inc()
}

// SetAnalysisQueueSize updates the analysis queue depth gauge
func (m *Collector) SetAnalysisQueueSize(size int) {
	if !m.config.Enabled {
		return
	}

	m.analysisQueueSize.Set(float64(size))
}

// Handler returns the Prometheus metrics handler
func Handler() http.Handler {
	return promhttp.Handler()
}
