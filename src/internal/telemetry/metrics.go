package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 审计服务的全部指标，注册到调用方提供的 Registerer
type Metrics struct {
	RemoteCalls        *prometheus.CounterVec
	RemoteCallDuration *prometheus.HistogramVec
	Audits             *prometheus.CounterVec
	AuditScore         prometheus.Histogram
	Fixes              *prometheus.CounterVec
	Fallbacks          *prometheus.CounterVec
	HTTPRequestsTotal  *prometheus.CounterVec
	HTTPRequestLatency *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// NewMetrics 创建并注册指标。reg 为 nil 时使用独立的 Registry
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{gatherer: reg}

	m.RemoteCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nullshot_remote_calls_total",
			Help: "Remote model calls by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)
	m.RemoteCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nullshot_remote_call_duration_seconds",
			Help:    "Latency of remote model calls",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60, 120},
		},
		[]string{"provider"},
	)
	m.Audits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nullshot_audits_total",
			Help: "Completed audits by source and verdict",
		},
		[]string{"source", "verdict"},
	)
	m.AuditScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nullshot_audit_score",
			Help:    "Distribution of audit scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)
	m.Fixes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nullshot_fixes_total",
			Help: "Generated fixes by source and mode",
		},
		[]string{"source", "mode"},
	)
	m.Fallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nullshot_fallbacks_total",
			Help: "Operations answered by the heuristic provider after a remote failure",
		},
		[]string{"operation"},
	)
	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.HTTPRequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	reg.MustRegister(
		m.RemoteCalls,
		m.RemoteCallDuration,
		m.Audits,
		m.AuditScore,
		m.Fixes,
		m.Fallbacks,
		m.HTTPRequestsTotal,
		m.HTTPRequestLatency,
	)
	return m
}

// ObserveRemoteCall 实现 ai.CallObserver
func (m *Metrics) ObserveRemoteCall(provider, outcome string, d time.Duration) {
	m.RemoteCalls.WithLabelValues(provider, outcome).Inc()
	m.RemoteCallDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) ObserveAudit(source, verdict string, score int) {
	m.Audits.WithLabelValues(source, verdict).Inc()
	m.AuditScore.Observe(float64(score))
}

func (m *Metrics) ObserveFix(source, mode string) {
	m.Fixes.WithLabelValues(source, mode).Inc()
}

func (m *Metrics) ObserveFallback(operation string) {
	m.Fallbacks.WithLabelValues(operation).Inc()
}

// Middleware 记录每个 HTTP 请求的次数和耗时。
// path 使用路由模式而不是原始 URL，避免标签基数膨胀
func (m *Metrics) Middleware(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(rw.status)).Inc()
		m.HTTPRequestLatency.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Handler 暴露 /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
