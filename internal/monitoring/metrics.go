package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 取件指标
	FetchAttemptsTotal *prometheus.CounterVec
	FetchResultsTotal  *prometheus.CounterVec
	FetchDuration      *prometheus.HistogramVec

	// 验证码指标
	CodesIssuedTotal   *prometheus.CounterVec
	CodesConsumedTotal prometheus.Counter
	CodesExpiredTotal  prometheus.Counter

	// 分享页指标
	SharePageAccessTotal *prometheus.CounterVec

	// 缓存指标
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter

	// 限流指标
	RateLimitBlocksTotal *prometheus.CounterVec
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamshare_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "streamshare_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		FetchAttemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamshare_fetch_attempts_total",
				Help: "Total number of mailbox fetch attempts",
			},
			[]string{"transport"},
		),

		FetchResultsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamshare_fetch_results_total",
				Help: "Total number of completed code acquisitions by source",
			},
			[]string{"source"},
		),

		FetchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "streamshare_fetch_duration_seconds",
				Help:    "End-to-end code acquisition duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"source"},
		),

		CodesIssuedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamshare_codes_issued_total",
				Help: "Total number of verification codes stored",
			},
			[]string{"source", "purpose"},
		),

		CodesConsumedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "streamshare_codes_consumed_total",
				Help: "Total number of verification codes marked consumed",
			},
		),

		CodesExpiredTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "streamshare_codes_expired_total",
				Help: "Total number of expired verification codes removed",
			},
		),

		SharePageAccessTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamshare_share_page_access_total",
				Help: "Total number of share page access attempts",
			},
			[]string{"result"},
		),

		CacheHitsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "streamshare_code_cache_hits_total",
				Help: "Total number of code cache hits",
			},
		),

		CacheMissesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "streamshare_code_cache_misses_total",
				Help: "Total number of code cache misses",
			},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamshare_errors_total",
				Help: "Total number of errors by type and component",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "streamshare_panics_total",
				Help: "Total number of recovered panics",
			},
		),

		RateLimitBlocksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamshare_rate_limit_blocks_total",
				Help: "Total number of requests rejected by rate limiting",
			},
			[]string{"endpoint"},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// ObserveFetchAttempt 记录一次取件尝试（取件编排器回调）
func (m *Metrics) ObserveFetchAttempt(kind string) {
	m.FetchAttemptsTotal.WithLabelValues(kind).Inc()
}

// ObserveFetchResult 记录一次取码完成（取件编排器回调）
func (m *Metrics) ObserveFetchResult(source string, duration time.Duration) {
	m.FetchResultsTotal.WithLabelValues(source).Inc()
	m.FetchDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordCodeIssued 记录验证码落库
func (m *Metrics) RecordCodeIssued(source, purpose string) {
	m.CodesIssuedTotal.WithLabelValues(source, purpose).Inc()
}

// RecordCodeConsumed 记录验证码消费
func (m *Metrics) RecordCodeConsumed() {
	m.CodesConsumedTotal.Inc()
}

// RecordCodesExpired 记录过期清扫数量
func (m *Metrics) RecordCodesExpired(count int) {
	m.CodesExpiredTotal.Add(float64(count))
}

// RecordSharePageAccess 记录分享页访问结果
func (m *Metrics) RecordSharePageAccess(result string) {
	m.SharePageAccessTotal.WithLabelValues(result).Inc()
}

// RecordCacheHit 记录缓存命中
func (m *Metrics) RecordCacheHit() {
	m.CacheHitsTotal.Inc()
}

// RecordCacheMiss 记录缓存未命中
func (m *Metrics) RecordCacheMiss() {
	m.CacheMissesTotal.Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// RecordRateLimitBlock 记录限流阻止
func (m *Metrics) RecordRateLimitBlock(endpoint string) {
	m.RateLimitBlocksTotal.WithLabelValues(endpoint).Inc()
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
