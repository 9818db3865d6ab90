// Package metrics 提供Prometheus监控指标
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 指标集合，使用独立的注册表
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	RateLimitedTotal    *prometheus.CounterVec

	// 自动分配
	RecommendationsTotal   *prometheus.CounterVec
	RecommendationDuration prometheus.Histogram
	AssignCommitsTotal     *prometheus.CounterVec
	BreakerState           *prometheus.GaugeVec

	// 排程
	CalendarEvents  *prometheus.GaugeVec
	UtilizationRate *prometheus.GaugeVec
	BalanceGini     *prometheus.GaugeVec
}

// New 创建指标集合
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "sekou"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	f := promauto.With(reg)
	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP请求总数",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP请求延迟",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"method", "path"}),
		RateLimitedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "被限流的请求数",
		}, []string{"tenant"}),

		RecommendationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignment_recommendations_total",
			Help:      "推荐请求次数（按来源和回落原因）",
		}, []string{"source", "reason"}),
		RecommendationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assignment_recommendation_duration_seconds",
			Help:      "推荐请求耗时",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}),
		AssignCommitsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignment_commits_total",
			Help:      "分配提交次数",
		}, []string{"result"}),
		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "熔断器状态（0=closed, 1=half-open, 2=open）",
		}, []string{"name"}),

		CalendarEvents: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calendar_events",
			Help:      "最近一次查询的日历事件数（按状态分组）",
		}, []string{"tenant", "bucket"}),
		UtilizationRate: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "utilization_rate",
			Help:      "最近一次统计的总体利用率",
		}, []string{"tenant"}),
		BalanceGini: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workload_gini",
			Help:      "作业员负荷基尼系数",
		}, []string{"tenant"}),
	}
}

// Handler 返回 /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest 记录请求指标
func (m *Metrics) RecordRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRateLimited 记录限流
func (m *Metrics) RecordRateLimited(tenant string) {
	m.RateLimitedTotal.WithLabelValues(tenant).Inc()
}

// RecordRecommendation 记录一次推荐，reason 为空表示来自服务
func (m *Metrics) RecordRecommendation(source, reason string, elapsed time.Duration) {
	if reason == "" {
		reason = "none"
	}
	m.RecommendationsTotal.WithLabelValues(source, reason).Inc()
	m.RecommendationDuration.Observe(elapsed.Seconds())
}

// RecordAssignCommit 记录分配提交
func (m *Metrics) RecordAssignCommit(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.AssignCommitsTotal.WithLabelValues(result).Inc()
}

// SetBreakerState 按 gobreaker 状态名设置熔断器指标
func (m *Metrics) SetBreakerState(name, state string) {
	var v float64
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	m.BreakerState.WithLabelValues(name).Set(v)
}

// SetCalendarEvents 设置日历事件数
func (m *Metrics) SetCalendarEvents(tenant string, byBucket map[string]int) {
	for bucket, n := range byBucket {
		m.CalendarEvents.WithLabelValues(tenant, bucket).Set(float64(n))
	}
}

// SetUtilization 设置利用率和基尼系数
func (m *Metrics) SetUtilization(tenant string, rate, gini float64) {
	m.UtilizationRate.WithLabelValues(tenant).Set(rate)
	m.BalanceGini.WithLabelValues(tenant).Set(gini)
}
