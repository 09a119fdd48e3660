package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestCounter HTTP请求计数
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mesa_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RequestDurationHistogram HTTP请求耗时
	RequestDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mesa_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// PermissionCacheLookups 权限缓存命中情况
	PermissionCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mesa_permission_cache_lookups_total",
			Help: "Permission cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	// BatchRuns 账单批处理运行次数
	BatchRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mesa_billing_batch_runs_total",
			Help: "Billing batch runs by outcome (completed, skipped, failed)",
		},
		[]string{"outcome"},
	)

	// SubscriptionTransitions 订阅状态流转
	SubscriptionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mesa_subscription_transitions_total",
			Help: "Subscription status transitions",
		},
		[]string{"from", "to"},
	)

	// Charges 扣款结果
	Charges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mesa_billing_charges_total",
			Help: "Billing charge attempts by result",
		},
		[]string{"result"},
	)

	// Notifications 提醒发送结果
	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mesa_billing_notifications_total",
			Help: "Billing notifications by kind and result",
		},
		[]string{"kind", "result"},
	)
)

var registerOnce sync.Once

// Register 注册所有指标，可重复调用
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDurationHistogram,
			PermissionCacheLookups,
			BatchRuns,
			SubscriptionTransitions,
			Charges,
			Notifications,
		)
	})
}

// Handler Prometheus 指标导出
func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}
