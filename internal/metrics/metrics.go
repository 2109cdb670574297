package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP 指标
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subhub_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "subhub_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 兑换指标，result: success / conflict / failed
	RedemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subhub_redemptions_total",
			Help: "Total number of redemption attempts",
		},
		[]string{"type", "result"},
	)

	// 额度消费，source: subscription / balance / checkin
	QuotaConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subhub_quota_consumed_total",
			Help: "Quota units consumed by source",
		},
		[]string{"source"},
	)
	QuotaRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subhub_quota_rejected_total",
			Help: "Consume requests rejected by reason",
		},
		[]string{"reason"},
	)

	// 订阅状态流转
	SubscriptionTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subhub_subscription_transitions_total",
			Help: "Subscription lifecycle events",
		},
		[]string{"event"},
	)

	CheckinsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subhub_checkins_total",
			Help: "Total number of successful daily check-ins",
		},
	)

	// worker 落库的消费记录，result: ok / failed
	UsageLogsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subhub_usage_logs_total",
			Help: "Subscription usage log messages processed by the worker",
		},
		[]string{"result"},
	)

	// 粘性会话绑定，达到渠道上限时计入 rejected
	StickyBindsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subhub_sticky_binds_total",
			Help: "Sessions bound or renewed on a channel",
		},
	)
	StickyBindRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subhub_sticky_bind_rejected_total",
			Help: "Session binds skipped because the channel hit its session or daily limit",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(RedemptionsTotal)
	prometheus.MustRegister(QuotaConsumedTotal)
	prometheus.MustRegister(QuotaRejectedTotal)
	prometheus.MustRegister(SubscriptionTransitionsTotal)
	prometheus.MustRegister(CheckinsTotal)
	prometheus.MustRegister(UsageLogsTotal)
	prometheus.MustRegister(StickyBindsTotal)
	prometheus.MustRegister(StickyBindRejectedTotal)
}

// Middleware 记录请求数和耗时，path 使用路由模板避免高基数
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler /metrics 处理器
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
