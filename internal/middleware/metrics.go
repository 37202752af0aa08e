package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagchat_http_requests_total",
			Help: "HTTP 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tagchat_http_request_duration_seconds",
			Help:    "HTTP 请求耗时分布",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	wsOnlineConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tagchat_ws_online_connections",
			Help: "当前在线 WebSocket 连接数",
		},
	)
)

// SetOnlineConnections 更新在线连接数指标，由连接管理器在注册/注销时调用。
func SetOnlineConnections(count int) {
	wsOnlineConnections.Set(float64(count))
}

// PrometheusMiddleware 采集请求计数与耗时指标
// path 维度用路由模板（c.FullPath）而不是原始 URL，避免标签基数爆炸。
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched" // 404 等未命中路由的请求归到一个桶里
		}

		httpRequestTotal.WithLabelValues(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
		httpRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
		).Observe(time.Since(start).Seconds())
	}
}
