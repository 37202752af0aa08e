package util

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const HeaderXRequestID = "X-Request-ID"

// TraceLogger 为每个请求分配 trace_id，并在响应头回传给客户端。
// 网关层（Nginx）传入的 X-Request-ID 优先复用，跨服务链路才能串起来。
func TraceLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceId := c.GetHeader(HeaderXRequestID)
		if traceId == "" {
			traceId = uuid.New().String()
		}

		// 存入 Gin 上下文供日志中间件和 Handler 使用，同时回写响应头
		c.Set("trace_id", traceId)
		c.Header(HeaderXRequestID, traceId)

		c.Next()
	}
}

// NewUUID 生成新的 UUID 字符串
func NewUUID() string {
	return uuid.New().String()
}
