package middleware

import (
	"net"
	"net/http"
	"net/http/httputil"
	"os"
	"runtime/debug"
	"strings"

	"TagChat/consts"
	"TagChat/pkg/logger"
	"TagChat/pkg/result"

	"github.com/gin-gonic/gin"
)

// GinRecovery 恢复 panic 并记录详细日志
// stack 控制是否在日志里带上完整堆栈。
// broken pipe 类错误（客户端断开）不算服务端 panic，只记日志不响应。
func GinRecovery(stack bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				var brokenPipe bool
				if ne, ok := err.(*net.OpError); ok {
					if se, ok := ne.Err.(*os.SyscallError); ok {
						errMsg := strings.ToLower(se.Error())
						if strings.Contains(errMsg, "broken pipe") ||
							strings.Contains(errMsg, "connection reset by peer") {
							brokenPipe = true
						}
					}
				}

				ctx := NewContextWithGin(c)
				httpRequest, _ := httputil.DumpRequest(c.Request, false)

				if brokenPipe {
					logger.Error(ctx, "连接已断开",
						logger.String("path", c.Request.URL.Path),
						logger.Any("error", err),
						logger.String("request", string(httpRequest)),
					)
					// 连接已断，无法写响应
					c.Error(err.(error)) //nolint:errcheck
					c.Abort()
					return
				}

				if stack {
					logger.Error(ctx, "请求处理 panic",
						logger.String("path", c.Request.URL.Path),
						logger.Any("error", err),
						logger.String("request", string(httpRequest)),
						logger.String("stack", string(debug.Stack())),
					)
				} else {
					logger.Error(ctx, "请求处理 panic",
						logger.String("path", c.Request.URL.Path),
						logger.Any("error", err),
						logger.String("request", string(httpRequest)),
					)
				}

				result.Result(c, http.StatusInternalServerError, nil,
					consts.GetMessage(consts.CodeInternalError), consts.CodeInternalError)
				c.Abort()
			}
		}()
		c.Next()
	}
}
