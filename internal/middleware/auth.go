package middleware

import (
	"strings"

	"TagChat/consts"
	"TagChat/pkg/jwt"
	"TagChat/pkg/result"

	"github.com/gin-gonic/gin"
)

// JWTAuthMiddleware JWT 认证中间件
// 从 Authorization 头提取访问令牌并验证，验证通过后将 user_uuid 存入 Context。
// 刷新令牌在这里永远通不过校验（令牌类型隔离）。
func JWTAuthMiddleware(jwtManager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 客户端请求错误属于正常业务流程，不记录日志
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			result.Fail(c, consts.CodeUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			result.Fail(c, consts.CodeUnauthorized)
			c.Abort()
			return
		}

		userUUID, err := jwtManager.VerifyAccess(parts[1])
		if err != nil {
			if err == jwt.ErrTokenExpired {
				result.Fail(c, consts.CodeTokenExpired)
			} else {
				result.Fail(c, consts.CodeInvalidToken)
			}
			c.Abort()
			return
		}

		c.Set("user_uuid", userUUID)
		c.Next()
	}
}

// GetUserUUID 从 Context 中获取当前登录用户的 UUID
func GetUserUUID(c *gin.Context) (string, bool) {
	userUUID, exists := c.Get("user_uuid")
	if !exists {
		return "", false
	}
	uuid, ok := userUUID.(string)
	return uuid, ok
}
