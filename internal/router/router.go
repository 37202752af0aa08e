package router

import (
	"net/http"

	"TagChat/internal/connect"
	"TagChat/internal/handler"
	"TagChat/internal/middleware"
	"TagChat/pkg/jwt"
	"TagChat/pkg/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps 路由装配所需的全部处理器依赖
type Deps struct {
	AuthHandler    *handler.AuthHandler
	FriendHandler  *handler.FriendHandler
	MessageHandler *handler.MessageHandler
	WSHandler      *connect.WSHandler
	JWTManager     *jwt.Manager
}

// Setup 装配全部路由与中间件
func Setup(production bool, deps Deps) *gin.Engine {
	if production {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// 全局中间件，顺序敏感：恢复 → 链路追踪 → IP 注入 → 访问日志 → 指标 → 跨域
	r.Use(middleware.GinRecovery(true))
	r.Use(util.TraceLogger())
	r.Use(middleware.ClientIPMiddleware())
	r.Use(middleware.GinLogger())
	r.Use(middleware.PrometheusMiddleware())
	r.Use(middleware.CorsMiddleware())

	// 健康检查与指标，不走业务中间件之外的逻辑
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiV1 := r.Group("/api/v1")

	// 公开接口：IP 限流挡在最前面，配合账号锁定限制撞库速度
	public := apiV1.Group("/public", middleware.IPRateLimitMiddleware())
	{
		publicUser := public.Group("/user")
		publicUser.POST("/register", deps.AuthHandler.Register)
		publicUser.POST("/login", deps.AuthHandler.Login)
		publicUser.POST("/refresh-token", deps.AuthHandler.Refresh)
	}

	// 认证接口
	auth := apiV1.Group("/auth", middleware.JWTAuthMiddleware(deps.JWTManager))
	{
		auth.POST("/logout", deps.AuthHandler.Logout)
		auth.GET("/me", deps.AuthHandler.Me)

		friend := auth.Group("/friend")
		friend.POST("/request", deps.FriendHandler.SendRequest)
		friend.GET("/requests", deps.FriendHandler.GetPendingRequests)
		friend.POST("/respond", deps.FriendHandler.Respond)
		friend.GET("/list", deps.FriendHandler.GetFriendList)
		friend.DELETE("/:uuid", deps.FriendHandler.RemoveFriend)

		message := auth.Group("/message")
		message.POST("/send", deps.MessageHandler.Send)
		message.GET("/conversation/:uuid", deps.MessageHandler.GetConversation)
	}

	// WebSocket 接入点：鉴权发生在握手阶段（query token），不挂 JWT 中间件
	r.GET("/ws", deps.WSHandler.ServeWS)

	return r
}
