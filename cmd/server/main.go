package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TagChat/config"
	"TagChat/internal/connect"
	"TagChat/internal/handler"
	"TagChat/internal/middleware"
	"TagChat/internal/mq"
	"TagChat/internal/repository"
	"TagChat/internal/router"
	"TagChat/internal/service"
	"TagChat/model"
	"TagChat/pkg/async"
	"TagChat/pkg/jwt"
	pkgkafka "TagChat/pkg/kafka"
	"TagChat/pkg/logger"
	"TagChat/pkg/mysql"
	pkgredis "TagChat/pkg/redis"
	"TagChat/pkg/util"

	"github.com/redis/go-redis/v9"
)

// @title       TagChat API
// @version     1.0
// @description 账号会话与社交关系服务
// @BasePath    /api/v1
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. 初始化日志
	zapLogger, err := logger.Build(config.DefaultLoggerConfig())
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	logger.ReplaceGlobal(zapLogger)
	defer func() { _ = zapLogger.Sync() }()

	// 2. 初始化 MySQL
	db, err := mysql.Build(config.DefaultMySQLConfig())
	if err != nil {
		logger.L().Fatal("初始化MySQL失败", logger.ErrorField("error", err))
	}
	mysql.ReplaceGlobal(db)
	if err := db.AutoMigrate(
		&model.UserInfo{},
		&model.RefreshToken{},
		&model.UserRelation{},
		&model.Message{},
	); err != nil {
		logger.L().Fatal("数据库迁移失败", logger.ErrorField("error", err))
	}

	// 3. 初始化 Redis
	// 读写超时压到 50ms：缓存层只允许快速失败，慢 Redis 不能拖垮请求链路
	redisCfg := config.DefaultRedisConfig()
	redisCfg.ReadTimeout = 50 * time.Millisecond
	redisCfg.WriteTimeout = 50 * time.Millisecond

	var redisClient *redis.Client
	redisClient, err = pkgredis.Build(redisCfg)
	if err != nil {
		// Redis 初始化失败不阻塞启动（降级到只用 MySQL）
		logger.L().Warn("初始化Redis失败，降级到 MySQL-Only 模式", logger.ErrorField("error", err))
		redisClient = nil
	} else {
		pkgredis.ReplaceGlobal(redisClient)
		defer func() { _ = redisClient.Close() }()
	}

	// 4. 初始化 Kafka（仅在 Redis 可用时启动：重试队列只服务于缓存补偿）
	if redisClient != nil {
		kafkaCfg := config.DefaultKafkaConfig()
		producer := pkgkafka.NewProducer(kafkaCfg.Brokers, kafkaCfg.RedisRetryTopic)
		mq.SetGlobalProducer(producer)
		defer func() { _ = producer.Close() }()

		consumer := mq.NewRedisRetryConsumer(
			kafkaCfg.Brokers,
			kafkaCfg.RedisRetryTopic,
			kafkaCfg.GroupID,
			redisClient,
			producer,
			pkgkafka.NewZapLoggerAdapter(logger.L()),
		)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				logger.L().Error("Redis重试消费者退出", logger.ErrorField("error", err))
			}
		}()
		defer func() { _ = consumer.Close() }()
	}

	// 5. 初始化异步任务池（缓存回填、通知推送都走这里）
	if err := async.Init(config.DefaultAsyncConfig()); err != nil {
		logger.L().Fatal("初始化异步任务池失败", logger.ErrorField("error", err))
	}
	async.SetContextPropagator(func(parent context.Context) context.Context {
		ctx := context.Background()
		if traceID := parent.Value("trace_id"); traceID != nil {
			ctx = context.WithValue(ctx, "trace_id", traceID) //nolint:staticcheck
		}
		return ctx
	})
	defer func() { _ = async.Release() }()

	// 6. 初始化雪花节点与 IP 限流
	util.InitSnowflake(1)
	serverCfg := config.DefaultServerConfig()
	middleware.InitRateLimiter(serverCfg.RateLimitRate, serverCfg.RateLimitBurst, redisClient)

	// 7. 组装仓储、服务与 Handler
	authCfg := config.DefaultAuthConfig()
	jwtManager := jwt.NewManager(authCfg.AccessSecret, authCfg.RefreshSecret, authCfg.AccessExpire, authCfg.RefreshExpire)

	userRepo := repository.NewUserRepository(db, redisClient)
	authRepo := repository.NewAuthRepository(db, redisClient)
	relationRepo := repository.NewRelationRepository(db, redisClient)
	messageRepo := repository.NewMessageRepository(db)

	connManager := connect.NewConnectionManager()
	notifier := connect.NewNotifier(connManager)

	authService := service.NewAuthService(userRepo, authRepo, jwtManager, authCfg.MaxAttempts, authCfg.LockDuration, authCfg.MaxRefreshPer)
	friendService := service.NewFriendService(userRepo, relationRepo, notifier)
	messageService := service.NewMessageService(messageRepo, relationRepo, notifier)

	authHandler := handler.NewAuthHandler(authService, int(jwtManager.RefreshExpire().Seconds()), serverCfg.Production)
	friendHandler := handler.NewFriendHandler(friendService)
	messageHandler := handler.NewMessageHandler(messageService)
	wsHandler := connect.NewWSHandler(connManager, jwtManager)

	engine := router.Setup(serverCfg.Production, router.Deps{
		AuthHandler:    authHandler,
		FriendHandler:  friendHandler,
		MessageHandler: messageHandler,
		WSHandler:      wsHandler,
		JWTManager:     jwtManager,
	})

	// 8. 启动 HTTP 服务并等待退出信号
	srv := &http.Server{
		Addr:    ":" + serverCfg.Port,
		Handler: engine,
	}
	go func() {
		logger.L().Info("服务启动", logger.String("port", serverCfg.Port), logger.Bool("production", serverCfg.Production))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal("服务启动失败", logger.ErrorField("error", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// 9. 优雅退出：先停新请求，再断开所有 WebSocket 连接
	logger.L().Info("收到退出信号，开始优雅关闭")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.L().Error("HTTP服务关闭失败", logger.ErrorField("error", err))
	}
	connManager.Shutdown()
	logger.L().Info("服务已退出")
}
