package middleware

import (
	"context"
	"errors"
	"sync"
	"time"

	"TagChat/consts"
	rediskey "TagChat/consts/redisKey"
	"TagChat/pkg/logger"
	"TagChat/pkg/result"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	xrate "golang.org/x/time/rate"
)

// luaTokenBucket Redis 令牌桶 Lua 脚本
// 原子性地更新令牌桶并判断是否允许通过。
//
//	KEYS[1]: 限流 key
//	ARGV[1]: 当前时间戳（毫秒）
//	ARGV[2]: 令牌桶容量
//	ARGV[3]: 每秒产生的令牌数
//	ARGV[4]: 每次请求消耗的令牌数
//
// 返回 1 允许通过，0 令牌不足。时间戳使用毫秒精度提高计算准确性。
const luaTokenBucket = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local rate = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

local info = redis.call('HMGET', key, 'tokens', 'last_time')
local current_tokens = tonumber(info[1])
local last_time = tonumber(info[2])

if current_tokens == nil then
    current_tokens = capacity
end
if last_time == nil then
    last_time = now
end

local time_diff = math.max(0, now - last_time)
local new_tokens = math.floor((time_diff * rate) / 1000)

if new_tokens > 0 then
    current_tokens = math.min(capacity, current_tokens + new_tokens)
    last_time = now
end

local allowed = 0
if current_tokens >= requested then
    current_tokens = current_tokens - requested
    allowed = 1
end

redis.call('HMSET', key, 'tokens', current_tokens, 'last_time', last_time)

local fill_time = math.ceil(capacity / rate)
local ttl = math.max(60, fill_time * 2)
redis.call('EXPIRE', key, ttl)

return allowed
`

// RedisRateLimiter 基于 Redis 的 IP 级别限流器。
// Redis 不可用时退化为单机内存令牌桶，限流精度下降但不放弃保护。
type RedisRateLimiter struct {
	mu          sync.RWMutex
	redisClient *redis.Client
	rate        float64 // 每秒产生的令牌数
	burst       int     // 令牌桶容量

	localMu  sync.Mutex
	localBkt map[string]*xrate.Limiter // Redis 降级时的单机兜底
}

// NewRedisRateLimiter 创建限流器。
// rate: 每秒产生的令牌数；burst: 令牌桶容量。
func NewRedisRateLimiter(rate float64, burst int) *RedisRateLimiter {
	return &RedisRateLimiter{
		rate:     rate,
		burst:    burst,
		localBkt: make(map[string]*xrate.Limiter),
	}
}

// SetRedisClient 设置 Redis 客户端，延迟注入避免初始化顺序依赖。
func (r *RedisRateLimiter) SetRedisClient(redisClient *redis.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redisClient = redisClient
}

// Allow 检查是否允许请求通过。
// Redis 不可用或超时走单机兜底限流，不阻塞请求链路。
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) bool {
	r.mu.RLock()
	client := r.redisClient
	r.mu.RUnlock()

	if client == nil {
		return r.allowLocal(key)
	}

	// 给 Redis 操作加独立短超时（50ms），防止 Redis 响应慢拖死接入层
	redisCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	now := time.Now().UnixMilli()
	result, err := client.Eval(redisCtx, luaTokenBucket, []string{key}, now, r.burst, r.rate, 1).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			logger.Warn(ctx, "Redis 限流检查超时，降级为单机限流",
				logger.String("key", key),
				logger.ErrorField("error", err),
			)
		} else {
			logger.Error(ctx, "Redis 限流检查失败，降级为单机限流",
				logger.String("key", key),
				logger.ErrorField("error", err),
			)
		}
		return r.allowLocal(key)
	}

	allowed, ok := result.(int64)
	if !ok {
		logger.Warn(ctx, "Redis 限流返回值类型错误，降级放行",
			logger.String("key", key),
			logger.Any("result", result),
		)
		return true
	}
	return allowed == 1
}

// allowLocal 单机内存令牌桶兜底。
// map 无淘汰策略，容量依赖 key 基数有限（按 IP 限流时可接受）。
func (r *RedisRateLimiter) allowLocal(key string) bool {
	r.localMu.Lock()
	limiter, ok := r.localBkt[key]
	if !ok {
		limiter = xrate.NewLimiter(xrate.Limit(r.rate), r.burst)
		r.localBkt[key] = limiter
	}
	r.localMu.Unlock()
	return limiter.Allow()
}

// 全局限流器实例
var globalRateLimiter *RedisRateLimiter

// InitRateLimiter 初始化全局限流器，进程启动时调用一次。
func InitRateLimiter(rate float64, burst int, redisClient *redis.Client) {
	globalRateLimiter = NewRedisRateLimiter(rate, burst)
	globalRateLimiter.SetRedisClient(redisClient)

	logger.Info(context.Background(), "限流器初始化完成",
		logger.Float64("rate", rate),
		logger.Int("burst", burst),
	)
}

// IPRateLimitMiddleware 基于 IP 的限流中间件。
// 挂在公开接口（注册/登录/刷新）前，配合账号锁定限制撞库速度。
func IPRateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip, exists := GetClientIPSafe(c)
		if !exists || ip == "" {
			logger.Warn(NewContextWithGin(c), "无法获取客户端 IP，跳过限流检查",
				logger.String("path", c.Request.URL.Path),
			)
			c.Next()
			return
		}

		if globalRateLimiter == nil {
			c.Next()
			return
		}

		if !globalRateLimiter.Allow(NewContextWithGin(c), rediskey.IPRateLimitKey(ip)) {
			logger.Warn(NewContextWithGin(c), "IP 请求被限流",
				logger.String("ip", ip),
				logger.String("path", c.Request.URL.Path),
				logger.String("method", c.Request.Method),
			)
			result.Fail(c, consts.CodeTooManyRequests)
			c.Abort()
			return
		}

		c.Next()
	}
}
