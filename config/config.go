package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level            string   `json:"level" yaml:"level"`                       // 日志级别 debug/info/warn/error
	Encoding         string   `json:"encoding" yaml:"encoding"`                 // 编码格式 json/console
	EnableColor      bool     `json:"enableColor" yaml:"enableColor"`           // console 模式下是否彩色
	Development      bool     `json:"development" yaml:"development"`           // 开发模式（error 带堆栈）
	OutputPaths      []string `json:"outputPaths" yaml:"outputPaths"`           // 普通日志输出
	ErrorOutputPaths []string `json:"errorOutputPaths" yaml:"errorOutputPaths"` // 错误日志输出
}

// DefaultLoggerConfig 返回本地开发的默认日志配置。
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level:       envString("LOG_LEVEL", "info"),
		Encoding:    envString("LOG_ENCODING", "json"),
		EnableColor: false,
		Development: envBool("LOG_DEVELOPMENT", false),
	}
}

// MySQLConfig MySQL 配置
type MySQLConfig struct {
	DSN             string        `json:"dsn" yaml:"dsn"`                         // 主库连接串
	ReplicaDSN      string        `json:"replicaDsn" yaml:"replicaDsn"`           // 只读副本连接串，为空则读写都走主库
	MaxOpenConns    int           `json:"maxOpenConns" yaml:"maxOpenConns"`       // 最大连接数
	MaxIdleConns    int           `json:"maxIdleConns" yaml:"maxIdleConns"`       // 最大空闲连接数
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" yaml:"connMaxLifetime"` // 连接最大存活时间
	SlowThreshold   time.Duration `json:"slowThreshold" yaml:"slowThreshold"`     // 慢查询阈值
}

// DefaultMySQLConfig 返回本地开发的默认 MySQL 配置。
func DefaultMySQLConfig() MySQLConfig {
	return MySQLConfig{
		DSN:             envString("MYSQL_DSN", "root:root@tcp(127.0.0.1:3306)/tagchat?charset=utf8mb4&parseTime=True&loc=Local"),
		ReplicaDSN:      envString("MYSQL_REPLICA_DSN", ""),
		MaxOpenConns:    100,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
		SlowThreshold:   200 * time.Millisecond,
	}
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr         string        `json:"addr" yaml:"addr"`                 // 地址 host:port
	Password     string        `json:"password" yaml:"password"`         // 密码
	DB           int           `json:"db" yaml:"db"`                     // 库编号
	PoolSize     int           `json:"poolSize" yaml:"poolSize"`         // 连接池大小
	DialTimeout  time.Duration `json:"dialTimeout" yaml:"dialTimeout"`   // 建连超时
	ReadTimeout  time.Duration `json:"readTimeout" yaml:"readTimeout"`   // 读超时
	WriteTimeout time.Duration `json:"writeTimeout" yaml:"writeTimeout"` // 写超时
}

// DefaultRedisConfig 返回本地开发的默认 Redis 配置。
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         envString("REDIS_ADDR", "127.0.0.1:6379"),
		Password:     envString("REDIS_PASSWORD", ""),
		DB:           envInt("REDIS_DB", 0),
		PoolSize:     64,
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
}

// AuthConfig 认证与登录防护配置
type AuthConfig struct {
	AccessSecret  string        `json:"-" yaml:"-"`                         // 访问令牌签名密钥
	RefreshSecret string        `json:"-" yaml:"-"`                         // 刷新令牌签名密钥（与访问令牌隔离）
	AccessExpire  time.Duration `json:"accessExpire" yaml:"accessExpire"`   // 访问令牌有效期
	RefreshExpire time.Duration `json:"refreshExpire" yaml:"refreshExpire"` // 刷新令牌有效期
	MaxRefreshPer int           `json:"maxRefreshPer" yaml:"maxRefreshPer"` // 每用户保留的刷新令牌上限
	MaxAttempts   int           `json:"maxAttempts" yaml:"maxAttempts"`     // 连续登录失败上限
	LockDuration  time.Duration `json:"lockDuration" yaml:"lockDuration"`   // 触发上限后的锁定时长
}

// DefaultAuthConfig 返回默认认证配置。
// 密钥必须通过环境变量提供，默认值仅用于本地开发。
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		AccessSecret:  envString("ACCESS_TOKEN_SECRET", "dev-access-secret"),
		RefreshSecret: envString("REFRESH_TOKEN_SECRET", "dev-refresh-secret"),
		AccessExpire:  15 * time.Minute,
		RefreshExpire: 30 * 24 * time.Hour,
		MaxRefreshPer: 5,
		MaxAttempts:   envInt("MAX_LOGIN_ATTEMPTS", 5),
		LockDuration:  time.Duration(envInt("LOCK_MINUTES", 15)) * time.Minute,
	}
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Port            string        `json:"port" yaml:"port"`                       // 监听端口
	Production      bool          `json:"production" yaml:"production"`           // 生产模式（Secure Cookie 等）
	RateLimitRate   float64       `json:"rateLimitRate" yaml:"rateLimitRate"`     // IP 限流每秒令牌数
	RateLimitBurst  int           `json:"rateLimitBurst" yaml:"rateLimitBurst"`   // IP 限流桶容量
	ShutdownTimeout time.Duration `json:"shutdownTimeout" yaml:"shutdownTimeout"` // 优雅退出等待时间
}

// DefaultServerConfig 返回默认服务配置。
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:            envString("SERVER_PORT", "8080"),
		Production:      envString("APP_ENV", "development") == "production",
		RateLimitRate:   10,
		RateLimitBurst:  20,
		ShutdownTimeout: 10 * time.Second,
	}
}

// KafkaConfig Kafka 配置（Redis 缓存补偿重试队列）
type KafkaConfig struct {
	Brokers         []string `json:"brokers" yaml:"brokers"`                 // broker 列表
	RedisRetryTopic string   `json:"redisRetryTopic" yaml:"redisRetryTopic"` // Redis 重试任务 topic
	GroupID         string   `json:"groupId" yaml:"groupId"`                 // 消费组
}

// DefaultKafkaConfig 返回默认 Kafka 配置。
func DefaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Brokers:         strings.Split(envString("KAFKA_BROKERS", "127.0.0.1:9092"), ","),
		RedisRetryTopic: envString("KAFKA_REDIS_RETRY_TOPIC", "tagchat.redis.retry"),
		GroupID:         envString("KAFKA_GROUP_ID", "tagchat-redis-retry"),
	}
}

// ==================== 环境变量辅助 ====================

func envString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}
