package repository

import (
	"context"
	"errors"
	"fmt"

	"TagChat/internal/mq"
	"TagChat/pkg/logger"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Repository 层统一错误定义。
// Service 层只依赖这里的哨兵错误做分支，不感知 gorm / go-redis 的底层错误类型。

var (
	// ErrRecordNotFound 记录不存在
	ErrRecordNotFound = errors.New("record not found")

	// ErrDuplicateKey 唯一键冲突
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrDatabase 数据库操作错误
	ErrDatabase = errors.New("database error")

	// ErrRedisNil Redis Key 不存在
	ErrRedisNil = errors.New("redis: key not found")

	// ErrRedis Redis 操作错误
	ErrRedis = errors.New("redis error")

	// ErrRequestNotFound 待处理申请不存在或已被处理
	ErrRequestNotFound = errors.New("pending request not found")
)

// wrapError 按映射规则把底层错误翻译成哨兵错误，
// 未命中规则时包装 defaultErr 并保留原始错误文本用于日志。
func wrapError(err error, rules map[error]error, defaultErr error) error {
	if err == nil {
		return nil
	}

	for source, target := range rules {
		if errors.Is(err, source) {
			return target
		}
	}

	return fmt.Errorf("%w: %v", defaultErr, err)
}

var (
	// dbErrorRules 数据库错误映射规则
	dbErrorRules = map[error]error{
		gorm.ErrRecordNotFound: ErrRecordNotFound,
		gorm.ErrDuplicatedKey:  ErrDuplicateKey,
	}

	// redisErrorRules Redis 错误映射规则
	redisErrorRules = map[error]error{
		redis.Nil: ErrRedisNil,
	}
)

// WrapDBError 包装数据库错误
func WrapDBError(err error) error {
	return wrapError(err, dbErrorRules, ErrDatabase)
}

// WrapRedisError 包装 Redis 错误
func WrapRedisError(err error) error {
	return wrapError(err, redisErrorRules, ErrRedis)
}

// LogRedisError 记录 Redis 错误（只读路径降级时用，不重试）
func LogRedisError(ctx context.Context, err error) {
	logger.Error(ctx, "Redis 操作错误", logger.ErrorField("error", err))
}

// LogAndRetryRedisError 记录 Redis 写失败并把任务送入 Kafka 重试队列。
// 写缓存失败不会返回给调用方，数据一致性靠补偿消费者兜底。
func LogAndRetryRedisError(ctx context.Context, task mq.RedisTask, err error) {
	logger.Warn(ctx, "Redis 操作失败，发送到重试队列",
		logger.ErrorField("error", err),
		logger.String("task_type", string(task.Type)),
		logger.String("command", task.Command),
	)

	task = task.WithContext(ctx).WithError(err)

	if kafkaErr := mq.SendRedisTask(ctx, task); kafkaErr != nil {
		// Kafka 也失败就只能放弃，错误日志留给监控报警
		logger.Error(ctx, "发送 Redis 重试任务到 Kafka 失败，放弃处理",
			logger.ErrorField("kafka_error", kafkaErr),
			logger.ErrorField("original_error", err),
			logger.String("task_type", string(task.Type)),
		)
	}
}
