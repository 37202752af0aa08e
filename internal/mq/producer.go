package mq

import (
	"context"
	"encoding/json"
	"errors"

	"TagChat/pkg/kafka"
)

var globalProducer *kafka.Producer

// ErrProducerNotReady 生产者未初始化（Redis 降级模式下 Kafka 不启动）。
var ErrProducerNotReady = errors.New("kafka producer not initialized")

// SetGlobalProducer 设置全局 Kafka 生产者，进程启动时调用一次。
func SetGlobalProducer(p *kafka.Producer) {
	globalProducer = p
}

// SendRedisTask 把 Redis 重试任务序列化后发到 Kafka。
// key 取 UserUUID，保证同一用户的缓存修复顺序执行。
func SendRedisTask(ctx context.Context, task RedisTask) error {
	if globalProducer == nil {
		return ErrProducerNotReady
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return globalProducer.Send(ctx, []byte(task.UserUUID), payload)
}
