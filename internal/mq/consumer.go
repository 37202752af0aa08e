package mq

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	pkgkafka "TagChat/pkg/kafka"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

// RedisRetryConsumer 消费 Redis 重试任务并回放到 Redis。
// 缓存命令写失败时 repo 层会把任务投到 Kafka，由本消费者兜底执行，
// 保证缓存最终与数据库一致（执行失败且未超重试上限时重新入队）。
type RedisRetryConsumer struct {
	reader   *kafka.Reader
	client   *redis.Client
	producer *pkgkafka.Producer
	logger   kafka.Logger
}

// NewRedisRetryConsumer 创建消费者。
func NewRedisRetryConsumer(brokers []string, topic, groupID string, client *redis.Client, producer *pkgkafka.Producer, logger kafka.Logger) *RedisRetryConsumer {
	return &RedisRetryConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			Topic:       topic,
			GroupID:     groupID,
			MinBytes:    1,
			MaxBytes:    1 << 20,
			MaxWait:     500 * time.Millisecond,
			ErrorLogger: logger,
		}),
		client:   client,
		producer: producer,
		logger:   logger,
	}
}

// Start 阻塞消费，直到 ctx 取消或 reader 关闭。
func (c *RedisRetryConsumer) Start(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, kafka.ErrGroupClosed) {
				return nil
			}
			return err
		}

		var task RedisTask
		if err := json.Unmarshal(msg.Value, &task); err != nil {
			// 消息体损坏，记录后跳过（提交位点，不阻塞后续任务）
			c.logger.Printf("redis retry task unmarshal failed: %v", err)
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		if err := c.execute(ctx, task); err != nil {
			c.requeue(ctx, task, err)
		}
		_ = c.reader.CommitMessages(ctx, msg)
	}
}

// execute 回放一条 Redis 任务。
func (c *RedisRetryConsumer) execute(ctx context.Context, task RedisTask) error {
	switch task.Type {
	case CmdSimple:
		args := make([]interface{}, 0, len(task.Args)+1)
		args = append(args, task.Command)
		args = append(args, task.Args...)
		return c.client.Do(ctx, args...).Err()
	case CmdPipeline:
		pipe := c.client.Pipeline()
		for _, cmd := range task.PipelineCmds {
			args := make([]interface{}, 0, len(cmd.Args)+1)
			args = append(args, cmd.Command)
			args = append(args, cmd.Args...)
			pipe.Do(ctx, args...)
		}
		_, err := pipe.Exec(ctx)
		return err
	case CmdLua:
		return c.client.Eval(ctx, task.LuaScript, task.LuaKeys, task.LuaArgs...).Err()
	default:
		c.logger.Printf("unknown redis task type: %s", task.Type)
		return nil
	}
}

// requeue 执行失败时按重试次数决定重新入队或放弃。
func (c *RedisRetryConsumer) requeue(ctx context.Context, task RedisTask, execErr error) {
	task.RetryCount++
	if task.RetryCount > task.MaxRetries {
		c.logger.Printf("redis retry task dropped after %d attempts: cmd=%s err=%v",
			task.RetryCount, task.Command, execErr)
		return
	}

	payload, err := json.Marshal(task)
	if err != nil {
		c.logger.Printf("redis retry task marshal failed: %v", err)
		return
	}
	if err := c.producer.Send(ctx, []byte(task.UserUUID), payload); err != nil {
		c.logger.Printf("redis retry task requeue failed: cmd=%s err=%v", task.Command, err)
	}
}

// Close 关闭底层 Reader。
func (c *RedisRetryConsumer) Close() error {
	return c.reader.Close()
}
