package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Producer Kafka 生产者的轻封装。
// 内部使用 kafka-go 的 Writer，按 key 哈希分区，保证同 key 消息有序。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 创建指定 topic 的生产者。
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
			Async:        false,
		},
	}
}

// Send 发送一条消息。
func (p *Producer) Send(ctx context.Context, key, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
	})
}

// Close 关闭底层 Writer。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// ZapLoggerAdapter 把 zap 适配为 kafka-go 的 Logger 接口。
type ZapLoggerAdapter struct {
	l *zap.SugaredLogger
}

// NewZapLoggerAdapter 创建适配器。
func NewZapLoggerAdapter(l *zap.Logger) *ZapLoggerAdapter {
	return &ZapLoggerAdapter{l: l.Sugar()}
}

// Printf 实现 kafka.Logger。
func (a *ZapLoggerAdapter) Printf(format string, args ...interface{}) {
	a.l.Infof(format, args...)
}
