package connect

import (
	"context"
	"encoding/json"
	"time"

	"TagChat/pkg/async"
	"TagChat/pkg/logger"
)

// Envelope 下行/上行统一帧格式。
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
	Ts   int64           `json:"ts"` // 毫秒时间戳
}

// MarshalEnvelope 序列化一个下行帧。
func MarshalEnvelope(eventType string, data interface{}) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = encoded
	}
	return json.Marshal(Envelope{
		Type: eventType,
		Data: raw,
		Ts:   time.Now().UnixMilli(),
	})
}

// Notifier 把业务事件推送到用户的全部在线连接。
// 推送是尽力而为的：序列化失败只记日志，用户不在线静默丢弃，
// 投递在协程池里异步执行，不阻塞业务主流程。
type Notifier struct {
	connManager *ConnectionManager
}

// NewNotifier 创建实时事件推送器。
func NewNotifier(connManager *ConnectionManager) *Notifier {
	return &Notifier{connManager: connManager}
}

// Publish 向指定用户广播一个事件。
func (n *Notifier) Publish(ctx context.Context, userUUID, eventType string, data interface{}) {
	payload, err := MarshalEnvelope(eventType, data)
	if err != nil {
		logger.Warn(ctx, "事件序列化失败",
			logger.String("event_type", eventType),
			logger.String("user_uuid", userUUID),
			logger.ErrorField("error", err))
		return
	}

	async.RunSafe(ctx, func(runCtx context.Context) {
		sent := n.connManager.SendToUser(userUUID, payload)
		if sent == 0 {
			logger.Debug(runCtx, "事件推送目标不在线",
				logger.String("event_type", eventType),
				logger.String("user_uuid", userUUID))
		}
	}, 0)
}
