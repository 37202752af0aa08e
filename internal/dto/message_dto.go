package dto

// SendMessageRequest 发送私聊消息
type SendMessageRequest struct {
	ReceiverUuid string `json:"receiverUuid" binding:"required"`
	Content      string `json:"content" binding:"required,max=2000"`
}

// MessageResponse 单条消息
type MessageResponse struct {
	Uuid         string `json:"uuid"`
	SenderUuid   string `json:"senderUuid"`
	ReceiverUuid string `json:"receiverUuid"`
	Content      string `json:"content"`
	CreatedAt    int64  `json:"createdAt"` // 毫秒时间戳
}
