package repository

import (
	"context"

	"TagChat/model"

	"gorm.io/gorm"
)

// messageRepositoryImpl 私聊消息数据访问层实现
type messageRepositoryImpl struct {
	db *gorm.DB
}

// NewMessageRepository 创建消息仓储实例
func NewMessageRepository(db *gorm.DB) IMessageRepository {
	return &messageRepositoryImpl{db: db}
}

// Create 持久化一条私聊消息
func (r *messageRepositoryImpl) Create(ctx context.Context, message *model.Message) (*model.Message, error) {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return nil, WrapDBError(err)
	}
	return message, nil
}

// GetConversation 获取两个用户之间最近 limit 条消息，返回时间正序
// 先按倒序取最近的 limit 条，再反转，保证客户端拿到的是可直接渲染的时间线。
func (r *messageRepositoryImpl) GetConversation(ctx context.Context, userUUID, peerUUID string, limit int) ([]*model.Message, error) {
	var messages []*model.Message
	err := r.db.WithContext(ctx).
		Where("(sender_uuid = ? AND receiver_uuid = ?) OR (sender_uuid = ? AND receiver_uuid = ?)",
			userUUID, peerUUID, peerUUID, userUUID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, WrapDBError(err)
	}

	// 反转为时间正序
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
