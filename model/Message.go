package model

import (
	"time"

	"gorm.io/gorm"
)

// Message 私聊消息。
// Uuid 为雪花 ID（char(20)），单调递增，可直接作为会话内排序键。
type Message struct {
	Id           int64          `gorm:"column:id;primaryKey;autoIncrement;comment:自增id"`
	Uuid         string         `gorm:"column:uuid;type:char(20);not null;uniqueIndex;comment:消息uuid"`
	SenderUuid   string         `gorm:"column:sender_uuid;type:char(20);not null;index:idx_sender_receiver;comment:发送者uuid"`
	ReceiverUuid string         `gorm:"column:receiver_uuid;type:char(20);not null;index:idx_sender_receiver;index;comment:接收者uuid"`
	Content      string         `gorm:"column:content;type:varchar(2000);not null;comment:消息内容"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt    gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (Message) TableName() string { return "message" }
