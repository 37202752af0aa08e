package model

import (
	"time"

	"gorm.io/gorm"
)

// 关系状态
const (
	RelationStatusFriend  int8 = 0 // 好友（成对出现：A→B 与 B→A 各一行）
	RelationStatusPending int8 = 1 // 待处理申请（单向：申请人→目标一行）
)

// UserRelation 维护用户之间的有向关系（好友/待处理申请）。
// 约束：
//   - uniqueIndex:uidx_user_peer 确保同一有向对 (user, peer) 至多一行，
//     因此同一方向的好友与待处理申请天然互斥；
//   - 好友关系由事务成对写入两行，删除好友时成对软删除；
//   - 长度与 user_info.uuid 保持一致（char(20)）。
type UserRelation struct {
	Id        int64          `gorm:"column:id;primaryKey;autoIncrement;comment:自增id"`
	UserUuid  string         `gorm:"column:user_uuid;type:char(20);not null;uniqueIndex:uidx_user_peer;index:idx_user_status;comment:用户uuid"`
	PeerUuid  string         `gorm:"column:peer_uuid;type:char(20);not null;index;uniqueIndex:uidx_user_peer;comment:对端用户uuid"`
	Status    int8           `gorm:"column:status;not null;default:0;index:idx_user_status;comment:关系状态 0.好友 1.待处理申请"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (UserRelation) TableName() string { return "user_relation" }
