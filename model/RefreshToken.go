package model

import "time"

// RefreshToken 已签发的刷新令牌白名单。
// 语义：
// - 只有在表中的刷新令牌才允许换发，换发即删除旧行（单次使用）；
// - 拿着合法签名但不在表中的令牌换发，视为重放，清空该用户全部行；
// - 每用户最多保留 MaxRefreshPer 行，超出时淘汰最早签发的。
type RefreshToken struct {
	Id        int64     `gorm:"column:id;primaryKey;autoIncrement;comment:自增id"`
	UserUuid  string    `gorm:"column:user_uuid;type:char(20);not null;index;comment:用户uuid"`
	Token     string    `gorm:"column:token;type:varchar(512);not null;uniqueIndex:uidx_token,length:255;comment:刷新令牌"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null;index;comment:过期时间"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (RefreshToken) TableName() string { return "refresh_token" }
