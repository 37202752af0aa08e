package model

import (
	"time"

	"gorm.io/gorm"
)

// UserInfo 用户主档。
// 约束：
// - uniqueIndex:uidx_username_tag 保证 (username, tag) 组合全局唯一，tag 为 4 位数字后缀；
// - email 全局唯一；
// - failed_login_attempts/lock_until 由认证层原子更新，禁止读改写。
type UserInfo struct {
	Id                  int64          `gorm:"column:id;primaryKey;autoIncrement;comment:自增id"`
	Uuid                string         `gorm:"column:uuid;type:char(20);not null;uniqueIndex;comment:用户uuid"`
	Username            string         `gorm:"column:username;type:varchar(20);not null;uniqueIndex:uidx_username_tag;comment:用户名"`
	Tag                 string         `gorm:"column:tag;type:char(4);not null;uniqueIndex:uidx_username_tag;comment:4位数字后缀"`
	Email               string         `gorm:"column:email;type:varchar(128);not null;uniqueIndex;comment:邮箱"`
	Password            string         `gorm:"column:password;type:varchar(128);not null;comment:bcrypt密码哈希"`
	Nickname            string         `gorm:"column:nickname;type:varchar(32);comment:昵称"`
	Avatar              string         `gorm:"column:avatar;type:varchar(255);comment:头像"`
	Status              int8           `gorm:"column:status;not null;default:0;comment:账号状态 0.正常 1.禁用"`
	FailedLoginAttempts int            `gorm:"column:failed_login_attempts;not null;default:0;comment:连续登录失败次数"`
	LockUntil           *time.Time     `gorm:"column:lock_until;comment:锁定截止时间，NULL表示未锁定"`
	LastLoginAt         *time.Time     `gorm:"column:last_login_at;comment:最后登录时间"`
	CreatedAt           time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt           gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (UserInfo) TableName() string { return "user_info" }

// Locked 判断账号在 now 时刻是否处于锁定状态。
func (u *UserInfo) Locked(now time.Time) bool {
	return u.LockUntil != nil && u.LockUntil.After(now)
}
