package repository

import (
	"context"
	"time"

	"TagChat/model"
)

// ==================== 用户信息 Repository ====================

// IUserRepository 用户信息数据访问接口
type IUserRepository interface {
	// Create 创建新用户
	Create(ctx context.Context, user *model.UserInfo) (*model.UserInfo, error)

	// GetByUUID 根据UUID查询用户信息（Cache-Aside），用户不存在时返回 ErrRecordNotFound
	GetByUUID(ctx context.Context, uuid string) (*model.UserInfo, error)

	// GetByEmail 根据邮箱查询用户信息（直查 DB，登录路径需要最新的锁定字段）
	GetByEmail(ctx context.Context, email string) (*model.UserInfo, error)

	// GetByUsernameTag 根据用户名+数字后缀查询用户
	GetByUsernameTag(ctx context.Context, username, tag string) (*model.UserInfo, error)

	// ExistsByUsernameTag 检查用户名+后缀组合是否已占用
	ExistsByUsernameTag(ctx context.Context, username, tag string) (bool, error)

	// BatchGetByUUIDs 批量查询用户信息，结果按传入顺序排列，缺失的跳过
	BatchGetByUUIDs(ctx context.Context, uuids []string) ([]*model.UserInfo, error)
}

// ==================== 认证 Repository ====================

// IAuthRepository 认证相关数据访问接口（登录防护 + 刷新令牌白名单）
type IAuthRepository interface {
	// IncrementFailedAttempts 原子递增连续失败次数，返回递增后的值
	IncrementFailedAttempts(ctx context.Context, userUUID string) (int, error)

	// ResetFailedAttempts 清零失败次数并解除锁定
	ResetFailedAttempts(ctx context.Context, userUUID string) error

	// LockAccount 设置锁定截止时间（仅在尚未锁定到更晚时间时生效）
	LockAccount(ctx context.Context, userUUID string, until time.Time) error

	// UpdateLastLogin 更新最后登录时间
	UpdateLastLogin(ctx context.Context, userUUID string) error

	// StoreRefreshToken 写入刷新令牌：清理过期行，超出 cap 时淘汰最早签发的
	StoreRefreshToken(ctx context.Context, token *model.RefreshToken, cap int) error

	// GetRefreshToken 查询刷新令牌（不存在返回 ErrRecordNotFound）
	GetRefreshToken(ctx context.Context, token string) (*model.RefreshToken, error)

	// DeleteRefreshToken 删除刷新令牌，返回是否真的删掉了一行
	DeleteRefreshToken(ctx context.Context, token string) (bool, error)

	// DeleteAllRefreshTokens 清空用户全部刷新令牌（重放时全量吊销）
	DeleteAllRefreshTokens(ctx context.Context, userUUID string) error
}

// ==================== 社交关系 Repository ====================

// IRelationRepository 社交关系数据访问接口（好友 + 待处理申请）
type IRelationRepository interface {
	// CreatePending 创建待处理申请（sender→target 单行）
	// 同一有向对已存在任何关系时返回 ErrDuplicateKey
	CreatePending(ctx context.Context, senderUUID, targetUUID string) error

	// ExistsPending 检查 sender→target 是否存在待处理申请
	ExistsPending(ctx context.Context, senderUUID, targetUUID string) (bool, error)

	// GetPendingReceived 获取 target 收到的全部待处理申请，按创建时间倒序
	GetPendingReceived(ctx context.Context, targetUUID string) ([]*model.UserRelation, error)

	// AcceptPendingAndCreateFriend 同意申请并建立好友关系（事务 + CAS 幂等）
	// 同一事务内：
	//  1. CAS 把 sender→target 行从 pending 翻转为 friend（WHERE status=pending 守门员）
	//  2. Upsert 镜像行 target→sender 为 friend
	// 返回 alreadyProcessed=true 表示申请已被处理（幂等成功，不是错误）
	AcceptPendingAndCreateFriend(ctx context.Context, senderUUID, targetUUID string) (alreadyProcessed bool, err error)

	// DeclinePending 拒绝申请（CAS 删除 pending 行，已处理返回 ErrRequestNotFound）
	DeclinePending(ctx context.Context, senderUUID, targetUUID string) error

	// DeleteFriend 删除好友（成对软删除两行，任一方向缺失返回 ErrRecordNotFound）
	DeleteFriend(ctx context.Context, userUUID, friendUUID string) error

	// IsFriend 检查是否是好友（Cache-Aside）
	IsFriend(ctx context.Context, userUUID, friendUUID string) (bool, error)

	// GetFriendList 获取好友列表，按建立时间倒序
	GetFriendList(ctx context.Context, userUUID string) ([]*model.UserRelation, error)
}

// ==================== 消息 Repository ====================

// IMessageRepository 私聊消息数据访问接口
type IMessageRepository interface {
	// Create 持久化一条消息
	Create(ctx context.Context, msg *model.Message) (*model.Message, error)

	// GetConversation 获取两人之间最近 limit 条消息，按时间正序返回
	GetConversation(ctx context.Context, userUUID, peerUUID string, limit int) ([]*model.Message, error)
}
