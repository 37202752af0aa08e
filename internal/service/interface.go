package service

import (
	"context"

	"TagChat/internal/dto"
)

// Notifier 实时事件推送接口，由长连接网关实现
// 推送是尽力而为的：目标用户不在线时静默丢弃，不影响业务主流程。
type Notifier interface {
	Publish(ctx context.Context, userUUID, eventType string, data interface{})
}

// 推送事件类型
const (
	EventFriendRequestReceived = "friend_request_received"
	EventFriendRequestAccepted = "friend_request_accepted"
	EventFriendRemoved         = "friend_removed"
	EventNewPrivateMessage     = "new_private_message"
)

// IAuthService 认证服务接口
type IAuthService interface {
	// Register 注册新账号，自动分配 4 位数字识别码
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.UserInfoResponse, error)

	// Login 邮箱+密码登录，签发访问/刷新令牌对
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenPairResponse, error)

	// Refresh 刷新令牌轮换：旧令牌作废，签发新令牌对
	// 签名有效但不在白名单中的令牌视为重放，吊销该用户全部刷新令牌
	Refresh(ctx context.Context, refreshToken string) (*dto.TokenPairResponse, error)

	// Logout 注销刷新令牌，未知令牌静默成功
	Logout(ctx context.Context, refreshToken string) error

	// Profile 获取当前用户信息
	Profile(ctx context.Context, userUUID string) (*dto.UserInfoResponse, error)
}

// IFriendService 好友服务接口
type IFriendService interface {
	// SendRequest 向 username#tag 指定的用户发起好友申请
	SendRequest(ctx context.Context, senderUUID string, req *dto.SendFriendRequestRequest) error

	// GetPendingRequests 获取我收到的待处理申请
	GetPendingRequests(ctx context.Context, userUUID string) ([]*dto.PendingRequestResponse, error)

	// Respond 处理好友申请（accept / decline）
	Respond(ctx context.Context, userUUID string, req *dto.RespondFriendRequestRequest) error

	// RemoveFriend 删除好友
	RemoveFriend(ctx context.Context, userUUID, friendUUID string) error

	// GetFriendList 获取好友列表
	GetFriendList(ctx context.Context, userUUID string) ([]*dto.FriendResponse, error)
}

// IMessageService 私聊消息服务接口
type IMessageService interface {
	// Send 发送私聊消息，要求双方是好友
	Send(ctx context.Context, senderUUID string, req *dto.SendMessageRequest) (*dto.MessageResponse, error)

	// GetConversation 获取与某个好友的最近聊天记录（时间正序）
	GetConversation(ctx context.Context, userUUID, peerUUID string) ([]*dto.MessageResponse, error)
}
