package rediskey

import (
	"fmt"
	"time"
)

// ==================== TTL 常量 ====================

const (
	// FriendRelationTTL 好友关系缓存 TTL
	FriendRelationTTL = 24 * time.Hour
	// FriendRelationEmptyTTL 好友关系空值缓存 TTL
	FriendRelationEmptyTTL = 5 * time.Minute

	// PendingRequestTTL 待处理好友申请缓存 TTL
	PendingRequestTTL = 24 * time.Hour
	// PendingRequestEmptyTTL 待处理申请空值缓存 TTL
	PendingRequestEmptyTTL = 5 * time.Minute

	// LoginFailTTL 登录失败计数 TTL（与锁定时长对齐，由配置覆盖）
	LoginFailTTL = 15 * time.Minute
)

// ==================== Key 构造函数 ====================

// FriendRelationKey 生成好友关系 Key: user:relation:friend:{user_uuid}
func FriendRelationKey(userUUID string) string {
	return fmt.Sprintf("user:relation:friend:%s", userUUID)
}

// PendingRequestKey 生成待处理好友申请 Key: user:request:pending:{target_uuid}
func PendingRequestKey(targetUUID string) string {
	return fmt.Sprintf("user:request:pending:%s", targetUUID)
}

// LoginFailKey 生成登录失败计数 Key: auth:login:fail:{email}
func LoginFailKey(email string) string {
	return fmt.Sprintf("auth:login:fail:%s", email)
}

// IPRateLimitKey 生成 IP 限流 Key: rate:limit:ip:{ip}
func IPRateLimitKey(ip string) string {
	return fmt.Sprintf("rate:limit:ip:%s", ip)
}
