package repository

import (
	"context"
	"time"

	rediskey "TagChat/consts/redisKey"
	"TagChat/model"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// authRepositoryImpl 认证相关数据访问层实现（登录防护 + 刷新令牌白名单）
type authRepositoryImpl struct {
	db          *gorm.DB
	redisClient *redis.Client
}

// NewAuthRepository 创建认证仓储实例
func NewAuthRepository(db *gorm.DB, redisClient *redis.Client) IAuthRepository {
	return &authRepositoryImpl{db: db, redisClient: redisClient}
}

// IncrementFailedAttempts 原子递增连续失败次数，返回递增后的值
// 必须走数据库级原子自增（SET x = x + 1），读改写在并发登录下会丢失计数。
// Redis 里同步维护一份带 TTL 的计数器作为观测指标，失败不影响主流程。
func (r *authRepositoryImpl) IncrementFailedAttempts(ctx context.Context, userUUID string) (int, error) {
	var attempts int

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.UserInfo{}).
			Where("uuid = ?", userUUID).
			UpdateColumn("failed_login_attempts", gorm.Expr("failed_login_attempts + 1"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return tx.Model(&model.UserInfo{}).
			Select("failed_login_attempts").
			Where("uuid = ?", userUUID).
			Scan(&attempts).Error
	})
	if err != nil {
		return 0, WrapDBError(err)
	}

	// 观测计数器（尽力而为）
	if r.redisClient != nil {
		failKey := rediskey.LoginFailKey(userUUID)
		luaScript := redis.NewScript(luaIncrementWithExpire)
		if _, err := luaScript.Run(ctx, r.redisClient,
			[]string{failKey},
			int(rediskey.LoginFailTTL.Seconds()),
		).Result(); err != nil && err != redis.Nil {
			LogRedisError(ctx, err)
		}
	}

	return attempts, nil
}

// ResetFailedAttempts 清零失败次数并解除锁定
func (r *authRepositoryImpl) ResetFailedAttempts(ctx context.Context, userUUID string) error {
	err := r.db.WithContext(ctx).
		Model(&model.UserInfo{}).
		Where("uuid = ?", userUUID).
		Updates(map[string]interface{}{
			"failed_login_attempts": 0,
			"lock_until":            nil,
		}).Error
	if err != nil {
		return WrapDBError(err)
	}

	if r.redisClient != nil {
		if err := r.redisClient.Del(ctx, rediskey.LoginFailKey(userUUID)).Err(); err != nil && err != redis.Nil {
			LogRedisError(ctx, err)
		}
	}

	return nil
}

// LockAccount 设置锁定截止时间
// 条件更新：仅在当前未锁定或锁定时间更早时生效，并发触发锁定时不回退截止时间。
func (r *authRepositoryImpl) LockAccount(ctx context.Context, userUUID string, until time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&model.UserInfo{}).
		Where("uuid = ? AND (lock_until IS NULL OR lock_until < ?)", userUUID, until).
		Update("lock_until", until).
		Error
	return WrapDBError(err)
}

// UpdateLastLogin 更新最后登录时间
func (r *authRepositoryImpl) UpdateLastLogin(ctx context.Context, userUUID string) error {
	err := r.db.WithContext(ctx).
		Model(&model.UserInfo{}).
		Where("uuid = ?", userUUID).
		Update("last_login_at", time.Now()).
		Error
	return WrapDBError(err)
}

// StoreRefreshToken 写入刷新令牌
// 同一事务内：清理该用户已过期的行 -> 超出 cap 时淘汰最早签发的 -> 插入新行。
// 淘汰顺序按签发时间，保证最近设备的会话不被挤掉。
func (r *authRepositoryImpl) StoreRefreshToken(ctx context.Context, token *model.RefreshToken, cap int) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		// 1. 清理已过期的行
		if err := tx.Where("user_uuid = ? AND expires_at <= ?", token.UserUuid, now).
			Delete(&model.RefreshToken{}).Error; err != nil {
			return err
		}

		// 2. 超出上限时淘汰最早签发的
		if cap > 0 {
			var count int64
			if err := tx.Model(&model.RefreshToken{}).
				Where("user_uuid = ?", token.UserUuid).
				Count(&count).Error; err != nil {
				return err
			}

			if excess := int(count) - cap + 1; excess > 0 {
				var oldestIDs []int64
				if err := tx.Model(&model.RefreshToken{}).
					Select("id").
					Where("user_uuid = ?", token.UserUuid).
					Order("created_at ASC, id ASC").
					Limit(excess).
					Scan(&oldestIDs).Error; err != nil {
					return err
				}
				if len(oldestIDs) > 0 {
					if err := tx.Where("id IN ?", oldestIDs).
						Delete(&model.RefreshToken{}).Error; err != nil {
						return err
					}
				}
			}
		}

		// 3. 插入新行
		return tx.Create(token).Error
	})

	return WrapDBError(err)
}

// GetRefreshToken 查询刷新令牌
func (r *authRepositoryImpl) GetRefreshToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	var row model.RefreshToken
	// 过期的行视同不存在，签名校验与存储层口径保持一致
	if err := r.db.WithContext(ctx).
		Where("token = ? AND expires_at > ?", token, time.Now()).
		First(&row).Error; err != nil {
		return nil, WrapDBError(err)
	}
	return &row, nil
}

// DeleteRefreshToken 删除刷新令牌，返回是否真的删掉了一行
func (r *authRepositoryImpl) DeleteRefreshToken(ctx context.Context, token string) (bool, error) {
	result := r.db.WithContext(ctx).Where("token = ?", token).Delete(&model.RefreshToken{})
	if result.Error != nil {
		return false, WrapDBError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

// DeleteAllRefreshTokens 清空用户全部刷新令牌（重放时全量吊销）
func (r *authRepositoryImpl) DeleteAllRefreshTokens(ctx context.Context, userUUID string) error {
	err := r.db.WithContext(ctx).
		Where("user_uuid = ?", userUUID).
		Delete(&model.RefreshToken{}).
		Error
	return WrapDBError(err)
}
