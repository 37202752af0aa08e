package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"TagChat/model"
	"TagChat/pkg/async"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// userRepositoryImpl 用户信息数据访问层实现
type userRepositoryImpl struct {
	db          *gorm.DB
	redisClient *redis.Client
}

// NewUserRepository 创建用户信息仓储实例
func NewUserRepository(db *gorm.DB, redisClient *redis.Client) IUserRepository {
	return &userRepositoryImpl{db: db, redisClient: redisClient}
}

func userInfoCacheKey(uuid string) string {
	return fmt.Sprintf("user:info:%s", uuid)
}

// Create 创建新用户
func (r *userRepositoryImpl) Create(ctx context.Context, user *model.UserInfo) (*model.UserInfo, error) {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, WrapDBError(err)
	}
	return user, nil
}

// GetByUUID 根据UUID查询用户信息
// Cache-Aside：优先查 Redis，未命中回源 MySQL 并异步回填；
// 不存在的用户写 `{}` 空占位防穿透，占位命中和 DB 未命中都返回 ErrRecordNotFound。
func (r *userRepositoryImpl) GetByUUID(ctx context.Context, uuid string) (*model.UserInfo, error) {
	cacheKey := userInfoCacheKey(uuid)

	if r.redisClient != nil {
		cachedData, err := r.redisClient.Get(ctx, cacheKey).Result()
		if err == nil {
			if cachedData == "{}" {
				return nil, ErrRecordNotFound
			}
			var user model.UserInfo
			if err := json.Unmarshal([]byte(cachedData), &user); err == nil {
				return &user, nil
			}
		}
		if err != nil && err != redis.Nil {
			LogRedisError(ctx, err) // 记录日志 降级处理
		}
	}

	// 缓存未命中，查询 MySQL
	var user model.UserInfo
	err := r.db.WithContext(ctx).Where("uuid = ?", uuid).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 存一份空占位 5min 过期
			if r.redisClient != nil {
				async.RunSafe(ctx, func(runCtx context.Context) {
					if err := r.redisClient.Set(runCtx, cacheKey, "{}", getRandomExpireTime(5*time.Minute)).Err(); err != nil {
						LogRedisError(runCtx, err)
					}
				}, 0)
			}
			return nil, ErrRecordNotFound
		}
		return nil, WrapDBError(err)
	}

	// 异步回填缓存，随机过期时间防雪崩
	if r.redisClient != nil {
		userJSON, marshalErr := json.Marshal(&user)
		if marshalErr == nil {
			async.RunSafe(ctx, func(runCtx context.Context) {
				if err := r.redisClient.Set(runCtx, cacheKey, userJSON, getRandomExpireTime(time.Hour)).Err(); err != nil {
					LogRedisError(runCtx, err)
				}
			}, 0)
		}
	}

	return &user, nil
}

// GetByEmail 根据邮箱查询用户信息
// 登录路径依赖 failed_login_attempts/lock_until 的最新值，不走缓存。
func (r *userRepositoryImpl) GetByEmail(ctx context.Context, email string) (*model.UserInfo, error) {
	var user model.UserInfo
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, WrapDBError(err)
	}
	return &user, nil
}

// GetByUsernameTag 根据用户名+数字后缀查询用户
func (r *userRepositoryImpl) GetByUsernameTag(ctx context.Context, username, tag string) (*model.UserInfo, error) {
	var user model.UserInfo
	if err := r.db.WithContext(ctx).Where("username = ? AND tag = ?", username, tag).First(&user).Error; err != nil {
		return nil, WrapDBError(err)
	}
	return &user, nil
}

// ExistsByUsernameTag 检查用户名+后缀组合是否已占用
func (r *userRepositoryImpl) ExistsByUsernameTag(ctx context.Context, username, tag string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.UserInfo{}).
		Where("username = ? AND tag = ?", username, tag).
		Count(&count).
		Error
	if err != nil {
		return false, WrapDBError(err)
	}
	return count > 0, nil
}

// BatchGetByUUIDs 批量查询用户信息
// 返回结果按传入的 uuids 顺序排列，不存在的用户不包含在结果中
func (r *userRepositoryImpl) BatchGetByUUIDs(ctx context.Context, uuids []string) ([]*model.UserInfo, error) {
	if len(uuids) == 0 {
		return []*model.UserInfo{}, nil
	}

	userMap := make(map[string]*model.UserInfo, len(uuids))
	missUUIDs := make([]string, 0, len(uuids))

	// 批量查询 Redis
	var cachedValues []interface{}
	if r.redisClient != nil {
		keys := make([]string, 0, len(uuids))
		for _, uuid := range uuids {
			keys = append(keys, userInfoCacheKey(uuid))
		}

		var err error
		cachedValues, err = r.redisClient.MGet(ctx, keys...).Result()
		if err != nil && err != redis.Nil {
			LogRedisError(ctx, err)
			// Redis 异常时降级走 DB 全量查询
			cachedValues = nil
		}
	}

	if cachedValues != nil {
		for i, value := range cachedValues {
			uuid := uuids[i]

			if value == nil {
				missUUIDs = append(missUUIDs, uuid)
				continue
			}

			var raw string
			switch v := value.(type) {
			case string:
				raw = v
			case []byte:
				raw = string(v)
			default:
				missUUIDs = append(missUUIDs, uuid)
				continue
			}

			// 空占位符 `{}` 表示用户不存在，标记为已处理，不回源
			if raw == "" || raw == "{}" {
				userMap[uuid] = nil
				continue
			}

			var user model.UserInfo
			if err := json.Unmarshal([]byte(raw), &user); err != nil {
				missUUIDs = append(missUUIDs, uuid)
				continue
			}
			userMap[uuid] = &user
		}
	} else {
		missUUIDs = append(missUUIDs, uuids...)
	}

	// 对未命中部分回源 MySQL
	if len(missUUIDs) > 0 {
		var dbUsers []*model.UserInfo
		err := r.db.WithContext(ctx).
			Where("uuid IN ?", missUUIDs).
			Find(&dbUsers).
			Error
		if err != nil {
			return nil, WrapDBError(err)
		}

		foundUUIDs := make(map[string]struct{}, len(dbUsers))
		for _, user := range dbUsers {
			if user != nil && user.Uuid != "" {
				userMap[user.Uuid] = user
				foundUUIDs[user.Uuid] = struct{}{}
			}
		}
		for _, uuid := range missUUIDs {
			if _, ok := foundUUIDs[uuid]; !ok {
				userMap[uuid] = nil
			}
		}

		// 异步回填 Redis 缓存
		if r.redisClient != nil {
			async.RunSafe(ctx, func(runCtx context.Context) {
				pipe := r.redisClient.Pipeline()

				for _, user := range dbUsers {
					if user == nil || user.Uuid == "" {
						continue
					}
					userJSON, err := json.Marshal(user)
					if err != nil {
						continue
					}
					pipe.Set(runCtx, userInfoCacheKey(user.Uuid), userJSON, getRandomExpireTime(time.Hour))
				}

				// 对不存在的 UUID 写入空占位，避免缓存穿透
				for _, uuid := range missUUIDs {
					if _, ok := foundUUIDs[uuid]; ok {
						continue
					}
					pipe.Set(runCtx, userInfoCacheKey(uuid), "{}", getRandomExpireTime(5*time.Minute))
				}

				if _, err := pipe.Exec(runCtx); err != nil {
					LogRedisError(runCtx, err)
				}
			}, 0)
		}
	}

	// 按原始 uuids 顺序构建结果
	result := make([]*model.UserInfo, 0, len(uuids))
	for _, uuid := range uuids {
		if user, ok := userMap[uuid]; ok && user != nil {
			result = append(result, user)
		}
	}

	return result, nil
}
