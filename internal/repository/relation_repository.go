package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	rediskey "TagChat/consts/redisKey"
	"TagChat/internal/mq"
	"TagChat/model"
	"TagChat/pkg/async"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// relationRepositoryImpl 社交关系数据访问层实现
type relationRepositoryImpl struct {
	db          *gorm.DB
	redisClient *redis.Client
}

// NewRelationRepository 创建社交关系仓储实例
func NewRelationRepository(db *gorm.DB, redisClient *redis.Client) IRelationRepository {
	return &relationRepositoryImpl{db: db, redisClient: redisClient}
}

// CreatePending 创建待处理申请（sender→target 单行）
// 软删除的行仍占用 uidx_user_peer 唯一索引，拒绝/删好友后重新申请必须复活旧行；
// 存活行（pending 或 friend）报 ErrDuplicateKey，并发下的重复插入由唯一索引兜底。
func (r *relationRepositoryImpl) CreatePending(ctx context.Context, senderUUID, targetUUID string) error {
	now := time.Now()
	relation := &model.UserRelation{
		UserUuid:  senderUUID,
		PeerUuid:  targetUUID,
		Status:    model.RelationStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.UserRelation
		err := tx.Unscoped().
			Where("user_uuid = ? AND peer_uuid = ?", senderUUID, targetUUID).
			First(&existing).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return tx.Create(relation).Error
			}
			return err
		}

		// 存活行说明申请或好友关系还在
		if !existing.DeletedAt.Valid {
			return ErrDuplicateKey
		}

		// 复活软删除的行，重置为全新的待处理申请
		return tx.Unscoped().
			Model(&model.UserRelation{}).
			Where("id = ?", existing.Id).
			Updates(map[string]interface{}{
				"status":     model.RelationStatusPending,
				"deleted_at": nil,
				"created_at": now,
				"updated_at": now,
			}).Error
	})
	if err != nil {
		if err == ErrDuplicateKey {
			return err
		}
		return WrapDBError(err)
	}

	// 尽力而为地更新目标用户的待处理申请缓存。
	// 关键原则：只有 Key 存在时才增量添加，Key 不存在时不操作（让读接口负责全量加载）。
	if r.redisClient != nil {
		cacheKey := rediskey.PendingRequestKey(targetUUID)
		luaScript := redis.NewScript(luaAddPendingIfExists)
		expireSeconds := int(getRandomExpireTime(rediskey.PendingRequestTTL).Seconds())
		_, err := luaScript.Run(ctx, r.redisClient,
			[]string{cacheKey},
			relation.CreatedAt.Unix(),
			senderUUID,
			expireSeconds,
		).Result()
		if err != nil && err != redis.Nil {
			LogRedisError(ctx, err)
		}
	}

	return nil
}

// ExistsPending 检查 sender→target 是否存在待处理申请
// Cache-Aside：优先查目标用户的待处理 ZSet，未命中回源 MySQL 并重建缓存。
func (r *relationRepositoryImpl) ExistsPending(ctx context.Context, senderUUID, targetUUID string) (bool, error) {
	if r.redisClient != nil {
		cacheKey := rediskey.PendingRequestKey(targetUUID)

		pipe := r.redisClient.Pipeline()
		existsCmd := pipe.Exists(ctx, cacheKey)
		scoreCmd := pipe.ZScore(ctx, cacheKey, senderUUID)

		// 概率续期：1% 的概率在读取时顺便续期
		if getRandomBool(0.01) {
			pipe.Expire(ctx, cacheKey, getRandomExpireTime(rediskey.PendingRequestTTL))
		}

		_, err := pipe.Exec(ctx)
		if err != nil && err != redis.Nil {
			LogRedisError(ctx, err)
		} else if existsCmd.Val() > 0 {
			if scoreCmd.Err() == nil {
				return true, nil
			}
			if scoreCmd.Err() == redis.Nil {
				return false, nil
			}
			LogRedisError(ctx, scoreCmd.Err())
		}
	}

	// 缓存未命中，回源查询 MySQL
	pendings, err := r.queryPendingReceived(ctx, targetUUID)
	if err != nil {
		return false, err
	}

	r.rebuildPendingCacheAsync(ctx, targetUUID, pendings)

	for _, rel := range pendings {
		if rel.UserUuid == senderUUID {
			return true, nil
		}
	}
	return false, nil
}

// GetPendingReceived 获取 target 收到的全部待处理申请，按创建时间倒序
func (r *relationRepositoryImpl) GetPendingReceived(ctx context.Context, targetUUID string) ([]*model.UserRelation, error) {
	pendings, err := r.queryPendingReceived(ctx, targetUUID)
	if err != nil {
		return nil, err
	}
	r.rebuildPendingCacheAsync(ctx, targetUUID, pendings)
	return pendings, nil
}

func (r *relationRepositoryImpl) queryPendingReceived(ctx context.Context, targetUUID string) ([]*model.UserRelation, error) {
	var pendings []*model.UserRelation
	err := r.db.WithContext(ctx).
		Where("peer_uuid = ? AND status = ?", targetUUID, model.RelationStatusPending).
		Order("created_at DESC, id DESC").
		Find(&pendings).Error
	if err != nil {
		return nil, WrapDBError(err)
	}
	return pendings, nil
}

// AcceptPendingAndCreateFriend 同意申请并建立好友关系（事务 + CAS幂等）
// 在同一事务中执行：
//  1. CAS 翻转申请行（WHERE status=pending 守门员），sender→target 变为好友行
//  2. Upsert 镜像行 target→sender（恢复软删除）
//
// 返回值:
//   - alreadyProcessed=true: 申请已被处理（幂等成功，不是错误）
//   - err: 真正的数据库错误
func (r *relationRepositoryImpl) AcceptPendingAndCreateFriend(ctx context.Context, senderUUID, targetUUID string) (bool, error) {
	now := time.Now()
	var alreadyProcessed bool

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. CAS 翻转申请行
		result := tx.Model(&model.UserRelation{}).
			Where("user_uuid = ? AND peer_uuid = ? AND status = ?", senderUUID, targetUUID, model.RelationStatusPending).
			Updates(map[string]interface{}{
				"status":     model.RelationStatusFriend,
				"updated_at": now,
			})
		if result.Error != nil {
			return result.Error
		}

		// 幂等判断：RowsAffected=0 表示已被处理
		if result.RowsAffected == 0 {
			alreadyProcessed = true
			return nil // 不触发回滚，幂等成功
		}

		// 2. Upsert 镜像行 target→sender
		mirror := &model.UserRelation{
			UserUuid:  targetUUID,
			PeerUuid:  senderUUID,
			Status:    model.RelationStatusFriend,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_uuid"}, {Name: "peer_uuid"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"status":     model.RelationStatusFriend,
				"deleted_at": nil, // 恢复软删除
				"updated_at": now,
			}),
		}).Create(mirror).Error
	})

	if err != nil {
		return false, WrapDBError(err)
	}

	// 事务成功后异步同步 Redis 缓存
	if !alreadyProcessed {
		r.acceptCacheAsync(ctx, senderUUID, targetUUID)
	}

	return alreadyProcessed, nil
}

// acceptCacheAsync 接受申请后的缓存同步：
// - 把 sender 从 target 的待处理 ZSet 中移除；
// - 双方的好友 Hash 增量插入对方（仅在 key 存在时）。
func (r *relationRepositoryImpl) acceptCacheAsync(ctx context.Context, senderUUID, targetUUID string) {
	if r.redisClient == nil {
		return
	}
	async.RunSafe(ctx, func(runCtx context.Context) {
		now := time.Now()

		// 待处理申请移除
		pendingKey := rediskey.PendingRequestKey(targetUUID)
		removeScript := redis.NewScript(luaRemovePendingIfExists)
		pendingExpire := int(getRandomExpireTime(rediskey.PendingRequestTTL).Seconds())
		if _, err := removeScript.Run(runCtx, r.redisClient,
			[]string{pendingKey},
			senderUUID,
			pendingExpire,
		).Result(); err != nil && err != redis.Nil {
			if isRedisWrongType(err) {
				_ = r.redisClient.Del(runCtx, pendingKey).Err()
			} else {
				task := mq.BuildZRemTask(pendingKey, senderUUID).
					WithSource("RelationRepository.AcceptPendingAndCreateFriend")
				LogAndRetryRedisError(runCtx, task, err)
			}
		}

		// 好友 Hash 增量插入
		pairs := []struct{ userKey, newFriend string }{
			{rediskey.FriendRelationKey(senderUUID), targetUUID},
			{rediskey.FriendRelationKey(targetUUID), senderUUID},
		}
		insertScript := redis.NewScript(luaInsertFriendIfExists)
		friendExpire := int(getRandomExpireTime(rediskey.FriendRelationTTL).Seconds())
		member := strconv.FormatInt(now.UnixMilli(), 10)

		for _, pair := range pairs {
			_, err := insertScript.Run(runCtx, r.redisClient,
				[]string{pair.userKey},
				pair.newFriend,
				member,
				friendExpire,
			).Result()
			if err != nil && err != redis.Nil {
				if isRedisWrongType(err) {
					_ = r.redisClient.Del(runCtx, pair.userKey).Err()
					continue
				}
				LogRedisError(runCtx, err)
			}
		}
	}, 0)
}

// DeclinePending 拒绝申请（CAS 软删除 pending 行）
func (r *relationRepositoryImpl) DeclinePending(ctx context.Context, senderUUID, targetUUID string) error {
	now := time.Now()

	result := r.db.WithContext(ctx).
		Model(&model.UserRelation{}).
		Where("user_uuid = ? AND peer_uuid = ? AND status = ?", senderUUID, targetUUID, model.RelationStatusPending).
		Updates(map[string]interface{}{
			"deleted_at": gorm.DeletedAt{Time: now, Valid: true},
			"updated_at": now,
		})
	if result.Error != nil {
		return WrapDBError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRequestNotFound
	}

	// 异步增量移除缓存
	if r.redisClient != nil {
		cacheKey := rediskey.PendingRequestKey(targetUUID)
		async.RunSafe(ctx, func(runCtx context.Context) {
			luaScript := redis.NewScript(luaRemovePendingIfExists)
			expireSeconds := int(getRandomExpireTime(rediskey.PendingRequestTTL).Seconds())
			_, err := luaScript.Run(runCtx, r.redisClient,
				[]string{cacheKey},
				senderUUID,
				expireSeconds,
			).Result()
			if err != nil && err != redis.Nil {
				if isRedisWrongType(err) {
					_ = r.redisClient.Del(runCtx, cacheKey).Err()
					return
				}
				task := mq.BuildZRemTask(cacheKey, senderUUID).
					WithSource("RelationRepository.DeclinePending")
				LogAndRetryRedisError(runCtx, task, err)
			}
		}, 0)
	}

	return nil
}

// DeleteFriend 删除好友（成对软删除两行）
// 以 user→friend 方向的删除行数判断关系是否存在；镜像行缺失只记录不报错。
func (r *relationRepositoryImpl) DeleteFriend(ctx context.Context, userUUID, friendUUID string) error {
	now := time.Now()
	deleted := gorm.DeletedAt{Time: now, Valid: true}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.UserRelation{}).
			Where("user_uuid = ? AND peer_uuid = ? AND status = ?", userUUID, friendUUID, model.RelationStatusFriend).
			Updates(map[string]interface{}{
				"deleted_at": deleted,
				"updated_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrRecordNotFound
		}

		// 镜像行
		return tx.Model(&model.UserRelation{}).
			Where("user_uuid = ? AND peer_uuid = ? AND status = ?", friendUUID, userUUID, model.RelationStatusFriend).
			Updates(map[string]interface{}{
				"deleted_at": deleted,
				"updated_at": now,
			}).Error
	})
	if err != nil {
		if err == ErrRecordNotFound {
			return err
		}
		return WrapDBError(err)
	}

	// 异步增量更新双方好友缓存
	r.removeFriendCacheAsync(ctx, userUUID, friendUUID)

	return nil
}

// removeFriendCacheAsync 异步删除双方好友缓存
// 仅在缓存存在时做增量更新，避免过期后写入不完整 Hash
func (r *relationRepositoryImpl) removeFriendCacheAsync(ctx context.Context, userUUID, friendUUID string) {
	if r.redisClient == nil {
		return
	}
	async.RunSafe(ctx, func(runCtx context.Context) {
		pairs := []struct{ userKey, removed string }{
			{rediskey.FriendRelationKey(userUUID), friendUUID},
			{rediskey.FriendRelationKey(friendUUID), userUUID},
		}
		luaScript := redis.NewScript(luaRemoveFriendIfExists)
		expireSeconds := int(getRandomExpireTime(rediskey.FriendRelationTTL).Seconds())

		for _, pair := range pairs {
			_, err := luaScript.Run(runCtx, r.redisClient,
				[]string{pair.userKey},
				pair.removed,
				"0",
				expireSeconds,
			).Result()
			if err != nil && err != redis.Nil {
				if isRedisWrongType(err) {
					_ = r.redisClient.Del(runCtx, pair.userKey).Err()
					continue
				}
				task := mq.BuildHDelTask(pair.userKey, pair.removed).
					WithSource("RelationRepository.DeleteFriend")
				LogAndRetryRedisError(runCtx, task, err)
			}
		}
	}, 0)
}

// IsFriend 检查是否是好友
// 采用 Cache-Aside Pattern：优先查 Redis Hash，未命中则回源 MySQL 并缓存
func (r *relationRepositoryImpl) IsFriend(ctx context.Context, userUUID, friendUUID string) (bool, error) {
	if r.redisClient != nil {
		cacheKey := rediskey.FriendRelationKey(userUUID)

		// 组合查询 Redis (Pipeline)，减少网络 RTT
		pipe := r.redisClient.Pipeline()
		existsCmd := pipe.Exists(ctx, cacheKey)
		memberCmd := pipe.HGet(ctx, cacheKey, friendUUID)

		// 概率续期优化：1% 的概率在读取时顺便续期
		if getRandomBool(0.01) {
			pipe.Expire(ctx, cacheKey, getRandomExpireTime(rediskey.FriendRelationTTL))
		}

		_, err := pipe.Exec(ctx)
		if err != nil && err != redis.Nil {
			if isRedisWrongType(err) {
				_ = r.redisClient.Del(ctx, cacheKey).Err()
			} else {
				// Redis 挂了，记录日志，降级去查 DB
				LogRedisError(ctx, err)
			}
		} else if existsCmd.Val() > 0 {
			// 缓存命中
			if memberCmd.Err() == nil {
				return true, nil
			}
			if memberCmd.Err() == redis.Nil {
				return false, nil
			}
			if isRedisWrongType(memberCmd.Err()) {
				_ = r.redisClient.Del(ctx, cacheKey).Err()
			} else {
				LogRedisError(ctx, memberCmd.Err())
			}
		}
		// 缓存未命中，继续往下走查数据库
	}

	// 回源查询 MySQL
	relations, err := r.queryFriends(ctx, userUUID)
	if err != nil {
		return false, err
	}

	// 重建缓存 (Hash)
	r.rebuildFriendCacheAsync(ctx, userUUID, relations)

	for _, relation := range relations {
		if relation.PeerUuid == friendUUID {
			return true, nil
		}
	}
	return false, nil
}

// GetFriendList 获取好友列表，按建立时间倒序
func (r *relationRepositoryImpl) GetFriendList(ctx context.Context, userUUID string) ([]*model.UserRelation, error) {
	relations, err := r.queryFriends(ctx, userUUID)
	if err != nil {
		return nil, err
	}
	r.rebuildFriendCacheAsync(ctx, userUUID, relations)
	return relations, nil
}

func (r *relationRepositoryImpl) queryFriends(ctx context.Context, userUUID string) ([]*model.UserRelation, error) {
	var relations []*model.UserRelation
	err := r.db.WithContext(ctx).
		Where("user_uuid = ? AND status = ?", userUUID, model.RelationStatusFriend).
		Order("created_at DESC, id DESC").
		Find(&relations).Error
	if err != nil {
		return nil, WrapDBError(err)
	}
	return relations, nil
}

// rebuildFriendCacheAsync 异步重建好友关系缓存（Hash）
func (r *relationRepositoryImpl) rebuildFriendCacheAsync(ctx context.Context, userUUID string, relations []*model.UserRelation) {
	if r.redisClient == nil {
		return
	}
	cacheKey := rediskey.FriendRelationKey(userUUID)
	async.RunSafe(ctx, func(runCtx context.Context) {
		pipe := r.redisClient.Pipeline()
		pipe.Del(runCtx, cacheKey)

		if len(relations) == 0 {
			// 空值占位，防止缓存穿透
			pipe.HSet(runCtx, cacheKey, "__EMPTY__", "0")
			pipe.Expire(runCtx, cacheKey, rediskey.FriendRelationEmptyTTL)
		} else {
			fields := make(map[string]interface{}, len(relations))
			for _, relation := range relations {
				if relation.PeerUuid == "" {
					continue
				}
				fields[relation.PeerUuid] = strconv.FormatInt(relation.CreatedAt.UnixMilli(), 10)
			}
			if len(fields) > 0 {
				pipe.HSet(runCtx, cacheKey, fields)
			}
			pipe.Expire(runCtx, cacheKey, getRandomExpireTime(rediskey.FriendRelationTTL))
		}

		if _, err := pipe.Exec(runCtx); err != nil && err != redis.Nil {
			if isRedisWrongType(err) {
				_ = r.redisClient.Del(runCtx, cacheKey).Err()
				return
			}
			LogRedisError(runCtx, err)
		}
	}, 0)
}

// rebuildPendingCacheAsync 异步重建待处理申请缓存（ZSet）
// 注意：必须使用全量数据重建，不能使用分页数据
func (r *relationRepositoryImpl) rebuildPendingCacheAsync(ctx context.Context, targetUUID string, pendings []*model.UserRelation) {
	if r.redisClient == nil {
		return
	}
	cacheKey := rediskey.PendingRequestKey(targetUUID)
	async.RunSafe(ctx, func(runCtx context.Context) {
		pipe := r.redisClient.Pipeline()
		pipe.Del(runCtx, cacheKey)

		if len(pendings) == 0 {
			pipe.ZAdd(runCtx, cacheKey, redis.Z{
				Score:  0,
				Member: "__EMPTY__",
			})
			pipe.Expire(runCtx, cacheKey, rediskey.PendingRequestEmptyTTL)
		} else {
			zs := make([]redis.Z, 0, len(pendings))
			for _, rel := range pendings {
				zs = append(zs, redis.Z{
					Score:  float64(rel.CreatedAt.Unix()),
					Member: rel.UserUuid,
				})
			}
			pipe.ZAdd(runCtx, cacheKey, zs...)
			pipe.Expire(runCtx, cacheKey, getRandomExpireTime(rediskey.PendingRequestTTL))
		}

		if _, err := pipe.Exec(runCtx); err != nil && err != redis.Nil {
			if isRedisWrongType(err) {
				_ = r.redisClient.Del(runCtx, cacheKey).Err()
				return
			}
			LogRedisError(runCtx, err)
		}
	}, 0)
}
