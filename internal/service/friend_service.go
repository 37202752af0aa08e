package service

import (
	"context"

	"TagChat/consts"
	"TagChat/internal/dto"
	"TagChat/internal/repository"
	"TagChat/model"
	"TagChat/pkg/errs"
	"TagChat/pkg/logger"
)

// friendServiceImpl 好友服务实现
type friendServiceImpl struct {
	userRepo     repository.IUserRepository
	relationRepo repository.IRelationRepository
	notifier     Notifier
}

// NewFriendService 创建好友服务实例
func NewFriendService(userRepo repository.IUserRepository, relationRepo repository.IRelationRepository, notifier Notifier) IFriendService {
	return &friendServiceImpl{
		userRepo:     userRepo,
		relationRepo: relationRepo,
		notifier:     notifier,
	}
}

// SendRequest 发起好友申请
// 前置检查顺序：目标存在 → 非本人 → 非好友 → 无重复申请 → 无反向申请。
// 对方已向我发过申请时不自动互加，提示直接处理那条申请。
func (s *friendServiceImpl) SendRequest(ctx context.Context, senderUUID string, req *dto.SendFriendRequestRequest) error {
	target, err := s.userRepo.GetByUsernameTag(ctx, req.Username, req.Tag)
	if err != nil {
		if err == repository.ErrRecordNotFound {
			return errs.New(consts.CodeUserNotFound)
		}
		logger.Error(ctx, "查询目标用户失败", logger.ErrorField("error", err))
		return errs.New(consts.CodeInternalError)
	}

	if target.Uuid == senderUUID {
		return errs.New(consts.CodeCannotAddSelf)
	}

	isFriend, err := s.relationRepo.IsFriend(ctx, senderUUID, target.Uuid)
	if err != nil {
		logger.Error(ctx, "查询好友关系失败", logger.ErrorField("error", err))
		return errs.New(consts.CodeInternalError)
	}
	if isFriend {
		return errs.New(consts.CodeAlreadyFriend)
	}

	sent, err := s.relationRepo.ExistsPending(ctx, senderUUID, target.Uuid)
	if err != nil {
		logger.Error(ctx, "查询待处理申请失败", logger.ErrorField("error", err))
		return errs.New(consts.CodeInternalError)
	}
	if sent {
		return errs.New(consts.CodeFriendRequestSent)
	}

	received, err := s.relationRepo.ExistsPending(ctx, target.Uuid, senderUUID)
	if err != nil {
		logger.Error(ctx, "查询反向申请失败", logger.ErrorField("error", err))
		return errs.New(consts.CodeInternalError)
	}
	if received {
		return errs.New(consts.CodePeerRequestPending)
	}

	if err := s.relationRepo.CreatePending(ctx, senderUUID, target.Uuid); err != nil {
		if err == repository.ErrDuplicateKey {
			// 并发下唯一索引兜底，按重复申请处理
			return errs.New(consts.CodeFriendRequestSent)
		}
		logger.Error(ctx, "创建好友申请失败", logger.ErrorField("error", err))
		return errs.New(consts.CodeInternalError)
	}

	logger.Info(ctx, "好友申请已发送",
		logger.String("sender_uuid", senderUUID),
		logger.String("target_uuid", target.Uuid))

	s.notifyWithSenderInfo(ctx, senderUUID, target.Uuid, EventFriendRequestReceived)
	return nil
}

// GetPendingRequests 获取我收到的待处理申请（含申请人资料）
func (s *friendServiceImpl) GetPendingRequests(ctx context.Context, userUUID string) ([]*dto.PendingRequestResponse, error) {
	pendings, err := s.relationRepo.GetPendingReceived(ctx, userUUID)
	if err != nil {
		logger.Error(ctx, "查询待处理申请失败", logger.ErrorField("error", err))
		return nil, errs.New(consts.CodeInternalError)
	}
	if len(pendings) == 0 {
		return []*dto.PendingRequestResponse{}, nil
	}

	senderUUIDs := make([]string, 0, len(pendings))
	for _, rel := range pendings {
		senderUUIDs = append(senderUUIDs, rel.UserUuid)
	}
	senders, err := s.userRepo.BatchGetByUUIDs(ctx, senderUUIDs)
	if err != nil {
		logger.Error(ctx, "批量查询申请人信息失败", logger.ErrorField("error", err))
		return nil, errs.New(consts.CodeInternalError)
	}
	senderMap := make(map[string]*model.UserInfo, len(senders))
	for _, sender := range senders {
		senderMap[sender.Uuid] = sender
	}

	result := make([]*dto.PendingRequestResponse, 0, len(pendings))
	for _, rel := range pendings {
		sender, ok := senderMap[rel.UserUuid]
		if !ok {
			// 申请人已注销，跳过
			continue
		}
		result = append(result, &dto.PendingRequestResponse{
			SenderUuid:  sender.Uuid,
			Username:    sender.Username,
			Tag:         sender.Tag,
			Nickname:    sender.Nickname,
			Avatar:      sender.Avatar,
			RequestedAt: rel.CreatedAt.UnixMilli(),
		})
	}
	return result, nil
}

// Respond 处理好友申请
// accept: 建立好友关系并通知申请人；decline: 静默删除申请，不产生任何事件。
func (s *friendServiceImpl) Respond(ctx context.Context, userUUID string, req *dto.RespondFriendRequestRequest) error {
	switch req.Action {
	case "accept":
		alreadyProcessed, err := s.relationRepo.AcceptPendingAndCreateFriend(ctx, req.SenderUuid, userUUID)
		if err != nil {
			logger.Error(ctx, "同意好友申请失败", logger.ErrorField("error", err))
			return errs.New(consts.CodeInternalError)
		}
		if alreadyProcessed {
			return errs.New(consts.CodeFriendRequestMissing)
		}
		logger.Info(ctx, "好友申请已同意",
			logger.String("sender_uuid", req.SenderUuid),
			logger.String("target_uuid", userUUID))
		s.notifyWithSenderInfo(ctx, userUUID, req.SenderUuid, EventFriendRequestAccepted)
		return nil

	case "decline":
		if err := s.relationRepo.DeclinePending(ctx, req.SenderUuid, userUUID); err != nil {
			if err == repository.ErrRequestNotFound {
				return errs.New(consts.CodeFriendRequestMissing)
			}
			logger.Error(ctx, "拒绝好友申请失败", logger.ErrorField("error", err))
			return errs.New(consts.CodeInternalError)
		}
		return nil

	default:
		return errs.New(consts.CodeParamError)
	}
}

// RemoveFriend 删除好友
// 幂等操作：关系已不存在时静默成功（不推送事件），只有对方用户不存在才报错。
func (s *friendServiceImpl) RemoveFriend(ctx context.Context, userUUID, friendUUID string) error {
	if _, err := s.userRepo.GetByUUID(ctx, friendUUID); err != nil {
		if err == repository.ErrRecordNotFound {
			return errs.New(consts.CodeUserNotFound)
		}
		logger.Error(ctx, "查询删除目标用户失败", logger.ErrorField("error", err))
		return errs.New(consts.CodeInternalError)
	}

	if err := s.relationRepo.DeleteFriend(ctx, userUUID, friendUUID); err != nil {
		if err == repository.ErrRecordNotFound {
			// 重复删除视为成功，不再推送事件
			return nil
		}
		logger.Error(ctx, "删除好友失败", logger.ErrorField("error", err))
		return errs.New(consts.CodeInternalError)
	}

	logger.Info(ctx, "好友关系已删除",
		logger.String("user_uuid", userUUID),
		logger.String("friend_uuid", friendUUID))

	if s.notifier != nil {
		s.notifier.Publish(ctx, friendUUID, EventFriendRemoved, map[string]interface{}{
			"userUuid": userUUID,
		})
	}
	return nil
}

// GetFriendList 获取好友列表（含好友资料）
func (s *friendServiceImpl) GetFriendList(ctx context.Context, userUUID string) ([]*dto.FriendResponse, error) {
	relations, err := s.relationRepo.GetFriendList(ctx, userUUID)
	if err != nil {
		logger.Error(ctx, "查询好友列表失败", logger.ErrorField("error", err))
		return nil, errs.New(consts.CodeInternalError)
	}
	if len(relations) == 0 {
		return []*dto.FriendResponse{}, nil
	}

	friendUUIDs := make([]string, 0, len(relations))
	sinceMap := make(map[string]int64, len(relations))
	for _, rel := range relations {
		friendUUIDs = append(friendUUIDs, rel.PeerUuid)
		sinceMap[rel.PeerUuid] = rel.CreatedAt.UnixMilli()
	}
	friends, err := s.userRepo.BatchGetByUUIDs(ctx, friendUUIDs)
	if err != nil {
		logger.Error(ctx, "批量查询好友信息失败", logger.ErrorField("error", err))
		return nil, errs.New(consts.CodeInternalError)
	}

	result := make([]*dto.FriendResponse, 0, len(friends))
	for _, friend := range friends {
		result = append(result, &dto.FriendResponse{
			Uuid:     friend.Uuid,
			Username: friend.Username,
			Tag:      friend.Tag,
			Nickname: friend.Nickname,
			Avatar:   friend.Avatar,
			Since:    sinceMap[friend.Uuid],
		})
	}
	return result, nil
}

// notifyWithSenderInfo 推送带来源用户资料的事件，推送失败不影响主流程
func (s *friendServiceImpl) notifyWithSenderInfo(ctx context.Context, fromUUID, toUUID, eventType string) {
	if s.notifier == nil {
		return
	}
	from, err := s.userRepo.GetByUUID(ctx, fromUUID)
	if err != nil {
		logger.Warn(ctx, "查询事件来源用户失败，降级为仅推送UUID",
			logger.String("from_uuid", fromUUID),
			logger.ErrorField("error", err))
		s.notifier.Publish(ctx, toUUID, eventType, map[string]interface{}{
			"userUuid": fromUUID,
		})
		return
	}
	s.notifier.Publish(ctx, toUUID, eventType, map[string]interface{}{
		"userUuid": from.Uuid,
		"username": from.Username,
		"tag":      from.Tag,
		"nickname": from.Nickname,
		"avatar":   from.Avatar,
	})
}
