package service

import (
	"context"
	"strings"

	"TagChat/consts"
	"TagChat/internal/dto"
	"TagChat/internal/repository"
	"TagChat/model"
	"TagChat/pkg/errs"
	"TagChat/pkg/logger"
	"TagChat/pkg/util"
)

// conversationLimit 单次拉取的会话消息条数上限
const conversationLimit = 50

// messageServiceImpl 私聊消息服务实现
type messageServiceImpl struct {
	messageRepo  repository.IMessageRepository
	relationRepo repository.IRelationRepository
	notifier     Notifier
}

// NewMessageService 创建消息服务实例
func NewMessageService(messageRepo repository.IMessageRepository, relationRepo repository.IRelationRepository, notifier Notifier) IMessageService {
	return &messageServiceImpl{
		messageRepo:  messageRepo,
		relationRepo: relationRepo,
		notifier:     notifier,
	}
}

// Send 发送私聊消息，仅允许发给好友
func (s *messageServiceImpl) Send(ctx context.Context, senderUUID string, req *dto.SendMessageRequest) (*dto.MessageResponse, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, errs.New(consts.CodeMessageEmpty)
	}

	isFriend, err := s.relationRepo.IsFriend(ctx, senderUUID, req.ReceiverUuid)
	if err != nil {
		logger.Error(ctx, "查询好友关系失败", logger.ErrorField("error", err))
		return nil, errs.New(consts.CodeInternalError)
	}
	if !isFriend {
		return nil, errs.New(consts.CodeNotFriend)
	}

	message := &model.Message{
		Uuid:         util.GenIDString(),
		SenderUuid:   senderUUID,
		ReceiverUuid: req.ReceiverUuid,
		Content:      content,
	}
	created, err := s.messageRepo.Create(ctx, message)
	if err != nil {
		logger.Error(ctx, "持久化消息失败",
			logger.String("sender_uuid", senderUUID),
			logger.ErrorField("error", err))
		return nil, errs.New(consts.CodeMessageSendFail)
	}

	resp := buildMessageResponse(created)

	// 实时推送给双方：接收方收到新消息，发送方的其它在线端同步回显；不在线则静默丢弃
	if s.notifier != nil {
		s.notifier.Publish(ctx, req.ReceiverUuid, EventNewPrivateMessage, resp)
		s.notifier.Publish(ctx, senderUUID, EventNewPrivateMessage, resp)
	}

	return resp, nil
}

// GetConversation 获取与某个好友的最近聊天记录
func (s *messageServiceImpl) GetConversation(ctx context.Context, userUUID, peerUUID string) ([]*dto.MessageResponse, error) {
	isFriend, err := s.relationRepo.IsFriend(ctx, userUUID, peerUUID)
	if err != nil {
		logger.Error(ctx, "查询好友关系失败", logger.ErrorField("error", err))
		return nil, errs.New(consts.CodeInternalError)
	}
	if !isFriend {
		return nil, errs.New(consts.CodeNotFriend)
	}

	messages, err := s.messageRepo.GetConversation(ctx, userUUID, peerUUID, conversationLimit)
	if err != nil {
		logger.Error(ctx, "查询会话消息失败", logger.ErrorField("error", err))
		return nil, errs.New(consts.CodeInternalError)
	}

	result := make([]*dto.MessageResponse, 0, len(messages))
	for _, message := range messages {
		result = append(result, buildMessageResponse(message))
	}
	return result, nil
}

func buildMessageResponse(message *model.Message) *dto.MessageResponse {
	return &dto.MessageResponse{
		Uuid:         message.Uuid,
		SenderUuid:   message.SenderUuid,
		ReceiverUuid: message.ReceiverUuid,
		Content:      message.Content,
		CreatedAt:    message.CreatedAt.UnixMilli(),
	}
}
