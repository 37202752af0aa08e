package handler

import (
	"TagChat/consts"
	"TagChat/internal/dto"
	"TagChat/internal/middleware"
	"TagChat/internal/service"
	"TagChat/pkg/result"

	"github.com/gin-gonic/gin"
)

// MessageHandler 私聊消息接口处理器
type MessageHandler struct {
	messageService service.IMessageService
}

// NewMessageHandler 创建消息处理器
func NewMessageHandler(messageService service.IMessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

// Send 发送私聊消息接口
// @Summary 发送私聊消息
// @Description 仅允许发给好友，接收方在线时实时推送
// @Tags 消息接口
// @Accept json
// @Produce json
// @Param request body dto.SendMessageRequest true "发送请求"
// @Success 200 {object} dto.MessageResponse
// @Router /api/v1/auth/message/send [post]
func (h *MessageHandler) Send(c *gin.Context) {
	userUUID, ok := middleware.GetUserUUID(c)
	if !ok {
		result.Fail(c, consts.CodeUnauthorized)
		return
	}

	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		result.Fail(c, consts.CodeParamError)
		return
	}

	ctx := middleware.NewContextWithGin(c)
	resp, err := h.messageService.Send(ctx, userUUID, &req)
	if err != nil {
		result.FailWithError(c, err)
		return
	}

	result.Success(c, resp)
}

// GetConversation 获取会话消息接口
// @Summary 获取与某个好友的最近聊天记录
// @Description 返回最近 50 条，按时间正序
// @Tags 消息接口
// @Produce json
// @Param uuid path string true "对方UUID"
// @Success 200 {array} dto.MessageResponse
// @Router /api/v1/auth/message/conversation/{uuid} [get]
func (h *MessageHandler) GetConversation(c *gin.Context) {
	userUUID, ok := middleware.GetUserUUID(c)
	if !ok {
		result.Fail(c, consts.CodeUnauthorized)
		return
	}

	peerUUID := c.Param("uuid")
	if peerUUID == "" {
		result.Fail(c, consts.CodeParamError)
		return
	}

	ctx := middleware.NewContextWithGin(c)
	resp, err := h.messageService.GetConversation(ctx, userUUID, peerUUID)
	if err != nil {
		result.FailWithError(c, err)
		return
	}

	result.Success(c, resp)
}
