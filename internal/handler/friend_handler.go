package handler

import (
	"TagChat/consts"
	"TagChat/internal/dto"
	"TagChat/internal/middleware"
	"TagChat/internal/service"
	"TagChat/pkg/result"

	"github.com/gin-gonic/gin"
)

// FriendHandler 好友接口处理器
type FriendHandler struct {
	friendService service.IFriendService
}

// NewFriendHandler 创建好友处理器
func NewFriendHandler(friendService service.IFriendService) *FriendHandler {
	return &FriendHandler{friendService: friendService}
}

// SendRequest 发起好友申请接口
// @Summary 发起好友申请
// @Description 向 username#tag 指定的用户发起好友申请
// @Tags 好友接口
// @Accept json
// @Produce json
// @Param request body dto.SendFriendRequestRequest true "申请请求"
// @Success 200 {object} result.Response
// @Router /api/v1/auth/friend/request [post]
func (h *FriendHandler) SendRequest(c *gin.Context) {
	userUUID, ok := middleware.GetUserUUID(c)
	if !ok {
		result.Fail(c, consts.CodeUnauthorized)
		return
	}

	var req dto.SendFriendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		result.Fail(c, consts.CodeParamError)
		return
	}

	ctx := middleware.NewContextWithGin(c)
	if err := h.friendService.SendRequest(ctx, userUUID, &req); err != nil {
		result.FailWithError(c, err)
		return
	}

	result.Success(c, nil)
}

// GetPendingRequests 获取待处理申请接口
// @Summary 获取我收到的待处理申请
// @Tags 好友接口
// @Produce json
// @Success 200 {array} dto.PendingRequestResponse
// @Router /api/v1/auth/friend/requests [get]
func (h *FriendHandler) GetPendingRequests(c *gin.Context) {
	userUUID, ok := middleware.GetUserUUID(c)
	if !ok {
		result.Fail(c, consts.CodeUnauthorized)
		return
	}

	ctx := middleware.NewContextWithGin(c)
	resp, err := h.friendService.GetPendingRequests(ctx, userUUID)
	if err != nil {
		result.FailWithError(c, err)
		return
	}

	result.Success(c, resp)
}

// Respond 处理好友申请接口
// @Summary 处理好友申请
// @Description accept 建立好友关系并通知申请人；decline 静默删除申请
// @Tags 好友接口
// @Accept json
// @Produce json
// @Param request body dto.RespondFriendRequestRequest true "处理请求"
// @Success 200 {object} result.Response
// @Router /api/v1/auth/friend/respond [post]
func (h *FriendHandler) Respond(c *gin.Context) {
	userUUID, ok := middleware.GetUserUUID(c)
	if !ok {
		result.Fail(c, consts.CodeUnauthorized)
		return
	}

	var req dto.RespondFriendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		result.Fail(c, consts.CodeParamError)
		return
	}

	ctx := middleware.NewContextWithGin(c)
	if err := h.friendService.Respond(ctx, userUUID, &req); err != nil {
		result.FailWithError(c, err)
		return
	}

	result.Success(c, nil)
}

// GetFriendList 获取好友列表接口
// @Summary 获取好友列表
// @Tags 好友接口
// @Produce json
// @Success 200 {array} dto.FriendResponse
// @Router /api/v1/auth/friend/list [get]
func (h *FriendHandler) GetFriendList(c *gin.Context) {
	userUUID, ok := middleware.GetUserUUID(c)
	if !ok {
		result.Fail(c, consts.CodeUnauthorized)
		return
	}

	ctx := middleware.NewContextWithGin(c)
	resp, err := h.friendService.GetFriendList(ctx, userUUID)
	if err != nil {
		result.FailWithError(c, err)
		return
	}

	result.Success(c, resp)
}

// RemoveFriend 删除好友接口
// @Summary 删除好友
// @Tags 好友接口
// @Produce json
// @Param uuid path string true "好友UUID"
// @Success 200 {object} result.Response
// @Router /api/v1/auth/friend/{uuid} [delete]
func (h *FriendHandler) RemoveFriend(c *gin.Context) {
	userUUID, ok := middleware.GetUserUUID(c)
	if !ok {
		result.Fail(c, consts.CodeUnauthorized)
		return
	}

	friendUUID := c.Param("uuid")
	if friendUUID == "" {
		result.Fail(c, consts.CodeParamError)
		return
	}

	ctx := middleware.NewContextWithGin(c)
	if err := h.friendService.RemoveFriend(ctx, userUUID, friendUUID); err != nil {
		result.FailWithError(c, err)
		return
	}

	result.Success(c, nil)
}
