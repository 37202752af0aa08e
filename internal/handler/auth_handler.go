package handler

import (
	"net/http"

	"TagChat/consts"
	"TagChat/internal/dto"
	"TagChat/internal/middleware"
	"TagChat/internal/service"
	"TagChat/pkg/result"

	"github.com/gin-gonic/gin"
)

const refreshTokenCookie = "refresh_token"

// AuthHandler 认证接口处理器
type AuthHandler struct {
	authService   service.IAuthService
	cookieMaxAge  int
	secureCookies bool
}

// NewAuthHandler 创建认证处理器
// cookieMaxAge 为刷新令牌 Cookie 的有效期（秒），与刷新令牌本身对齐。
func NewAuthHandler(authService service.IAuthService, cookieMaxAge int, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		cookieMaxAge:  cookieMaxAge,
		secureCookies: secureCookies,
	}
}

// Register 用户注册接口
// @Summary 用户注册
// @Description 注册新账号，服务端自动分配 4 位数字识别码
// @Tags 认证接口
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "注册请求"
// @Success 200 {object} dto.UserInfoResponse
// @Router /api/v1/public/user/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// 参数错误由客户端输入导致，属于正常业务流程，不记录日志
		result.Fail(c, consts.CodeParamError)
		return
	}

	ctx := middleware.NewContextWithGin(c)
	resp, err := h.authService.Register(ctx, &req)
	if err != nil {
		result.FailWithError(c, err)
		return
	}

	result.Success(c, resp)
}

// Login 用户登录接口
// @Summary 用户登录
// @Description 邮箱+密码登录，签发访问/刷新令牌对
// @Tags 认证接口
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "登录请求"
// @Success 200 {object} dto.TokenPairResponse
// @Router /api/v1/public/user/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		result.Fail(c, consts.CodeParamError)
		return
	}

	ctx := middleware.NewContextWithGin(c)
	resp, err := h.authService.Login(ctx, &req)
	if err != nil {
		result.FailWithError(c, err)
		return
	}

	// 刷新令牌同时写入 httpOnly Cookie，浏览器端无需把它存在 JS 可读的位置
	h.setRefreshCookie(c, resp.RefreshToken)
	result.Success(c, resp)
}

// Refresh 刷新令牌接口
// @Summary 刷新令牌
// @Description 刷新令牌轮换：旧令牌作废，签发新令牌对。令牌取自请求体，缺省回退 Cookie
// @Tags 认证接口
// @Accept json
// @Produce json
// @Param request body dto.RefreshRequest false "刷新请求"
// @Success 200 {object} dto.TokenPairResponse
// @Router /api/v1/public/user/refresh-token [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	// 请求体可以为空，解析失败不视为错误
	var req dto.RefreshRequest
	_ = c.ShouldBindJSON(&req)

	token := req.RefreshToken
	if token == "" {
		token, _ = c.Cookie(refreshTokenCookie)
	}

	ctx := middleware.NewContextWithGin(c)
	resp, err := h.authService.Refresh(ctx, token)
	if err != nil {
		// 轮换失败时顺便清掉 Cookie，避免客户端反复提交死令牌
		h.clearRefreshCookie(c)
		result.FailWithError(c, err)
		return
	}

	h.setRefreshCookie(c, resp.RefreshToken)
	result.Success(c, resp)
}

// Logout 登出接口
// @Summary 登出
// @Description 注销当前刷新令牌，未知令牌静默成功
// @Tags 认证接口
// @Accept json
// @Produce json
// @Success 200 {object} result.Response
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	var req dto.LogoutRequest
	_ = c.ShouldBindJSON(&req)

	token := req.RefreshToken
	if token == "" {
		token, _ = c.Cookie(refreshTokenCookie)
	}

	ctx := middleware.NewContextWithGin(c)
	if err := h.authService.Logout(ctx, token); err != nil {
		result.FailWithError(c, err)
		return
	}

	h.clearRefreshCookie(c)
	result.Success(c, nil)
}

// Me 获取当前用户信息接口
// @Summary 获取当前用户信息
// @Tags 认证接口
// @Produce json
// @Success 200 {object} dto.UserInfoResponse
// @Router /api/v1/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	userUUID, ok := middleware.GetUserUUID(c)
	if !ok {
		result.Fail(c, consts.CodeUnauthorized)
		return
	}

	ctx := middleware.NewContextWithGin(c)
	resp, err := h.authService.Profile(ctx, userUUID)
	if err != nil {
		result.FailWithError(c, err)
		return
	}

	result.Success(c, resp)
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(refreshTokenCookie, token, h.cookieMaxAge, "/", "", h.secureCookies, true)
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(refreshTokenCookie, "", -1, "/", "", h.secureCookies, true)
}
