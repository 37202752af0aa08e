package dto

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Nickname string `json:"nickname" binding:"omitempty,max=30"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest 刷新令牌请求
// Token 允许为空：为空时处理器回退读取 httpOnly Cookie
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// LogoutRequest 登出请求，令牌同样允许来自 Cookie
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// UserInfoResponse 对外暴露的用户信息（不含敏感字段）
type UserInfoResponse struct {
	Uuid     string `json:"uuid"`
	Username string `json:"username"`
	Tag      string `json:"tag"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
}

// TokenPairResponse 登录/刷新返回的令牌对
type TokenPairResponse struct {
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
	TokenType    string            `json:"tokenType"`
	ExpiresIn    int64             `json:"expiresIn"` // 访问令牌有效期（秒）
	UserInfo     *UserInfoResponse `json:"userInfo,omitempty"`
}
