package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenInvalid 令牌格式错误、签名不匹配或类型不符
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired 令牌已过期
	ErrTokenExpired = errors.New("token expired")
)

// TokenType 令牌类型，写入 claims 防止访问令牌与刷新令牌互换使用。
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

// Claims 业务声明：用户 UUID + 令牌类型 + 标准声明
type Claims struct {
	UserUuid  string    `json:"user_uuid"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// Manager 负责访问/刷新令牌的签发与校验。
// 两类令牌使用独立密钥，任何一个泄露不影响另一个。
type Manager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessExpire  time.Duration
	refreshExpire time.Duration
}

// NewManager 创建令牌管理器。
func NewManager(accessSecret, refreshSecret string, accessExpire, refreshExpire time.Duration) *Manager {
	return &Manager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessExpire:  accessExpire,
		refreshExpire: refreshExpire,
	}
}

// GenerateAccess 签发访问令牌。
func (m *Manager) GenerateAccess(userUuid string) (string, error) {
	return m.generate(userUuid, TypeAccess, m.accessSecret, m.accessExpire)
}

// GenerateRefresh 签发刷新令牌。
func (m *Manager) GenerateRefresh(userUuid string) (string, error) {
	return m.generate(userUuid, TypeRefresh, m.refreshSecret, m.refreshExpire)
}

func (m *Manager) generate(userUuid string, typ TokenType, secret []byte, expire time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserUuid:  userUuid,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expire)),
		},
	})
	return token.SignedString(secret)
}

// VerifyAccess 校验访问令牌并返回用户 UUID。
func (m *Manager) VerifyAccess(tokenString string) (string, error) {
	return m.verify(tokenString, TypeAccess, m.accessSecret)
}

// VerifyRefresh 校验刷新令牌并返回用户 UUID。
func (m *Manager) VerifyRefresh(tokenString string) (string, error) {
	return m.verify(tokenString, TypeRefresh, m.refreshSecret)
}

func (m *Manager) verify(tokenString string, typ TokenType, secret []byte) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		// 只接受 HS256，防止算法混淆攻击
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrTokenInvalid
	}
	if !token.Valid || claims.TokenType != typ || claims.UserUuid == "" {
		return "", ErrTokenInvalid
	}
	return claims.UserUuid, nil
}

// AccessExpire 返回访问令牌有效期。
func (m *Manager) AccessExpire() time.Duration {
	return m.accessExpire
}

// RefreshExpire 返回刷新令牌有效期（用于持久化过期时间与 Cookie MaxAge）。
func (m *Manager) RefreshExpire() time.Duration {
	return m.refreshExpire
}
