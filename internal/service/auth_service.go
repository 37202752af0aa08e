package service

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"TagChat/consts"
	"TagChat/internal/dto"
	"TagChat/internal/repository"
	"TagChat/model"
	"TagChat/pkg/errs"
	"TagChat/pkg/jwt"
	"TagChat/pkg/logger"
	"TagChat/pkg/util"

	"golang.org/x/crypto/bcrypt"
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// dummyPasswordHash 邮箱不存在时也执行一次 bcrypt 比较，
// 拉平已注册/未注册邮箱的响应耗时，避免账号枚举。
const dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

const (
	minPasswordLen         = 6
	maxTagAttempts         = 10
	defaultRefreshTokenCap = 5
)

// authServiceImpl 认证服务实现
type authServiceImpl struct {
	userRepo    repository.IUserRepository
	authRepo    repository.IAuthRepository
	jwtManager  *jwt.Manager
	maxAttempts int
	lockDur     time.Duration
	refreshCap  int
}

// NewAuthService 创建认证服务实例
func NewAuthService(userRepo repository.IUserRepository, authRepo repository.IAuthRepository, jwtManager *jwt.Manager, maxAttempts int, lockDuration time.Duration, refreshCap int) IAuthService {
	if refreshCap <= 0 {
		refreshCap = defaultRefreshTokenCap
	}
	return &authServiceImpl{
		userRepo:    userRepo,
		authRepo:    authRepo,
		jwtManager:  jwtManager,
		maxAttempts: maxAttempts,
		lockDur:     lockDuration,
		refreshCap:  refreshCap,
	}
}

// Register 注册新账号
// 同名用户通过随机 4 位数字识别码区分（username#tag），最多尝试 10 次。
func (s *authServiceImpl) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.UserInfoResponse, error) {
	if !usernamePattern.MatchString(req.Username) {
		return nil, errs.New(consts.CodeUsernameInvalid)
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !emailPattern.MatchString(email) {
		return nil, errs.New(consts.CodeEmailInvalid)
	}
	if len(req.Password) < minPasswordLen {
		return nil, errs.New(consts.CodePasswordTooShort)
	}

	tag, err := s.allocateTag(ctx, req.Username)
	if err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error(ctx, "密码哈希失败", logger.ErrorField("error", err))
		return nil, errs.New(consts.CodeInternalError)
	}

	nickname := req.Nickname
	if nickname == "" {
		nickname = req.Username
	}

	user := &model.UserInfo{
		Uuid:     util.GenIDString(),
		Username: req.Username,
		Tag:      tag,
		Email:    email,
		Password: string(hashed),
		Nickname: nickname,
	}
	created, err := s.userRepo.Create(ctx, user)
	if err != nil {
		if err == repository.ErrDuplicateKey {
			// 唯一索引兜底：邮箱或 username#tag 已被并发注册占用
			return nil, errs.New(consts.CodeUserAlreadyExist)
		}
		logger.Error(ctx, "创建用户失败", logger.ErrorField("error", err))
		return nil, errs.New(consts.CodeInternalError)
	}

	logger.Info(ctx, "用户注册成功",
		logger.String("user_uuid", created.Uuid),
		logger.String("username", created.Username),
		logger.String("tag", created.Tag))

	return buildUserInfoResponse(created), nil
}

// allocateTag 为用户名随机分配一个未占用的 4 位数字识别码
func (s *authServiceImpl) allocateTag(ctx context.Context, username string) (string, error) {
	for i := 0; i < maxTagAttempts; i++ {
		tag := fmt.Sprintf("%04d", rand.Intn(10000))
		exists, err := s.userRepo.ExistsByUsernameTag(ctx, username, tag)
		if err != nil {
			logger.Error(ctx, "查询识别码占用失败", logger.ErrorField("error", err))
			return "", errs.New(consts.CodeInternalError)
		}
		if !exists {
			return tag, nil
		}
	}
	return "", errs.New(consts.CodeTagExhausted)
}

// Login 邮箱+密码登录
// 防护顺序：先判锁定（不消耗失败次数），再比对密码；失败达到阈值触发锁定。
func (s *authServiceImpl) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenPairResponse, error) {
	// 邮箱统一小写存储，查询前同样归一化
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if err == repository.ErrRecordNotFound {
			// 邮箱未注册也做一次哑比较，拉平耗时
			_ = bcrypt.CompareHashAndPassword([]byte(dummyPasswordHash), []byte(req.Password))
			return nil, errs.New(consts.CodeUserNotFound)
		}
		logger.Error(ctx, "查询登录用户失败", logger.ErrorField("error", err))
		return nil, errs.New(consts.CodeInternalError)
	}

	now := time.Now()
	if user.Locked(now) {
		return nil, errs.New(consts.CodeAccountLocked)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		attempts, incErr := s.authRepo.IncrementFailedAttempts(ctx, user.Uuid)
		if incErr != nil {
			logger.Error(ctx, "递增登录失败次数失败",
				logger.String("user_uuid", user.Uuid),
				logger.ErrorField("error", incErr))
			return nil, errs.New(consts.CodePasswordError)
		}
		if attempts >= s.maxAttempts {
			until := now.Add(s.lockDur)
			if lockErr := s.authRepo.LockAccount(ctx, user.Uuid, until); lockErr != nil {
				logger.Error(ctx, "锁定账号失败",
					logger.String("user_uuid", user.Uuid),
					logger.ErrorField("error", lockErr))
			}
			logger.Warn(ctx, "账号因连续登录失败被锁定",
				logger.String("user_uuid", user.Uuid),
				logger.Int("attempts", attempts),
				logger.Time("lock_until", until))
		}
		// 触发锁定的这一次仍按密码错误应答，锁定从下一次尝试开始生效
		return nil, errs.New(consts.CodePasswordError)
	}

	// 登录成功，清理防护状态
	if err := s.authRepo.ResetFailedAttempts(ctx, user.Uuid); err != nil {
		logger.Warn(ctx, "清零登录失败次数失败",
			logger.String("user_uuid", user.Uuid),
			logger.ErrorField("error", err))
	}
	if err := s.authRepo.UpdateLastLogin(ctx, user.Uuid); err != nil {
		logger.Warn(ctx, "更新最后登录时间失败",
			logger.String("user_uuid", user.Uuid),
			logger.ErrorField("error", err))
	}

	pair, err := s.issueTokenPair(ctx, user.Uuid)
	if err != nil {
		return nil, err
	}
	pair.UserInfo = buildUserInfoResponse(user)

	logger.Info(ctx, "用户登录成功", logger.String("user_uuid", user.Uuid))
	return pair, nil
}

// Refresh 刷新令牌轮换
// 白名单校验失败但签名有效 → 重放攻击，吊销该用户全部刷新令牌。
func (s *authServiceImpl) Refresh(ctx context.Context, refreshToken string) (*dto.TokenPairResponse, error) {
	if refreshToken == "" {
		return nil, errs.New(consts.CodeUnauthorized)
	}

	// 签名/过期校验失败一律按禁止处理，不区分原因
	userUUID, err := s.jwtManager.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, errs.New(consts.CodeRefreshForbidden)
	}

	// 令牌归属的用户必须仍然存在（可能已注销）
	if _, err := s.userRepo.GetByUUID(ctx, userUUID); err != nil {
		if err == repository.ErrRecordNotFound {
			return nil, errs.New(consts.CodeRefreshForbidden)
		}
		logger.Error(ctx, "查询刷新令牌归属用户失败",
			logger.String("user_uuid", userUUID),
			logger.ErrorField("error", err))
		return nil, errs.New(consts.CodeInternalError)
	}

	if _, err := s.authRepo.GetRefreshToken(ctx, refreshToken); err != nil {
		if err == repository.ErrRecordNotFound {
			// 签名有效但不在白名单：该令牌已被轮换后重放，全量吊销
			if delErr := s.authRepo.DeleteAllRefreshTokens(ctx, userUUID); delErr != nil {
				logger.Error(ctx, "重放吊销刷新令牌失败",
					logger.String("user_uuid", userUUID),
					logger.ErrorField("error", delErr))
			}
			logger.Warn(ctx, "检测到刷新令牌重放，已吊销全部会话",
				logger.String("user_uuid", userUUID))
			return nil, errs.New(consts.CodeRefreshForbidden)
		}
		logger.Error(ctx, "查询刷新令牌失败", logger.ErrorField("error", err))
		return nil, errs.New(consts.CodeInternalError)
	}

	// 单次使用：先作废旧令牌再签发新对
	if _, err := s.authRepo.DeleteRefreshToken(ctx, refreshToken); err != nil {
		logger.Error(ctx, "删除旧刷新令牌失败",
			logger.String("user_uuid", userUUID),
			logger.ErrorField("error", err))
		return nil, errs.New(consts.CodeInternalError)
	}

	return s.issueTokenPair(ctx, userUUID)
}

// Logout 注销会话，令牌未知时视为已登出（幂等）
func (s *authServiceImpl) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if _, err := s.authRepo.DeleteRefreshToken(ctx, refreshToken); err != nil {
		logger.Error(ctx, "登出删除刷新令牌失败", logger.ErrorField("error", err))
		return errs.New(consts.CodeInternalError)
	}
	return nil
}

// Profile 获取当前用户信息
func (s *authServiceImpl) Profile(ctx context.Context, userUUID string) (*dto.UserInfoResponse, error) {
	user, err := s.userRepo.GetByUUID(ctx, userUUID)
	if err != nil {
		if err == repository.ErrRecordNotFound {
			return nil, errs.New(consts.CodeUserNotFound)
		}
		logger.Error(ctx, "查询用户信息失败",
			logger.String("user_uuid", userUUID),
			logger.ErrorField("error", err))
		return nil, errs.New(consts.CodeInternalError)
	}
	return buildUserInfoResponse(user), nil
}

// issueTokenPair 签发访问/刷新令牌对并写入白名单
func (s *authServiceImpl) issueTokenPair(ctx context.Context, userUUID string) (*dto.TokenPairResponse, error) {
	accessToken, err := s.jwtManager.GenerateAccess(userUUID)
	if err != nil {
		logger.Error(ctx, "签发访问令牌失败", logger.ErrorField("error", err))
		return nil, errs.New(consts.CodeInternalError)
	}
	refreshToken, err := s.jwtManager.GenerateRefresh(userUUID)
	if err != nil {
		logger.Error(ctx, "签发刷新令牌失败", logger.ErrorField("error", err))
		return nil, errs.New(consts.CodeInternalError)
	}

	record := &model.RefreshToken{
		UserUuid:  userUUID,
		Token:     refreshToken,
		ExpiresAt: time.Now().Add(s.jwtManager.RefreshExpire()),
	}
	if err := s.authRepo.StoreRefreshToken(ctx, record, s.refreshCap); err != nil {
		logger.Error(ctx, "存储刷新令牌失败",
			logger.String("user_uuid", userUUID),
			logger.ErrorField("error", err))
		return nil, errs.New(consts.CodeInternalError)
	}

	return &dto.TokenPairResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.jwtManager.AccessExpire().Seconds()),
	}, nil
}

func buildUserInfoResponse(user *model.UserInfo) *dto.UserInfoResponse {
	return &dto.UserInfoResponse{
		Uuid:     user.Uuid,
		Username: user.Username,
		Tag:      user.Tag,
		Email:    user.Email,
		Nickname: user.Nickname,
		Avatar:   user.Avatar,
	}
}
