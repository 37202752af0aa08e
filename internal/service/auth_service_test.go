package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"TagChat/consts"
	"TagChat/internal/dto"
	"TagChat/internal/repository"
	"TagChat/model"
	"TagChat/pkg/errs"
	"TagChat/pkg/jwt"
	"TagChat/pkg/logger"
	"TagChat/pkg/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var serviceTestOnce sync.Once

func initServiceTest() {
	serviceTestOnce.Do(func() {
		logger.ReplaceGlobal(zap.NewNop())
		_ = util.InitSnowflake(1)
	})
}

func requireBizCode(t *testing.T, err error, wantCode int32) {
	t.Helper()
	require.Error(t, err)
	require.True(t, errs.Is(err, wantCode), "want code %d, got %v", wantCode, err)
}

// ==================== fakes ====================

type fakeUserRepoForService struct {
	createFn              func(context.Context, *model.UserInfo) (*model.UserInfo, error)
	getByUUIDFn           func(context.Context, string) (*model.UserInfo, error)
	getByEmailFn          func(context.Context, string) (*model.UserInfo, error)
	getByUsernameTagFn    func(context.Context, string, string) (*model.UserInfo, error)
	existsByUsernameTagFn func(context.Context, string, string) (bool, error)
	batchGetByUUIDsFn     func(context.Context, []string) ([]*model.UserInfo, error)
}

func (f *fakeUserRepoForService) Create(ctx context.Context, user *model.UserInfo) (*model.UserInfo, error) {
	if f.createFn == nil {
		return user, nil
	}
	return f.createFn(ctx, user)
}

func (f *fakeUserRepoForService) GetByUUID(ctx context.Context, uuid string) (*model.UserInfo, error) {
	if f.getByUUIDFn == nil {
		return nil, repository.ErrRecordNotFound
	}
	return f.getByUUIDFn(ctx, uuid)
}

func (f *fakeUserRepoForService) GetByEmail(ctx context.Context, email string) (*model.UserInfo, error) {
	if f.getByEmailFn == nil {
		return nil, repository.ErrRecordNotFound
	}
	return f.getByEmailFn(ctx, email)
}

func (f *fakeUserRepoForService) GetByUsernameTag(ctx context.Context, username, tag string) (*model.UserInfo, error) {
	if f.getByUsernameTagFn == nil {
		return nil, repository.ErrRecordNotFound
	}
	return f.getByUsernameTagFn(ctx, username, tag)
}

func (f *fakeUserRepoForService) ExistsByUsernameTag(ctx context.Context, username, tag string) (bool, error) {
	if f.existsByUsernameTagFn == nil {
		return false, nil
	}
	return f.existsByUsernameTagFn(ctx, username, tag)
}

func (f *fakeUserRepoForService) BatchGetByUUIDs(ctx context.Context, uuids []string) ([]*model.UserInfo, error) {
	if f.batchGetByUUIDsFn == nil {
		return nil, nil
	}
	return f.batchGetByUUIDsFn(ctx, uuids)
}

type fakeAuthRepoForService struct {
	incrementFn        func(context.Context, string) (int, error)
	resetFn            func(context.Context, string) error
	lockFn             func(context.Context, string, time.Time) error
	updateLastLoginFn  func(context.Context, string) error
	storeRefreshFn     func(context.Context, *model.RefreshToken, int) error
	getRefreshFn       func(context.Context, string) (*model.RefreshToken, error)
	deleteRefreshFn    func(context.Context, string) (bool, error)
	deleteAllRefreshFn func(context.Context, string) error
}

func (f *fakeAuthRepoForService) IncrementFailedAttempts(ctx context.Context, userUUID string) (int, error) {
	if f.incrementFn == nil {
		return 1, nil
	}
	return f.incrementFn(ctx, userUUID)
}

func (f *fakeAuthRepoForService) ResetFailedAttempts(ctx context.Context, userUUID string) error {
	if f.resetFn == nil {
		return nil
	}
	return f.resetFn(ctx, userUUID)
}

func (f *fakeAuthRepoForService) LockAccount(ctx context.Context, userUUID string, until time.Time) error {
	if f.lockFn == nil {
		return nil
	}
	return f.lockFn(ctx, userUUID, until)
}

func (f *fakeAuthRepoForService) UpdateLastLogin(ctx context.Context, userUUID string) error {
	if f.updateLastLoginFn == nil {
		return nil
	}
	return f.updateLastLoginFn(ctx, userUUID)
}

func (f *fakeAuthRepoForService) StoreRefreshToken(ctx context.Context, token *model.RefreshToken, cap int) error {
	if f.storeRefreshFn == nil {
		return nil
	}
	return f.storeRefreshFn(ctx, token, cap)
}

func (f *fakeAuthRepoForService) GetRefreshToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	if f.getRefreshFn == nil {
		return nil, repository.ErrRecordNotFound
	}
	return f.getRefreshFn(ctx, token)
}

func (f *fakeAuthRepoForService) DeleteRefreshToken(ctx context.Context, token string) (bool, error) {
	if f.deleteRefreshFn == nil {
		return false, nil
	}
	return f.deleteRefreshFn(ctx, token)
}

func (f *fakeAuthRepoForService) DeleteAllRefreshTokens(ctx context.Context, userUUID string) error {
	if f.deleteAllRefreshFn == nil {
		return nil
	}
	return f.deleteAllRefreshFn(ctx, userUUID)
}

func newTestJWTManager() *jwt.Manager {
	return jwt.NewManager("test-access-secret", "test-refresh-secret", 15*time.Minute, 24*time.Hour)
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hashed)
}

// ==================== Register ====================

func TestAuthServiceRegister(t *testing.T) {
	initServiceTest()

	t.Run("invalid_username", func(t *testing.T) {
		svc := NewAuthService(&fakeUserRepoForService{}, &fakeAuthRepoForService{}, newTestJWTManager(), 5, 15*time.Minute, 5)
		for _, username := range []string{"ab", "has space", "太长太长太长", "with-dash", "aaaaaaaaaaaaaaaaaaaaa"} {
			_, err := svc.Register(context.Background(), &dto.RegisterRequest{
				Username: username, Email: "a@b.com", Password: "secret123",
			})
			requireBizCode(t, err, consts.CodeUsernameInvalid)
		}
	})

	t.Run("invalid_email", func(t *testing.T) {
		svc := NewAuthService(&fakeUserRepoForService{}, &fakeAuthRepoForService{}, newTestJWTManager(), 5, 15*time.Minute, 5)
		_, err := svc.Register(context.Background(), &dto.RegisterRequest{
			Username: "alice", Email: "not-an-email", Password: "secret123",
		})
		requireBizCode(t, err, consts.CodeEmailInvalid)
	})

	t.Run("password_too_short", func(t *testing.T) {
		svc := NewAuthService(&fakeUserRepoForService{}, &fakeAuthRepoForService{}, newTestJWTManager(), 5, 15*time.Minute, 5)
		_, err := svc.Register(context.Background(), &dto.RegisterRequest{
			Username: "alice", Email: "a@b.com", Password: "12345",
		})
		requireBizCode(t, err, consts.CodePasswordTooShort)
	})

	t.Run("success_allocates_tag_and_hashes_password", func(t *testing.T) {
		var created *model.UserInfo
		svc := NewAuthService(&fakeUserRepoForService{
			createFn: func(_ context.Context, user *model.UserInfo) (*model.UserInfo, error) {
				created = user
				return user, nil
			},
		}, &fakeAuthRepoForService{}, newTestJWTManager(), 5, 15*time.Minute, 5)

		resp, err := svc.Register(context.Background(), &dto.RegisterRequest{
			Username: "alice", Email: " Alice@Example.COM ", Password: "secret123",
		})
		require.NoError(t, err)
		require.NotNil(t, created)
		assert.Equal(t, "alice@example.com", created.Email) // 邮箱统一小写存储
		assert.Len(t, created.Tag, 4)
		assert.NotEqual(t, "secret123", created.Password)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.Password), []byte("secret123")))
		assert.Equal(t, "alice", resp.Username)
		assert.Equal(t, created.Tag, resp.Tag)
		assert.Equal(t, "alice", resp.Nickname) // 默认昵称取用户名
	})

	t.Run("tag_collision_retries", func(t *testing.T) {
		attempts := 0
		svc := NewAuthService(&fakeUserRepoForService{
			existsByUsernameTagFn: func(_ context.Context, _, _ string) (bool, error) {
				attempts++
				return attempts <= 3, nil // 前3次都冲突
			},
		}, &fakeAuthRepoForService{}, newTestJWTManager(), 5, 15*time.Minute, 5)

		_, err := svc.Register(context.Background(), &dto.RegisterRequest{
			Username: "alice", Email: "a@b.com", Password: "secret123",
		})
		require.NoError(t, err)
		assert.Equal(t, 4, attempts)
	})

	t.Run("tag_exhausted", func(t *testing.T) {
		attempts := 0
		svc := NewAuthService(&fakeUserRepoForService{
			existsByUsernameTagFn: func(_ context.Context, _, _ string) (bool, error) {
				attempts++
				return true, nil
			},
		}, &fakeAuthRepoForService{}, newTestJWTManager(), 5, 15*time.Minute, 5)

		_, err := svc.Register(context.Background(), &dto.RegisterRequest{
			Username: "alice", Email: "a@b.com", Password: "secret123",
		})
		requireBizCode(t, err, consts.CodeTagExhausted)
		assert.Equal(t, 10, attempts)
	})

	t.Run("duplicate_email", func(t *testing.T) {
		svc := NewAuthService(&fakeUserRepoForService{
			createFn: func(_ context.Context, _ *model.UserInfo) (*model.UserInfo, error) {
				return nil, repository.ErrDuplicateKey
			},
		}, &fakeAuthRepoForService{}, newTestJWTManager(), 5, 15*time.Minute, 5)

		_, err := svc.Register(context.Background(), &dto.RegisterRequest{
			Username: "alice", Email: "a@b.com", Password: "secret123",
		})
		requireBizCode(t, err, consts.CodeUserAlreadyExist)
	})
}

// ==================== Login ====================

func TestAuthServiceLogin(t *testing.T) {
	initServiceTest()

	t.Run("unknown_email", func(t *testing.T) {
		var incremented bool
		svc := NewAuthService(&fakeUserRepoForService{}, &fakeAuthRepoForService{
			incrementFn: func(_ context.Context, _ string) (int, error) {
				incremented = true
				return 1, nil
			},
		}, newTestJWTManager(), 5, 15*time.Minute, 5)

		_, err := svc.Login(context.Background(), &dto.LoginRequest{Email: "ghost@b.com", Password: "whatever"})
		requireBizCode(t, err, consts.CodeUserNotFound)
		assert.False(t, incremented) // 未知邮箱不产生失败计数
	})

	t.Run("locked_account_short_circuits", func(t *testing.T) {
		lockUntil := time.Now().Add(10 * time.Minute)
		var incremented bool
		svc := NewAuthService(&fakeUserRepoForService{
			getByEmailFn: func(_ context.Context, _ string) (*model.UserInfo, error) {
				return &model.UserInfo{
					Uuid: "u1", Email: "a@b.com",
					Password:  hashPassword(t, "secret123"),
					LockUntil: &lockUntil,
				}, nil
			},
		}, &fakeAuthRepoForService{
			incrementFn: func(_ context.Context, _ string) (int, error) {
				incremented = true
				return 1, nil
			},
		}, newTestJWTManager(), 5, 15*time.Minute, 5)

		// 锁定期内连正确密码也拒绝，且不消耗失败计数
		_, err := svc.Login(context.Background(), &dto.LoginRequest{Email: "a@b.com", Password: "secret123"})
		requireBizCode(t, err, consts.CodeAccountLocked)
		assert.False(t, incremented)
	})

	t.Run("expired_lock_allows_login", func(t *testing.T) {
		lockUntil := time.Now().Add(-time.Minute)
		svc := NewAuthService(&fakeUserRepoForService{
			getByEmailFn: func(_ context.Context, _ string) (*model.UserInfo, error) {
				return &model.UserInfo{
					Uuid: "u1", Email: "a@b.com",
					Password:  hashPassword(t, "secret123"),
					LockUntil: &lockUntil,
				}, nil
			},
		}, &fakeAuthRepoForService{}, newTestJWTManager(), 5, 15*time.Minute, 5)

		resp, err := svc.Login(context.Background(), &dto.LoginRequest{Email: "a@b.com", Password: "secret123"})
		require.NoError(t, err)
		require.NotEmpty(t, resp.AccessToken)
	})

	t.Run("wrong_password_increments", func(t *testing.T) {
		var gotUUID string
		svc := NewAuthService(&fakeUserRepoForService{
			getByEmailFn: func(_ context.Context, _ string) (*model.UserInfo, error) {
				return &model.UserInfo{Uuid: "u1", Password: hashPassword(t, "secret123")}, nil
			},
		}, &fakeAuthRepoForService{
			incrementFn: func(_ context.Context, userUUID string) (int, error) {
				gotUUID = userUUID
				return 2, nil
			},
		}, newTestJWTManager(), 5, 15*time.Minute, 5)

		_, err := svc.Login(context.Background(), &dto.LoginRequest{Email: "a@b.com", Password: "wrong"})
		requireBizCode(t, err, consts.CodePasswordError)
		assert.Equal(t, "u1", gotUUID)
	})

	t.Run("threshold_triggers_lock", func(t *testing.T) {
		var lockedUUID string
		var lockedUntil time.Time
		svc := NewAuthService(&fakeUserRepoForService{
			getByEmailFn: func(_ context.Context, _ string) (*model.UserInfo, error) {
				return &model.UserInfo{Uuid: "u1", Password: hashPassword(t, "secret123")}, nil
			},
		}, &fakeAuthRepoForService{
			incrementFn: func(_ context.Context, _ string) (int, error) { return 5, nil },
			lockFn: func(_ context.Context, userUUID string, until time.Time) error {
				lockedUUID = userUUID
				lockedUntil = until
				return nil
			},
		}, newTestJWTManager(), 5, 15*time.Minute, 5)

		// 触发锁定的这一次仍按密码错误应答，下一次才吃到 429
		_, err := svc.Login(context.Background(), &dto.LoginRequest{Email: "a@b.com", Password: "wrong"})
		requireBizCode(t, err, consts.CodePasswordError)
		assert.Equal(t, "u1", lockedUUID)
		assert.WithinDuration(t, time.Now().Add(15*time.Minute), lockedUntil, 5*time.Second)
	})

	t.Run("success_resets_and_issues_tokens", func(t *testing.T) {
		manager := newTestJWTManager()
		var resetCalled, lastLoginCalled bool
		var stored *model.RefreshToken
		var storedCap int

		svc := NewAuthService(&fakeUserRepoForService{
			getByEmailFn: func(_ context.Context, _ string) (*model.UserInfo, error) {
				return &model.UserInfo{
					Uuid: "u1", Username: "alice", Tag: "0042",
					Email: "a@b.com", Password: hashPassword(t, "secret123"),
				}, nil
			},
		}, &fakeAuthRepoForService{
			resetFn:           func(_ context.Context, _ string) error { resetCalled = true; return nil },
			updateLastLoginFn: func(_ context.Context, _ string) error { lastLoginCalled = true; return nil },
			storeRefreshFn: func(_ context.Context, token *model.RefreshToken, tokenCap int) error {
				stored = token
				storedCap = tokenCap
				return nil
			},
		}, manager, 5, 15*time.Minute, 5)

		resp, err := svc.Login(context.Background(), &dto.LoginRequest{Email: "a@b.com", Password: "secret123"})
		require.NoError(t, err)
		assert.True(t, resetCalled)
		assert.True(t, lastLoginCalled)
		assert.Equal(t, "Bearer", resp.TokenType)
		assert.Equal(t, int64(900), resp.ExpiresIn)
		require.NotNil(t, resp.UserInfo)
		assert.Equal(t, "alice", resp.UserInfo.Username)
		assert.Equal(t, "0042", resp.UserInfo.Tag)

		// 令牌类型不能互换
		uuid, err := manager.VerifyAccess(resp.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "u1", uuid)
		uuid, err = manager.VerifyRefresh(resp.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, "u1", uuid)
		_, err = manager.VerifyAccess(resp.RefreshToken)
		require.Error(t, err)

		require.NotNil(t, stored)
		assert.Equal(t, resp.RefreshToken, stored.Token)
		assert.Equal(t, 5, storedCap)
	})

	t.Run("configured_refresh_cap_reaches_store", func(t *testing.T) {
		var storedCap int
		svc := NewAuthService(&fakeUserRepoForService{
			getByEmailFn: func(_ context.Context, _ string) (*model.UserInfo, error) {
				return &model.UserInfo{Uuid: "u1", Password: hashPassword(t, "secret123")}, nil
			},
		}, &fakeAuthRepoForService{
			storeRefreshFn: func(_ context.Context, _ *model.RefreshToken, tokenCap int) error {
				storedCap = tokenCap
				return nil
			},
		}, newTestJWTManager(), 5, 15*time.Minute, 2)

		_, err := svc.Login(context.Background(), &dto.LoginRequest{Email: "a@b.com", Password: "secret123"})
		require.NoError(t, err)
		assert.Equal(t, 2, storedCap)
	})
}

// ==================== Refresh ====================

func TestAuthServiceRefresh(t *testing.T) {
	initServiceTest()

	t.Run("empty_token", func(t *testing.T) {
		svc := NewAuthService(&fakeUserRepoForService{}, &fakeAuthRepoForService{}, newTestJWTManager(), 5, 15*time.Minute, 5)
		_, err := svc.Refresh(context.Background(), "")
		requireBizCode(t, err, consts.CodeUnauthorized)
	})

	t.Run("garbage_token", func(t *testing.T) {
		svc := NewAuthService(&fakeUserRepoForService{}, &fakeAuthRepoForService{}, newTestJWTManager(), 5, 15*time.Minute, 5)
		_, err := svc.Refresh(context.Background(), "not.a.jwt")
		requireBizCode(t, err, consts.CodeRefreshForbidden)
	})

	t.Run("access_token_rejected", func(t *testing.T) {
		manager := newTestJWTManager()
		accessToken, err := manager.GenerateAccess("u1")
		require.NoError(t, err)

		svc := NewAuthService(&fakeUserRepoForService{}, &fakeAuthRepoForService{}, manager, 5, 15*time.Minute, 5)
		_, err = svc.Refresh(context.Background(), accessToken)
		requireBizCode(t, err, consts.CodeRefreshForbidden)
	})

	t.Run("deleted_owner_rejected", func(t *testing.T) {
		manager := newTestJWTManager()
		refreshToken, err := manager.GenerateRefresh("u1")
		require.NoError(t, err)

		var whitelistChecked bool
		svc := NewAuthService(&fakeUserRepoForService{}, &fakeAuthRepoForService{
			getRefreshFn: func(_ context.Context, token string) (*model.RefreshToken, error) {
				whitelistChecked = true
				return &model.RefreshToken{UserUuid: "u1", Token: token}, nil
			},
		}, manager, 5, 15*time.Minute, 5)

		// 签名有效但用户已注销，白名单都不该再查
		_, err = svc.Refresh(context.Background(), refreshToken)
		requireBizCode(t, err, consts.CodeRefreshForbidden)
		assert.False(t, whitelistChecked)
	})

	t.Run("replay_revokes_all_sessions", func(t *testing.T) {
		manager := newTestJWTManager()
		refreshToken, err := manager.GenerateRefresh("u1")
		require.NoError(t, err)

		var revokedUUID string
		svc := NewAuthService(&fakeUserRepoForService{
			getByUUIDFn: func(_ context.Context, uuid string) (*model.UserInfo, error) {
				return &model.UserInfo{Uuid: uuid}, nil
			},
		}, &fakeAuthRepoForService{
			getRefreshFn: func(_ context.Context, _ string) (*model.RefreshToken, error) {
				return nil, repository.ErrRecordNotFound // 签名有效但不在白名单
			},
			deleteAllRefreshFn: func(_ context.Context, userUUID string) error {
				revokedUUID = userUUID
				return nil
			},
		}, manager, 5, 15*time.Minute, 5)

		_, err = svc.Refresh(context.Background(), refreshToken)
		requireBizCode(t, err, consts.CodeRefreshForbidden)
		assert.Equal(t, "u1", revokedUUID)
	})

	t.Run("rotation_deletes_old_and_stores_new", func(t *testing.T) {
		manager := newTestJWTManager()
		oldToken, err := manager.GenerateRefresh("u1")
		require.NoError(t, err)

		var deletedToken string
		var stored *model.RefreshToken
		svc := NewAuthService(&fakeUserRepoForService{
			getByUUIDFn: func(_ context.Context, uuid string) (*model.UserInfo, error) {
				return &model.UserInfo{Uuid: uuid}, nil
			},
		}, &fakeAuthRepoForService{
			getRefreshFn: func(_ context.Context, token string) (*model.RefreshToken, error) {
				return &model.RefreshToken{UserUuid: "u1", Token: token}, nil
			},
			deleteRefreshFn: func(_ context.Context, token string) (bool, error) {
				deletedToken = token
				return true, nil
			},
			storeRefreshFn: func(_ context.Context, token *model.RefreshToken, _ int) error {
				stored = token
				return nil
			},
		}, manager, 5, 15*time.Minute, 5)

		resp, err := svc.Refresh(context.Background(), oldToken)
		require.NoError(t, err)
		assert.Equal(t, oldToken, deletedToken)
		require.NotNil(t, stored)
		assert.Equal(t, resp.RefreshToken, stored.Token)

		uuid, err := manager.VerifyRefresh(resp.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, "u1", uuid)
	})
}

// ==================== Logout / Profile ====================

func TestAuthServiceLogoutAndProfile(t *testing.T) {
	initServiceTest()

	t.Run("logout_unknown_token_is_noop", func(t *testing.T) {
		svc := NewAuthService(&fakeUserRepoForService{}, &fakeAuthRepoForService{
			deleteRefreshFn: func(_ context.Context, _ string) (bool, error) {
				return false, nil // 没删到任何行
			},
		}, newTestJWTManager(), 5, 15*time.Minute, 5)

		assert.NoError(t, svc.Logout(context.Background(), "already-rotated-token"))
		assert.NoError(t, svc.Logout(context.Background(), ""))
	})

	t.Run("profile_not_found", func(t *testing.T) {
		svc := NewAuthService(&fakeUserRepoForService{}, &fakeAuthRepoForService{}, newTestJWTManager(), 5, 15*time.Minute, 5)
		_, err := svc.Profile(context.Background(), "ghost")
		requireBizCode(t, err, consts.CodeUserNotFound)
	})

	t.Run("profile_hides_sensitive_fields", func(t *testing.T) {
		svc := NewAuthService(&fakeUserRepoForService{
			getByUUIDFn: func(_ context.Context, _ string) (*model.UserInfo, error) {
				return &model.UserInfo{
					Uuid: "u1", Username: "alice", Tag: "0042",
					Email: "a@b.com", Nickname: "Alice", Password: "hash",
				}, nil
			},
		}, &fakeAuthRepoForService{}, newTestJWTManager(), 5, 15*time.Minute, 5)

		resp, err := svc.Profile(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, "alice", resp.Username)
		assert.Equal(t, "0042", resp.Tag)
	})
}
