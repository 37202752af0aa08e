package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"TagChat/consts"
	"TagChat/internal/dto"
	"TagChat/pkg/errs"
	"TagChat/pkg/logger"
	"TagChat/pkg/result"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var handlerTestOnce sync.Once

func initHandlerTest() {
	handlerTestOnce.Do(func() {
		gin.SetMode(gin.TestMode)
		logger.ReplaceGlobal(zap.NewNop())
	})
}

type fakeAuthService struct {
	registerFn func(context.Context, *dto.RegisterRequest) (*dto.UserInfoResponse, error)
	loginFn    func(context.Context, *dto.LoginRequest) (*dto.TokenPairResponse, error)
	refreshFn  func(context.Context, string) (*dto.TokenPairResponse, error)
	logoutFn   func(context.Context, string) error
	profileFn  func(context.Context, string) (*dto.UserInfoResponse, error)
}

func (f *fakeAuthService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.UserInfoResponse, error) {
	if f.registerFn == nil {
		return &dto.UserInfoResponse{}, nil
	}
	return f.registerFn(ctx, req)
}

func (f *fakeAuthService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenPairResponse, error) {
	if f.loginFn == nil {
		return &dto.TokenPairResponse{}, nil
	}
	return f.loginFn(ctx, req)
}

func (f *fakeAuthService) Refresh(ctx context.Context, token string) (*dto.TokenPairResponse, error) {
	if f.refreshFn == nil {
		return &dto.TokenPairResponse{}, nil
	}
	return f.refreshFn(ctx, token)
}

func (f *fakeAuthService) Logout(ctx context.Context, token string) error {
	if f.logoutFn == nil {
		return nil
	}
	return f.logoutFn(ctx, token)
}

func (f *fakeAuthService) Profile(ctx context.Context, userUUID string) (*dto.UserInfoResponse, error) {
	if f.profileFn == nil {
		return &dto.UserInfoResponse{}, nil
	}
	return f.profileFn(ctx, userUUID)
}

func newAuthTestRouter(svc *fakeAuthService) *gin.Engine {
	h := NewAuthHandler(svc, 3600, false)
	r := gin.New()
	r.POST("/register", h.Register)
	r.POST("/login", h.Login)
	r.POST("/refresh", h.Refresh)
	r.POST("/logout", h.Logout)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) result.Response {
	t.Helper()
	var resp result.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestAuthHandlerRegister(t *testing.T) {
	initHandlerTest()

	t.Run("param_error", func(t *testing.T) {
		r := newAuthTestRouter(&fakeAuthService{})
		w := doJSON(t, r, http.MethodPost, "/register", `{"username":"alice"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, int32(consts.CodeParamError), resp.Code)
	})

	t.Run("business_error_mapped", func(t *testing.T) {
		r := newAuthTestRouter(&fakeAuthService{
			registerFn: func(_ context.Context, _ *dto.RegisterRequest) (*dto.UserInfoResponse, error) {
				return nil, errs.New(consts.CodeUserAlreadyExist)
			},
		})
		w := doJSON(t, r, http.MethodPost, "/register",
			`{"username":"alice","email":"a@b.com","password":"secret123"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, int32(consts.CodeUserAlreadyExist), resp.Code)
	})

	t.Run("success", func(t *testing.T) {
		r := newAuthTestRouter(&fakeAuthService{
			registerFn: func(_ context.Context, req *dto.RegisterRequest) (*dto.UserInfoResponse, error) {
				assert.Equal(t, "alice", req.Username)
				return &dto.UserInfoResponse{Uuid: "u1", Username: "alice", Tag: "0042"}, nil
			},
		})
		w := doJSON(t, r, http.MethodPost, "/register",
			`{"username":"alice","email":"a@b.com","password":"secret123"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, int32(consts.CodeSuccess), resp.Code)
	})
}

func TestAuthHandlerLoginSetsCookie(t *testing.T) {
	initHandlerTest()

	r := newAuthTestRouter(&fakeAuthService{
		loginFn: func(_ context.Context, _ *dto.LoginRequest) (*dto.TokenPairResponse, error) {
			return &dto.TokenPairResponse{
				AccessToken: "access", RefreshToken: "refresh-xyz",
				TokenType: "Bearer", ExpiresIn: 900,
			}, nil
		},
	})

	w := doJSON(t, r, http.MethodPost, "/login", `{"email":"a@b.com","password":"secret123"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	setCookie := w.Header().Get("Set-Cookie")
	assert.Contains(t, setCookie, "refresh_token=refresh-xyz")
	assert.Contains(t, strings.ToLower(setCookie), "httponly")
}

func TestAuthHandlerRefreshCookieFallback(t *testing.T) {
	initHandlerTest()

	t.Run("body_token_takes_precedence", func(t *testing.T) {
		var gotToken string
		r := newAuthTestRouter(&fakeAuthService{
			refreshFn: func(_ context.Context, token string) (*dto.TokenPairResponse, error) {
				gotToken = token
				return &dto.TokenPairResponse{RefreshToken: "new-token"}, nil
			},
		})
		w := doJSON(t, r, http.MethodPost, "/refresh", `{"refreshToken":"from-body"}`,
			&http.Cookie{Name: "refresh_token", Value: "from-cookie"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "from-body", gotToken)
	})

	t.Run("cookie_fallback", func(t *testing.T) {
		var gotToken string
		r := newAuthTestRouter(&fakeAuthService{
			refreshFn: func(_ context.Context, token string) (*dto.TokenPairResponse, error) {
				gotToken = token
				return &dto.TokenPairResponse{RefreshToken: "new-token"}, nil
			},
		})
		w := doJSON(t, r, http.MethodPost, "/refresh", "",
			&http.Cookie{Name: "refresh_token", Value: "from-cookie"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "from-cookie", gotToken)
	})

	t.Run("replay_clears_cookie", func(t *testing.T) {
		r := newAuthTestRouter(&fakeAuthService{
			refreshFn: func(_ context.Context, _ string) (*dto.TokenPairResponse, error) {
				return nil, errs.New(consts.CodeRefreshForbidden)
			},
		})
		w := doJSON(t, r, http.MethodPost, "/refresh", `{"refreshToken":"replayed"}`)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Header().Get("Set-Cookie"), "refresh_token=;")
	})
}

func TestAuthHandlerLogoutClearsCookie(t *testing.T) {
	initHandlerTest()

	var gotToken string
	r := newAuthTestRouter(&fakeAuthService{
		logoutFn: func(_ context.Context, token string) error {
			gotToken = token
			return nil
		},
	})

	w := doJSON(t, r, http.MethodPost, "/logout", "",
		&http.Cookie{Name: "refresh_token", Value: "stored"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stored", gotToken)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "refresh_token=;")
}
