package connect

import (
	"context"
	"encoding/json"
	"net/http"

	"TagChat/internal/middleware"
	"TagChat/pkg/jwt"
	"TagChat/pkg/logger"
	"TagChat/pkg/util"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	// WebSocket 协议层业务错误码（仅用于 ws 帧内的 error 消息，不是 HTTP 状态码）。
	wsMessageInvalidFormatCode = 10001
	wsMessageUnsupportedCode   = 10002
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// 当前阶段默认放开来源校验，方便本地多端调试。
	// 生产环境建议按域名白名单收紧校验策略。
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type wsErrorData struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// WSHandler 负责处理 /ws 接入请求。
// 职责边界：握手鉴权、协议升级、连接生命周期维护。
type WSHandler struct {
	connManager *ConnectionManager
	jwtManager  *jwt.Manager
}

// NewWSHandler 创建 WebSocket 入口处理器。
func NewWSHandler(connManager *ConnectionManager, jwtManager *jwt.Manager) *WSHandler {
	return &WSHandler{
		connManager: connManager,
		jwtManager:  jwtManager,
	}
}

// ServeWS 处理 WebSocket 握手与接入。
// 浏览器 WebSocket API 不支持自定义 Header，访问令牌从 query 传入。
// 鉴权失败发生在协议升级之前，用 HTTP JSON 返回更直观。
func (h *WSHandler) ServeWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "token is required",
		})
		return
	}

	userUUID, err := h.jwtManager.VerifyAccess(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    http.StatusUnauthorized,
			"message": "token invalid or expired",
		})
		return
	}

	connCtx := context.Background()
	if traceID := c.GetString("trace_id"); traceID != "" {
		connCtx = context.WithValue(connCtx, "trace_id", traceID) //nolint:staticcheck
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(connCtx, "WebSocket 升级失败",
			logger.String("user_uuid", userUUID),
			logger.ErrorField("error", err),
		)
		return
	}

	h.handleConnection(connCtx, conn, userUUID, c.ClientIP())
}

// handleConnection 承载单个连接的完整生命周期。
// conn_id 服务端生成，同一用户允许多条并存连接（多标签页/多端）。
func (h *WSHandler) handleConnection(ctx context.Context, conn *websocket.Conn, userUUID, clientIP string) {
	client := NewClient(conn, userUUID, util.NewUUID())
	replaced := h.connManager.Register(client)
	if replaced != nil {
		replaced.Close()
	}
	middleware.SetOnlineConnections(h.connManager.Count())

	logger.Info(ctx, "WebSocket 连接已建立",
		logger.String("user_uuid", userUUID),
		logger.String("conn_id", client.ConnID()),
		logger.String("client_ip", clientIP),
		logger.Int("online_count", h.connManager.Count()),
	)

	client.Run(ctx, func(raw []byte) {
		h.handleMessage(ctx, client, raw)
	}, func() {
		h.connManager.Unregister(client)
		middleware.SetOnlineConnections(h.connManager.Count())
		logger.Info(ctx, "WebSocket 连接已断开",
			logger.String("user_uuid", userUUID),
			logger.String("conn_id", client.ConnID()),
			logger.Int("online_count", h.connManager.Count()),
		)
	})
}

// handleMessage 处理客户端上行帧。
// 下行事件全部由业务侧通过 Notifier 推送，上行只支持心跳保活。
func (h *WSHandler) handleMessage(ctx context.Context, client *Client, raw []byte) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Type == "" {
		h.sendErrorFrame(ctx, client, wsMessageInvalidFormatCode, "invalid frame format")
		return
	}

	switch envelope.Type {
	case "heartbeat":
		ack, marshalErr := MarshalEnvelope("heartbeat_ack", nil)
		if marshalErr != nil {
			logger.Warn(ctx, "心跳应答序列化失败",
				logger.ErrorField("error", marshalErr),
			)
			return
		}
		if !client.Enqueue(ack) {
			client.Close()
		}
	default:
		h.sendErrorFrame(ctx, client, wsMessageUnsupportedCode, "unsupported message type")
	}
}

// sendErrorFrame 发送 ws 协议层错误帧。
// 发送失败通常表示连接不可写，此时主动关闭连接避免资源泄漏。
func (h *WSHandler) sendErrorFrame(ctx context.Context, client *Client, code int, message string) {
	payload, err := MarshalEnvelope("error", wsErrorData{
		Code:    code,
		Message: message,
	})
	if err != nil {
		logger.Warn(ctx, "错误帧序列化失败",
			logger.Int("code", code),
			logger.ErrorField("error", err),
		)
		return
	}
	if !client.Enqueue(payload) {
		client.Close()
	}
}
