package consts

import "net/http"

// 通用错误码
const (
	CodeSuccess = 0 // 成功
)

// 客户端错误 (1xxxx)
const (
	CodeParamError       = 10001 // 参数验证失败
	CodeBodyError        = 10002 // 请求体格式错误
	CodeResourceNotFound = 10003 // 资源不存在
	CodeMethodNotAllowed = 10004 // 请求方法不允许
	CodeTooManyRequests  = 10005 // 请求过于频繁
)

// 认证错误 (2xxxx)
const (
	CodeUnauthorized     = 20001 // 未认证
	CodeInvalidToken     = 20002 // Token 无效
	CodeTokenExpired     = 20003 // Token 已过期
	CodePermissionDeny   = 20004 // 权限不足
	CodeRefreshForbidden = 20005 // 刷新令牌无效或已被轮换
)

// 用户模块错误 (11xxx)
const (
	CodeUserNotFound     = 11001 // 用户不存在
	CodeUserAlreadyExist = 11002 // 用户已存在
	CodePasswordError    = 11003 // 密码错误
	CodeAccountLocked    = 11004 // 账号已锁定
	CodeUsernameInvalid  = 11005 // 用户名格式错误
	CodeEmailInvalid     = 11006 // 邮箱格式错误
	CodePasswordTooShort = 11007 // 密码过短
	CodeTagExhausted     = 11008 // 无可用识别码
)

// 好友模块错误 (12xxx)
const (
	CodeAlreadyFriend        = 12001 // 已经是好友
	CodeFriendRequestSent    = 12002 // 好友申请已发送
	CodeNotFriend            = 12003 // 不存在该好友关系
	CodePeerRequestPending   = 12004 // 对方已向你发送申请
	CodeFriendRequestMissing = 12005 // 好友申请不存在
	CodeCannotAddSelf        = 12006 // 不能添加自己
)

// 消息模块错误 (13xxx)
const (
	CodeMessageSendFail = 13001 // 消息发送失败
	CodeMessageEmpty    = 13002 // 消息内容为空
)

// 服务端错误 (3xxxx)
const (
	CodeInternalError      = 30001 // 服务器内部错误
	CodeServiceUnavailable = 30002 // 服务暂不可用
)

// 错误消息映射
var CodeMessage = map[int32]string{
	CodeSuccess: "success",

	// 客户端错误
	CodeParamError:       "参数验证失败",
	CodeBodyError:        "请求体格式错误",
	CodeResourceNotFound: "资源不存在",
	CodeMethodNotAllowed: "请求方法不允许",
	CodeTooManyRequests:  "请求过于频繁",

	// 认证错误
	CodeUnauthorized:     "未认证",
	CodeInvalidToken:     "Token 无效",
	CodeTokenExpired:     "Token 已过期",
	CodePermissionDeny:   "权限不足",
	CodeRefreshForbidden: "刷新令牌无效",

	// 用户模块
	CodeUserNotFound:     "用户不存在",
	CodeUserAlreadyExist: "用户已存在",
	CodePasswordError:    "账号或密码错误",
	CodeAccountLocked:    "账号已锁定，请稍后再试",
	CodeUsernameInvalid:  "用户名只能包含字母、数字和下划线，长度3-20",
	CodeEmailInvalid:     "邮箱格式错误",
	CodePasswordTooShort: "密码至少6个字符",
	CodeTagExhausted:     "暂无可用识别码，请更换用户名",

	// 好友模块
	CodeAlreadyFriend:        "已经是好友",
	CodeFriendRequestSent:    "好友申请已发送，请勿重复申请",
	CodeNotFriend:            "不存在该好友关系",
	CodePeerRequestPending:   "对方已向你发送好友申请，请直接处理该申请",
	CodeFriendRequestMissing: "好友申请不存在",
	CodeCannotAddSelf:        "不能添加自己为好友",

	// 消息模块
	CodeMessageSendFail: "消息发送失败",
	CodeMessageEmpty:    "消息内容不能为空",

	// 服务端错误
	CodeInternalError:      "服务器内部错误",
	CodeServiceUnavailable: "服务暂不可用",
}

// 错误码 -> HTTP 状态类映射
// 未列出的错误码按 500 处理（服务端错误兜底）。
var codeHTTPStatus = map[int32]int{
	CodeSuccess: http.StatusOK,

	CodeParamError:       http.StatusBadRequest,
	CodeBodyError:        http.StatusBadRequest,
	CodeResourceNotFound: http.StatusNotFound,
	CodeMethodNotAllowed: http.StatusMethodNotAllowed,
	CodeTooManyRequests:  http.StatusTooManyRequests,

	CodeUnauthorized:     http.StatusUnauthorized,
	CodeInvalidToken:     http.StatusUnauthorized,
	CodeTokenExpired:     http.StatusUnauthorized,
	CodePermissionDeny:   http.StatusForbidden,
	CodeRefreshForbidden: http.StatusForbidden,

	CodeUserNotFound:     http.StatusNotFound,
	CodeUserAlreadyExist: http.StatusBadRequest,
	CodePasswordError:    http.StatusUnauthorized,
	CodeAccountLocked:    http.StatusTooManyRequests,
	CodeUsernameInvalid:  http.StatusBadRequest,
	CodeEmailInvalid:     http.StatusBadRequest,
	CodePasswordTooShort: http.StatusBadRequest,
	CodeTagExhausted:     http.StatusInternalServerError,

	CodeAlreadyFriend:        http.StatusBadRequest,
	CodeFriendRequestSent:    http.StatusBadRequest,
	CodeNotFriend:            http.StatusBadRequest,
	CodePeerRequestPending:   http.StatusBadRequest,
	CodeFriendRequestMissing: http.StatusNotFound,
	CodeCannotAddSelf:        http.StatusBadRequest,

	CodeMessageSendFail: http.StatusInternalServerError,
	CodeMessageEmpty:    http.StatusBadRequest,

	CodeInternalError:      http.StatusInternalServerError,
	CodeServiceUnavailable: http.StatusServiceUnavailable,
}

// GetMessage 根据错误码获取错误消息
func GetMessage(code int32) string {
	if msg, ok := CodeMessage[code]; ok {
		return msg
	}
	return "未知错误"
}

// HTTPStatus 根据错误码获取 HTTP 状态码
func HTTPStatus(code int32) int {
	if status, ok := codeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
