package errs

import (
	"errors"

	"TagChat/consts"
)

// Error 业务错误：携带错误码，错误信息与 HTTP 状态由码表统一查询。
// 服务层只返回这一种错误类型（或包装了它的 error），
// handler 层据此决定响应体与状态码，不做字符串匹配。
type Error struct {
	Code    int32
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// HTTPStatus 返回该错误码对应的 HTTP 状态。
func (e *Error) HTTPStatus() int {
	return consts.HTTPStatus(e.Code)
}

// New 根据错误码构造业务错误，消息取码表默认值。
func New(code int32) *Error {
	return &Error{Code: code, Message: consts.GetMessage(code)}
}

// NewWithMessage 根据错误码构造业务错误并覆盖消息。
func NewWithMessage(code int32, message string) *Error {
	return &Error{Code: code, Message: message}
}

// FromError 从 error 链中提取业务错误。
// 非业务错误统一归为内部错误，避免把底层细节泄露给客户端。
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return New(consts.CodeInternalError)
}

// Is 判断 err 是否为指定错误码的业务错误。
func Is(err error, code int32) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
