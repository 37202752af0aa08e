package result

import (
	"net/http"

	"TagChat/consts"
	"TagChat/pkg/errs"

	"github.com/gin-gonic/gin"
)

// Response 响应结构体
type Response struct {
	Code    int32       `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
	TraceId string      `json:"trace_id"`
}

// Result 返回响应
func Result(c *gin.Context, status int, data interface{}, message string, code int32) {
	traceId := c.GetString("trace_id")
	if message == "" {
		message = consts.GetMessage(code)
	}
	c.JSON(status, Response{
		Code:    code,
		Message: message,
		Data:    data,
		TraceId: traceId,
	})
}

// Success 返回成功响应
func Success(c *gin.Context, data interface{}) {
	Result(c, http.StatusOK, data, "", consts.CodeSuccess)
}

// SuccessWithMessage 返回成功响应并自定义消息
func SuccessWithMessage(c *gin.Context, data interface{}, message string) {
	Result(c, http.StatusOK, data, message, consts.CodeSuccess)
}

// Fail 返回失败响应，HTTP 状态由码表映射
func Fail(c *gin.Context, code int32) {
	Result(c, consts.HTTPStatus(code), nil, "", code)
}

// FailWithMessage 返回失败响应并自定义消息
func FailWithMessage(c *gin.Context, message string, code int32) {
	Result(c, consts.HTTPStatus(code), nil, message, code)
}

// FailWithError 返回失败响应，从 error 链中提取业务错误
func FailWithError(c *gin.Context, err error) {
	e := errs.FromError(err)
	Result(c, e.HTTPStatus(), nil, e.Message, e.Code)
}
