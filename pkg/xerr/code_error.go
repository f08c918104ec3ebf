package xerr

import (
	"errors"
	"fmt"
)

// CodeError 自定义错误结构，Code 与 HTTP 状态码对齐
type CodeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error 实现 error 接口
func (e *CodeError) Error() string {
	return fmt.Sprintf("Code: %d, Message: %s", e.Code, e.Message)
}

// New 创建新的 CodeError
func New(code int, msg string) *CodeError {
	return &CodeError{Code: code, Message: msg}
}

// 常用通用错误码
const (
	OK                  = 200
	Created             = 201
	BadRequest          = 400
	Unauthorized        = 401
	Forbidden           = 403
	NotFound            = 404
	Conflict            = 409
	TooManyRequests     = 429
	InternalServerError = 500
	NotImplemented      = 501
	BadGateway          = 502
	ServiceUnavailable  = 503
)

// 常用预定义错误
var (
	ErrSuccess        = New(OK, "Success")
	ErrServerError    = New(InternalServerError, "系统错误，请联系工作人员")
	ErrParam          = New(BadRequest, "参数错误")
	ErrUnauthorized   = New(Unauthorized, "未登录或登录已过期")
	ErrForbidden      = New(Forbidden, "权限不足")
	ErrNotFound       = New(NotFound, "资源不存在")
	ErrRateLimited    = New(TooManyRequests, "请求过于频繁")
	ErrNotImplemented = New(NotImplemented, "功能暂未实现")
)

// NotFoundf 资源不存在
func NotFoundf(format string, args ...interface{}) *CodeError {
	return New(NotFound, fmt.Sprintf(format, args...))
}

// Conflictf 唯一性冲突
func Conflictf(format string, args ...interface{}) *CodeError {
	return New(Conflict, fmt.Sprintf(format, args...))
}

// Paramf 参数错误
func Paramf(format string, args ...interface{}) *CodeError {
	return New(BadRequest, fmt.Sprintf(format, args...))
}

// CodeOf 取错误码，非 CodeError 统一视为 500
func CodeOf(err error) int {
	if err == nil {
		return OK
	}
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return InternalServerError
}
