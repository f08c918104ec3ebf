package back

import (
	"errors"
	"net/http"

	"AgentPedia/pkg/xerr"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageResponse 列表响应结构
type PageResponse struct {
	Code    int         `json:"code"`
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Items   interface{} `json:"items"`
	Total   int64       `json:"total"`
	Page    int         `json:"page"`
	Size    int         `json:"size"`
	Pages   int         `json:"pages"`
}

// Result 统一返回入口
func Result(c *gin.Context, data interface{}, err error) {
	if err == nil {
		Success(c, data)
		return
	}
	writeErr(c, err)
}

// ResultMsg 成功时使用自定义提示语
func ResultMsg(c *gin.Context, msg string, data interface{}, err error) {
	if err == nil {
		c.JSON(http.StatusOK, Response{Code: xerr.OK, Success: true, Message: msg, Data: data})
		return
	}
	writeErr(c, err)
}

// Created 创建成功
func Created(c *gin.Context, msg string, data interface{}, err error) {
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Code: xerr.Created, Success: true, Message: msg, Data: data})
}

// Success 成功返回
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    xerr.OK,
		Success: true,
		Message: "Success",
		Data:    data,
	})
}

// Error 错误返回，HTTP 状态码与业务码一致
func Error(c *gin.Context, code int, message string) {
	status := code
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}
	c.JSON(status, Response{
		Code:    code,
		Message: message,
	})
}

// AbortError 中间件使用
func AbortError(c *gin.Context, code int, message string) {
	Error(c, code, message)
	c.Abort()
}

// Page 列表返回
func Page(c *gin.Context, items interface{}, total int64, page, size int, err error) {
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, NewPage(items, total, page, size))
}

// NewPage 组装列表响应
func NewPage(items interface{}, total int64, page, size int) PageResponse {
	return PageResponse{
		Code:    xerr.OK,
		Success: true,
		Message: "Success",
		Items:   items,
		Total:   total,
		Page:    page,
		Size:    size,
		Pages:   Pages(total, size),
	}
}

// Pages 向上取整的总页数
func Pages(total int64, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

func writeErr(c *gin.Context, err error) {
	var e *xerr.CodeError
	if errors.As(err, &e) {
		Error(c, e.Code, e.Message)
		return
	}
	// 默认为系统错误
	Error(c, xerr.ErrServerError.Code, xerr.ErrServerError.Message)
}
