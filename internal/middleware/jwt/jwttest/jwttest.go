// Package jwttest 固定身份的测试鉴权，仅供测试代码使用
package jwttest

import (
	"net/http"
	"strconv"

	"AgentPedia/internal/middleware/jwt"
	"AgentPedia/pkg/caller"

	"github.com/gin-gonic/gin"
)

// HeaderUserID 测试请求通过该头指定调用者
const (
	HeaderUserID = "X-Test-User-Id"
	HeaderRole   = "X-Test-Role"
)

// WithCaller 为所有请求注入固定身份
func WithCaller(who caller.Caller) gin.HandlerFunc {
	return func(c *gin.Context) {
		jwt.SetCaller(c, who)
		c.Next()
	}
}

// FromHeaders 从测试头读取身份，缺失时为匿名
func FromHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.GetHeader(HeaderUserID), 10, 64)
		if err == nil && id > 0 {
			role := c.GetHeader(HeaderRole)
			if role == "" {
				role = caller.RoleUser
			}
			jwt.SetCaller(c, caller.Caller{UserID: id, Role: role})
		}
		c.Next()
	}
}

// Header 构造测试身份头
func Header(userID string, role string) http.Header {
	h := http.Header{}
	h.Set(HeaderUserID, userID)
	if role != "" {
		h.Set(HeaderRole, role)
	}
	return h
}
