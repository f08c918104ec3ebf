package jwt

import (
	"strings"

	"AgentPedia/pkg/back"
	"AgentPedia/pkg/caller"
	"AgentPedia/pkg/util/myjwt"
	"AgentPedia/pkg/xerr"

	"github.com/gin-gonic/gin"
)

const callerKey = "caller"

// SetCaller 写入调用者身份
func SetCaller(c *gin.Context, who caller.Caller) {
	c.Set(callerKey, who)
	c.Set("user_id", who.UserID)
	c.Set("username", who.Username)
	c.Set("role", who.Role)
	c.Set("is_admin", who.IsAdmin())
}

// CurrentCaller 未鉴权时返回匿名身份
func CurrentCaller(c *gin.Context) caller.Caller {
	if v, ok := c.Get(callerKey); ok {
		if who, ok := v.(caller.Caller); ok {
			return who
		}
	}
	return caller.Anonymous()
}

func resolved(c *gin.Context) bool {
	return !CurrentCaller(c).IsAnonymous()
}

// Auth 必须携带有效 access token；已由 API Key 鉴权的请求直接放行
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if resolved(c) {
			c.Next()
			return
		}
		who, ok := parseBearer(c.GetHeader("Authorization"))
		if !ok {
			back.AbortError(c, xerr.Unauthorized, "无效的认证凭据")
			return
		}
		SetCaller(c, who)
		c.Next()
	}
}

// OptionalAuth 凭据缺失或无效时按匿名处理
func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !resolved(c) {
			if who, ok := parseBearer(c.GetHeader("Authorization")); ok {
				SetCaller(c, who)
			}
		}
		c.Next()
	}
}

func parseBearer(header string) (caller.Caller, bool) {
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return caller.Caller{}, false
	}
	claims, err := myjwt.ParseTyped(strings.TrimPrefix(header, "Bearer "), myjwt.TokenTypeAccess)
	if err != nil {
		return caller.Caller{}, false
	}
	id, err := claims.UserID()
	if err != nil || id <= 0 {
		return caller.Caller{}, false
	}
	return caller.Caller{UserID: id, Username: claims.Username, Role: claims.Role}, true
}
