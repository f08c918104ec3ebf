package rbac

import (
	"context"

	"AgentPedia/internal/middleware/jwt"
	"AgentPedia/pkg/back"
	"AgentPedia/pkg/xerr"
	"AgentPedia/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PermissionChecker 由 RBAC 服务实现
type PermissionChecker interface {
	CheckPermission(ctx context.Context, userID int64, code string) (bool, error)
}

// Require 要求调用者拥有权限 code，需挂在鉴权中间件之后
func Require(checker PermissionChecker, code string) gin.HandlerFunc {
	return func(c *gin.Context) {
		who := jwt.CurrentCaller(c)
		if who.IsAnonymous() {
			back.AbortError(c, xerr.Unauthorized, xerr.ErrUnauthorized.Message)
			return
		}
		ok, err := checker.CheckPermission(c.Request.Context(), who.UserID, code)
		if err != nil {
			zlog.Error("权限校验失败", zap.Error(err), zap.Int64("user_id", who.UserID), zap.String("permission", code))
			back.AbortError(c, xerr.InternalServerError, xerr.ErrServerError.Message)
			return
		}
		if !ok {
			back.AbortError(c, xerr.Forbidden, "权限不足")
			return
		}
		c.Next()
	}
}
