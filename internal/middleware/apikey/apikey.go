// Package apikey X-API-Key 鉴权与限流，需注册在 jwt.Auth/OptionalAuth 之前
package apikey

import (
	"context"
	"net/http"
	"strconv"

	"AgentPedia/internal/middleware/jwt"
	"AgentPedia/internal/modules/apikey/application/dto/respond"
	"AgentPedia/internal/modules/apikey/domain/entity"
	"AgentPedia/pkg/back"
	"AgentPedia/pkg/caller"
	"AgentPedia/pkg/xerr"
	"AgentPedia/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const HeaderAPIKey = "X-API-Key"

type Validator interface {
	Validate(ctx context.Context, plaintext string) (*entity.APIKey, error)
	CheckRateLimit(ctx context.Context, id int64) (*respond.RateLimitDecision, error)
	RecordUsage(ctx context.Context, id int64, ip string) error
}

// IdentityResolver 补全密钥所属用户的用户名与角色
type IdentityResolver func(ctx context.Context, userID int64) (caller.Caller, error)

// Observer 拒绝计数，reason 取 invalid / rate_limited / scope
type Observer interface {
	ObserveAPIKeyRejected(reason string)
}

// Auth 未携带 X-API-Key 时直接放行，resolve 与 obs 可为 nil
func Auth(v Validator, resolve IdentityResolver, obs Observer) gin.HandlerFunc {
	reject := func(reason string) {
		if obs != nil {
			obs.ObserveAPIKeyRejected(reason)
		}
	}
	return func(c *gin.Context) {
		plain := c.GetHeader(HeaderAPIKey)
		if plain == "" {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		key, err := v.Validate(ctx, plain)
		if err != nil {
			if xerr.CodeOf(err) == xerr.Unauthorized {
				reject("invalid")
			}
			abort(c, err)
			return
		}

		// 权限不足的请求不占用限流额度
		if !key.Allows(requiredScope(c.Request.Method)) {
			reject("scope")
			back.AbortError(c, xerr.Forbidden, "API密钥权限不足")
			return
		}

		d, err := v.CheckRateLimit(ctx, key.Id)
		if err != nil {
			abort(c, err)
			return
		}
		writeHeaders(c, d)
		if !d.Allowed {
			zlog.Warn("API Key 触发限流", zap.Int64("key_id", key.Id), zap.String("reason", d.Reason))
			reject("rate_limited")
			back.AbortError(c, xerr.TooManyRequests, d.Reason)
			return
		}

		who := caller.Caller{UserID: key.UserId, Role: caller.RoleUser}
		if resolve != nil {
			resolved, err := resolve(ctx, key.UserId)
			if err != nil {
				abort(c, err)
				return
			}
			who = resolved
		}
		who.APIKeyID = key.Id
		if err := v.RecordUsage(ctx, key.Id, c.ClientIP()); err != nil {
			zlog.Warn("记录 API Key 使用失败", zap.Error(err), zap.Int64("key_id", key.Id))
		}
		jwt.SetCaller(c, who)
		c.Next()
	}
}

func requiredScope(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return entity.ScopeRead
	default:
		return entity.ScopeWrite
	}
}

func writeHeaders(c *gin.Context, d *respond.RateLimitDecision) {
	if d.LimitPerMinute == 0 {
		return
	}
	c.Header("X-RateLimit-Limit", strconv.Itoa(d.LimitPerMinute))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(d.RemainingPerMinute, 10))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(d.ResetTimeMinute.Unix(), 10))
}

func abort(c *gin.Context, err error) {
	code := xerr.CodeOf(err)
	msg := xerr.ErrServerError.Message
	if ce, ok := err.(*xerr.CodeError); ok {
		msg = ce.Message
	}
	back.AbortError(c, code, msg)
}
