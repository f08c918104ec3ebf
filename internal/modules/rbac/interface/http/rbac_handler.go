package handler

import (
	"strconv"

	"AgentPedia/internal/middleware/jwt"
	"AgentPedia/internal/modules/rbac/application/dto/request"
	"AgentPedia/internal/modules/rbac/application/service"
	"AgentPedia/pkg/back"
	"AgentPedia/pkg/xerr"

	"github.com/gin-gonic/gin"
)

type RBACHandler struct {
	svc service.RBACService
}

func NewRBACHandler(svc service.RBACService) *RBACHandler {
	return &RBACHandler{svc: svc}
}

// ListRoles 路由: GET /rbac/roles / 鉴权: 登录
func (h *RBACHandler) ListRoles(c *gin.Context) {
	data, err := h.svc.ListRoles(c.Request.Context())
	back.Result(c, data, err)
}

// MyPermissions 路由: GET /rbac/me/permissions / 鉴权: 登录
func (h *RBACHandler) MyPermissions(c *gin.Context) {
	data, err := h.svc.GetUserPermissions(c.Request.Context(), jwt.CurrentCaller(c).UserID)
	back.Result(c, data, err)
}

// UserPermissions 路由: GET /rbac/users/:id/permissions / 鉴权: role.read
func (h *RBACHandler) UserPermissions(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	data, err := h.svc.GetUserPermissions(c.Request.Context(), id)
	back.Result(c, data, err)
}

// AssignRole 路由: POST /rbac/users/:id/roles / 鉴权: role.update
func (h *RBACHandler) AssignRole(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	var req request.AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.svc.AssignRole(c.Request.Context(), id, req.RoleCode, jwt.CurrentCaller(c).UserID, req.ExpiresAt, req.Reason)
	back.ResultMsg(c, "角色分配成功", data, err)
}

// RevokeRole 路由: DELETE /rbac/users/:id/roles/:code / 鉴权: role.update
func (h *RBACHandler) RevokeRole(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	revoked, err := h.svc.RevokeRole(c.Request.Context(), id, c.Param("code"))
	if err == nil && !revoked {
		err = xerr.NotFoundf("用户没有该角色")
	}
	back.ResultMsg(c, "角色已撤销", nil, err)
}

// CleanupExpired 路由: POST /rbac/cleanup / 鉴权: system.manage
func (h *RBACHandler) CleanupExpired(c *gin.Context) {
	n, err := h.svc.CleanupExpiredAssignments(c.Request.Context())
	back.Result(c, gin.H{"deactivated": n}, err)
}

func userID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		back.Error(c, xerr.BadRequest, "无效的用户ID")
		return 0, false
	}
	return id, true
}
