package handler

import (
	"strconv"

	"AgentPedia/internal/middleware/jwt"
	"AgentPedia/internal/modules/user/application/dto/request"
	"AgentPedia/internal/modules/user/application/service"
	"AgentPedia/internal/modules/user/domain/entity"
	"AgentPedia/pkg/back"
	"AgentPedia/pkg/xerr"
	"AgentPedia/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UserInfoHandler struct {
	svc service.UserInfoService
}

func NewUserInfoHandler(svc service.UserInfoService) *UserInfoHandler {
	return &UserInfoHandler{svc: svc}
}

// Register 路由: POST /users/register
func (h *UserInfoHandler) Register(c *gin.Context) {
	var req request.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Warn("bind register failed", zap.Error(err))
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.svc.Register(c.Request.Context(), req)
	back.Created(c, "注册成功", data, err)
}

// Login 路由: POST /users/login
func (h *UserInfoHandler) Login(c *gin.Context) {
	var req request.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.svc.Login(c.Request.Context(), req, c.ClientIP())
	back.ResultMsg(c, "登录成功", data, err)
}

// Refresh 路由: POST /users/refresh
func (h *UserInfoHandler) Refresh(c *gin.Context) {
	var req request.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	back.Result(c, data, err)
}

// Me 路由: GET /users/me / 鉴权: 登录
func (h *UserInfoHandler) Me(c *gin.Context) {
	data, err := h.svc.Me(c.Request.Context(), jwt.CurrentCaller(c))
	back.Result(c, data, err)
}

// UpdateMe 路由: PUT /users/me / 鉴权: 登录
func (h *UserInfoHandler) UpdateMe(c *gin.Context) {
	var req request.UpdateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.svc.UpdateMe(c.Request.Context(), jwt.CurrentCaller(c), req)
	back.ResultMsg(c, "更新成功", data, err)
}

// ChangePassword 路由: POST /users/change-password / 鉴权: 登录
func (h *UserInfoHandler) ChangePassword(c *gin.Context) {
	var req request.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	err := h.svc.ChangePassword(c.Request.Context(), jwt.CurrentCaller(c), req)
	back.ResultMsg(c, "密码修改成功", nil, err)
}

// NotImplemented 密码重置与邮箱验证依赖邮件投递，暂未开放
func (h *UserInfoHandler) NotImplemented(c *gin.Context) {
	back.Error(c, xerr.NotImplemented, xerr.ErrNotImplemented.Message)
}

// Stats 路由: GET /users/stats / 鉴权: 登录
func (h *UserInfoHandler) Stats(c *gin.Context) {
	data, err := h.svc.Stats(c.Request.Context(), jwt.CurrentCaller(c))
	back.Result(c, data, err)
}

// List 路由: GET /users / 鉴权: 管理员
func (h *UserInfoHandler) List(c *gin.Context) {
	var req request.ListUsersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	items, total, err := h.svc.List(c.Request.Context(), req, jwt.CurrentCaller(c))
	back.Page(c, items, total, req.Page, req.Size, err)
}

// Get 路由: GET /users/:id / 鉴权: 本人或管理员
func (h *UserInfoHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	data, err := h.svc.Get(c.Request.Context(), id, jwt.CurrentCaller(c))
	back.Result(c, data, err)
}

// Update 路由: PUT /users/:id / 鉴权: 本人或管理员，角色与状态仅管理员
func (h *UserInfoHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req request.AdminUpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.svc.Update(c.Request.Context(), id, req, jwt.CurrentCaller(c))
	back.ResultMsg(c, "更新成功", data, err)
}

// Activate 路由: POST /users/:id/activate / 鉴权: 管理员
func (h *UserInfoHandler) Activate(c *gin.Context) {
	h.setStatus(c, entity.StatusActive, "用户已激活")
}

// Deactivate 路由: POST /users/:id/deactivate / 鉴权: 管理员
func (h *UserInfoHandler) Deactivate(c *gin.Context) {
	h.setStatus(c, entity.StatusInactive, "用户已停用")
}

func (h *UserInfoHandler) setStatus(c *gin.Context, status, msg string) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	err := h.svc.SetStatus(c.Request.Context(), id, status, jwt.CurrentCaller(c))
	back.ResultMsg(c, msg, nil, err)
}

// Delete 路由: DELETE /users/:id / 鉴权: 管理员
func (h *UserInfoHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	err := h.svc.Delete(c.Request.Context(), id, jwt.CurrentCaller(c))
	back.ResultMsg(c, "用户已删除", nil, err)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return 0, false
	}
	return id, true
}
