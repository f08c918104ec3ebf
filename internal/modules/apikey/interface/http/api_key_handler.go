package handler

import (
	"strconv"

	"AgentPedia/internal/middleware/jwt"
	"AgentPedia/internal/modules/apikey/application/dto/request"
	"AgentPedia/internal/modules/apikey/application/service"
	"AgentPedia/pkg/back"
	"AgentPedia/pkg/xerr"
	"AgentPedia/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type APIKeyHandler struct {
	svc service.APIKeyService
}

func NewAPIKeyHandler(svc service.APIKeyService) *APIKeyHandler {
	return &APIKeyHandler{svc: svc}
}

// Create 路由: POST /api-keys / 鉴权: 登录
func (h *APIKeyHandler) Create(c *gin.Context) {
	var req request.CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Warn("bind create api key failed", zap.Error(err))
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.svc.Create(c.Request.Context(), req, jwt.CurrentCaller(c))
	back.Created(c, "API密钥创建成功，请妥善保存，密钥仅显示一次", data, err)
}

// List 路由: GET /api-keys / 鉴权: 登录
func (h *APIKeyHandler) List(c *gin.Context) {
	var req request.ListAPIKeysRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	items, total, err := h.svc.List(c.Request.Context(), req, jwt.CurrentCaller(c))
	back.Page(c, items, total, req.Page, req.Size, err)
}

// Stats 路由: GET /api-keys/stats / 鉴权: 登录
func (h *APIKeyHandler) Stats(c *gin.Context) {
	data, err := h.svc.Stats(c.Request.Context(), jwt.CurrentCaller(c))
	back.Result(c, data, err)
}

// Get 路由: GET /api-keys/:id / 鉴权: 所有者
func (h *APIKeyHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	data, err := h.svc.Get(c.Request.Context(), id, jwt.CurrentCaller(c))
	back.Result(c, data, err)
}

// Update 路由: PUT /api-keys/:id / 鉴权: 所有者
func (h *APIKeyHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req request.UpdateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.svc.Update(c.Request.Context(), id, req, jwt.CurrentCaller(c))
	back.Result(c, data, err)
}

// Delete 路由: DELETE /api-keys/:id / 鉴权: 所有者
func (h *APIKeyHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	err := h.svc.Delete(c.Request.Context(), id, jwt.CurrentCaller(c))
	back.ResultMsg(c, "API密钥已删除", nil, err)
}

// Activate 路由: POST /api-keys/:id/activate / 鉴权: 所有者
func (h *APIKeyHandler) Activate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	data, err := h.svc.Activate(c.Request.Context(), id, jwt.CurrentCaller(c))
	back.ResultMsg(c, "API密钥已激活", data, err)
}

// Deactivate 路由: POST /api-keys/:id/deactivate / 鉴权: 所有者
func (h *APIKeyHandler) Deactivate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	data, err := h.svc.Deactivate(c.Request.Context(), id, jwt.CurrentCaller(c))
	back.ResultMsg(c, "API密钥已停用", data, err)
}

// Revoke 路由: POST /api-keys/:id/revoke / 鉴权: 所有者
func (h *APIKeyHandler) Revoke(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	data, err := h.svc.Revoke(c.Request.Context(), id, jwt.CurrentCaller(c))
	back.ResultMsg(c, "API密钥已撤销", data, err)
}

// Extend 路由: POST /api-keys/:id/extend / 鉴权: 所有者
func (h *APIKeyHandler) Extend(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req request.ExtendAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.svc.Extend(c.Request.Context(), id, req.Days, jwt.CurrentCaller(c))
	back.Result(c, data, err)
}

// Usage 路由: GET /api-keys/:id/usage / 鉴权: 所有者
func (h *APIKeyHandler) Usage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	data, err := h.svc.Usage(c.Request.Context(), id, jwt.CurrentCaller(c))
	back.Result(c, data, err)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return 0, false
	}
	return id, true
}
