package handler

import (
	"strconv"

	"AgentPedia/internal/middleware/jwt"
	"AgentPedia/internal/modules/catalog/application/dto/request"
	"AgentPedia/internal/modules/catalog/application/service"
	"AgentPedia/pkg/back"
	"AgentPedia/pkg/xerr"
	"AgentPedia/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CatalogHandler struct {
	svc service.CatalogService
}

func NewCatalogHandler(svc service.CatalogService) *CatalogHandler {
	return &CatalogHandler{svc: svc}
}

// Create 路由: POST /catalog/agents / 鉴权: 登录
func (h *CatalogHandler) Create(c *gin.Context) {
	var req request.CreateCatalogAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Warn("创建目录 Agent 参数绑定失败", zap.Error(err))
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.svc.Create(c.Request.Context(), req, jwt.CurrentCaller(c))
	back.Created(c, "Agent创建成功", data, err)
}

// List 路由: GET /catalog/agents / 鉴权: 无
func (h *CatalogHandler) List(c *gin.Context) {
	var req request.ListCatalogAgentsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	items, total, err := h.svc.List(c.Request.Context(), req)
	back.Page(c, items, total, req.Page, req.Size, err)
}

// Get 路由: GET /catalog/agents/:id
func (h *CatalogHandler) Get(c *gin.Context) {
	data, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	back.Result(c, data, err)
}

// GetBySlug 路由: GET /catalog/agents/slug/:slug
func (h *CatalogHandler) GetBySlug(c *gin.Context) {
	data, err := h.svc.GetBySlug(c.Request.Context(), c.Param("slug"))
	back.Result(c, data, err)
}

// Update 路由: PUT /catalog/agents/:id / 鉴权: 创建者或管理员
func (h *CatalogHandler) Update(c *gin.Context) {
	var req request.UpdateCatalogAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Warn("更新目录 Agent 参数绑定失败", zap.Error(err))
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.svc.Update(c.Request.Context(), c.Param("id"), req, jwt.CurrentCaller(c))
	back.ResultMsg(c, "Agent更新成功", data, err)
}

// Delete 路由: DELETE /catalog/agents/:id / 鉴权: 创建者或管理员
func (h *CatalogHandler) Delete(c *gin.Context) {
	err := h.svc.Delete(c.Request.Context(), c.Param("id"), jwt.CurrentCaller(c))
	back.ResultMsg(c, "Agent删除成功", nil, err)
}

// Related 路由: GET /catalog/agents/:id/related?limit=5
func (h *CatalogHandler) Related(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))
	data, err := h.svc.Related(c.Request.Context(), c.Param("id"), limit)
	back.Result(c, data, err)
}
