package handler

import (
	"strconv"

	"AgentPedia/internal/middleware/jwt"
	"AgentPedia/internal/modules/agent/application/dto/request"
	"AgentPedia/internal/modules/agent/application/service"
	"AgentPedia/pkg/back"
	"AgentPedia/pkg/xerr"
	"AgentPedia/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AgentHandler struct {
	svc service.AgentService
}

func NewAgentHandler(svc service.AgentService) *AgentHandler {
	return &AgentHandler{svc: svc}
}

// Create 路由: POST /agents / 鉴权: 登录
func (h *AgentHandler) Create(c *gin.Context) {
	var req request.CreateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Warn("bind create agent failed", zap.Error(err))
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.svc.Create(c.Request.Context(), req, jwt.CurrentCaller(c))
	back.Created(c, "Agent创建成功", data, err)
}

// List 路由: GET /agents / 鉴权: 可选，匿名仅返回公开 Agent
func (h *AgentHandler) List(c *gin.Context) {
	var req request.ListAgentsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	items, total, err := h.svc.List(c.Request.Context(), req, jwt.CurrentCaller(c))
	back.Page(c, items, total, req.Page, req.Size, err)
}

// ListMine 路由: GET /agents/my / 鉴权: 登录
func (h *AgentHandler) ListMine(c *gin.Context) {
	var req request.ListAgentsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	items, total, err := h.svc.ListMine(c.Request.Context(), req, jwt.CurrentCaller(c))
	back.Page(c, items, total, req.Page, req.Size, err)
}

// Get 路由: GET /agents/:id / 鉴权: 可选
func (h *AgentHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	data, err := h.svc.Get(c.Request.Context(), id, jwt.CurrentCaller(c))
	back.Result(c, data, err)
}

// Update 路由: PUT /agents/:id / 鉴权: 所有者或管理员
func (h *AgentHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req request.UpdateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.svc.Update(c.Request.Context(), id, req, jwt.CurrentCaller(c))
	back.ResultMsg(c, "Agent更新成功", data, err)
}

// Delete 路由: DELETE /agents/:id / 鉴权: 所有者或管理员
func (h *AgentHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	err := h.svc.Delete(c.Request.Context(), id, jwt.CurrentCaller(c))
	back.ResultMsg(c, "Agent删除成功", nil, err)
}

// Clone 路由: POST /agents/:id/clone / 鉴权: 登录
func (h *AgentHandler) Clone(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req request.CloneAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.svc.Clone(c.Request.Context(), id, req, jwt.CurrentCaller(c))
	back.Created(c, "Agent克隆成功", data, err)
}

// Publish 路由: POST /agents/:id/publish / 鉴权: 所有者或管理员
func (h *AgentHandler) Publish(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	data, err := h.svc.Publish(c.Request.Context(), id, jwt.CurrentCaller(c))
	back.ResultMsg(c, "Agent发布成功", data, err)
}

// Unpublish 路由: POST /agents/:id/unpublish / 鉴权: 所有者或管理员
func (h *AgentHandler) Unpublish(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	data, err := h.svc.Unpublish(c.Request.Context(), id, jwt.CurrentCaller(c))
	back.ResultMsg(c, "Agent已取消发布", data, err)
}

// Stats 路由: GET /agents/:id/stats
func (h *AgentHandler) Stats(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	data, err := h.svc.Stats(c.Request.Context(), id, jwt.CurrentCaller(c))
	back.Result(c, data, err)
}

// Export 路由: GET /agents/:id/export / 鉴权: 所有者或管理员
func (h *AgentHandler) Export(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	data, err := h.svc.Export(c.Request.Context(), id, jwt.CurrentCaller(c))
	back.Result(c, data, err)
}

// Import 路由: POST /agents/import / 鉴权: 登录
func (h *AgentHandler) Import(c *gin.Context) {
	var req request.ImportAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.svc.Import(c.Request.Context(), req, jwt.CurrentCaller(c))
	back.Created(c, "Agent导入成功", data, err)
}

// ToggleTool 路由: PUT /agents/:id/tools/:tool_name/toggle / 鉴权: 所有者或管理员
func (h *AgentHandler) ToggleTool(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req request.ToggleToolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	err := h.svc.ToggleTool(c.Request.Context(), id, c.Param("tool_name"), *req.IsEnabled, jwt.CurrentCaller(c))
	msg := "工具已禁用"
	if *req.IsEnabled {
		msg = "工具已启用"
	}
	back.ResultMsg(c, msg, nil, err)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return 0, false
	}
	return id, true
}
