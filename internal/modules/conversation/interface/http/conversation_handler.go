package handler

import (
	"strconv"

	"AgentPedia/internal/middleware/jwt"
	"AgentPedia/internal/modules/conversation/application/dto/request"
	"AgentPedia/internal/modules/conversation/application/service"
	"AgentPedia/pkg/back"
	"AgentPedia/pkg/xerr"

	"github.com/gin-gonic/gin"
)

// ConversationHandler 所有路由均需登录，只能访问本人的对话
type ConversationHandler struct {
	svc service.ConversationService
}

func NewConversationHandler(svc service.ConversationService) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

// Create 路由: POST /conversations
func (h *ConversationHandler) Create(c *gin.Context) {
	var req request.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.svc.Create(c.Request.Context(), req, jwt.CurrentCaller(c))
	back.Created(c, "对话创建成功", data, err)
}

// List 路由: GET /conversations
func (h *ConversationHandler) List(c *gin.Context) {
	var req request.ListConversationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	items, total, err := h.svc.List(c.Request.Context(), req, jwt.CurrentCaller(c))
	back.Page(c, items, total, req.Page, req.Size, err)
}

// Stats 路由: GET /conversations/stats
func (h *ConversationHandler) Stats(c *gin.Context) {
	data, err := h.svc.Stats(c.Request.Context(), jwt.CurrentCaller(c))
	back.Result(c, data, err)
}

// Get 路由: GET /conversations/:id
func (h *ConversationHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	data, err := h.svc.Get(c.Request.Context(), id, jwt.CurrentCaller(c))
	back.Result(c, data, err)
}

// Update 路由: PUT /conversations/:id
func (h *ConversationHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req request.UpdateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.svc.Update(c.Request.Context(), id, req, jwt.CurrentCaller(c))
	back.ResultMsg(c, "对话更新成功", data, err)
}

// Delete 路由: DELETE /conversations/:id
func (h *ConversationHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	err := h.svc.Delete(c.Request.Context(), id, jwt.CurrentCaller(c))
	back.ResultMsg(c, "对话删除成功", nil, err)
}

// AddMessage 路由: POST /conversations/:id/messages
func (h *ConversationHandler) AddMessage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req request.CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.svc.AddMessage(c.Request.Context(), id, req, jwt.CurrentCaller(c))
	back.Created(c, "消息创建成功", data, err)
}

// ListMessages 路由: GET /conversations/:id/messages
func (h *ConversationHandler) ListMessages(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req request.ListMessagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	items, total, err := h.svc.ListMessages(c.Request.Context(), id, req, jwt.CurrentCaller(c))
	back.Page(c, items, total, req.Page, req.Size, err)
}

// UpdateMessage 路由: PUT /conversations/messages/:message_id
func (h *ConversationHandler) UpdateMessage(c *gin.Context) {
	id, ok := pathID(c, "message_id")
	if !ok {
		return
	}
	var req request.UpdateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.svc.UpdateMessage(c.Request.Context(), id, req, jwt.CurrentCaller(c))
	back.ResultMsg(c, "消息更新成功", data, err)
}

// DeleteMessage 路由: DELETE /conversations/messages/:message_id
func (h *ConversationHandler) DeleteMessage(c *gin.Context) {
	id, ok := pathID(c, "message_id")
	if !ok {
		return
	}
	err := h.svc.DeleteMessage(c.Request.Context(), id, jwt.CurrentCaller(c))
	back.ResultMsg(c, "消息删除成功", nil, err)
}

// Chat 路由: POST /conversations/:id/chat
func (h *ConversationHandler) Chat(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req request.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.svc.Chat(c.Request.Context(), id, req, jwt.CurrentCaller(c))
	back.Result(c, data, err)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return 0, false
	}
	return id, true
}
