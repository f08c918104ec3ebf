package handler

import (
	"AgentPedia/internal/middleware/jwt"
	"AgentPedia/internal/modules/favorite/application/dto/request"
	"AgentPedia/internal/modules/favorite/application/dto/respond"
	"AgentPedia/internal/modules/favorite/application/service"
	"AgentPedia/pkg/back"
	"AgentPedia/pkg/util"
	"AgentPedia/pkg/xerr"

	"github.com/gin-gonic/gin"
)

type FavoriteHandler struct {
	svc service.FavoriteService
}

func NewFavoriteHandler(svc service.FavoriteService) *FavoriteHandler {
	return &FavoriteHandler{svc: svc}
}

// Add 路由: POST /favorites / 鉴权: 登录
func (h *FavoriteHandler) Add(c *gin.Context) {
	var req request.AddFavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	fav, created, err := h.svc.Add(c.Request.Context(), req.AgentID, jwt.CurrentCaller(c))
	if err == nil && !created {
		back.ResultMsg(c, "已收藏", fav, nil)
		return
	}
	back.Created(c, "收藏成功", fav, err)
}

// Remove 路由: DELETE /favorites/:agent_id / 鉴权: 登录
func (h *FavoriteHandler) Remove(c *gin.Context) {
	err := h.svc.Remove(c.Request.Context(), c.Param("agent_id"), jwt.CurrentCaller(c))
	back.ResultMsg(c, "已取消收藏", nil, err)
}

// List 路由: GET /favorites / 鉴权: 登录
func (h *FavoriteHandler) List(c *gin.Context) {
	var req request.ListFavoritesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	items, total, err := h.svc.List(c.Request.Context(), req, jwt.CurrentCaller(c))
	back.Page(c, items, total, req.Page, req.Size, err)
}

// Status 路由: GET /favorites/:agent_id/status / 鉴权: 登录
func (h *FavoriteHandler) Status(c *gin.Context) {
	agentID := c.Param("agent_id")
	ok, err := h.svc.IsFavorite(c.Request.Context(), agentID, jwt.CurrentCaller(c))
	back.Result(c, respond.FavoriteStatus{AgentID: agentID, IsFavorite: ok}, err)
}

// Check 路由: GET /favorites/check?agent_ids=a,b / 鉴权: 登录
func (h *FavoriteHandler) Check(c *gin.Context) {
	var req request.CheckFavoritesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.svc.Check(c.Request.Context(), util.SplitCSV(req.AgentIDs), jwt.CurrentCaller(c))
	back.Result(c, data, err)
}
