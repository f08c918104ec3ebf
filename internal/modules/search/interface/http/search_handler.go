package handler

import (
	"net/http"

	"AgentPedia/internal/modules/search/application/dto/request"
	"AgentPedia/internal/modules/search/application/dto/respond"
	"AgentPedia/internal/modules/search/application/service"
	"AgentPedia/pkg/back"
	"AgentPedia/pkg/xerr"

	"github.com/gin-gonic/gin"
)

type SearchHandler struct {
	svc service.SearchService
}

func NewSearchHandler(svc service.SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

// searchEnvelope 搜索结果与统一响应字段平铺在同一层
type searchEnvelope struct {
	Code    int    `json:"code"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	*respond.SearchResult
}

// SearchAgents 路由: GET /search/agents / 鉴权: 无
func (h *SearchHandler) SearchAgents(c *gin.Context) {
	var req request.SearchAgentsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	res, err := h.svc.Search(c.Request.Context(), req)
	if err != nil {
		back.Result(c, nil, err)
		return
	}
	c.JSON(http.StatusOK, searchEnvelope{Code: xerr.OK, Success: true, Message: "搜索成功", SearchResult: res})
}

// Suggestions 路由: GET /search/suggestions?q=
func (h *SearchHandler) Suggestions(c *gin.Context) {
	var req request.SuggestionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.svc.Suggestions(c.Request.Context(), req.Q, req.Size, req.Language)
	back.Result(c, data, err)
}

// Popular 路由: GET /search/popular?limit=&time_range=
func (h *SearchHandler) Popular(c *gin.Context) {
	var req request.PopularRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.svc.Popular(c.Request.Context(), req.Limit, req.TimeRange)
	back.Result(c, data, err)
}

// Reindex 路由: POST /search/reindex / 鉴权: system.manage
func (h *SearchHandler) Reindex(c *gin.Context) {
	n, err := h.svc.ReindexAll(c.Request.Context())
	back.ResultMsg(c, "重建索引完成", respond.ReindexResult{Indexed: n}, err)
}

var searchTypeOptions = []respond.Option{
	{Value: "keyword", Label: "关键词搜索", Description: "名称、描述、标签的精确匹配，支持拼写容错"},
	{Value: "semantic", Label: "语义搜索", Description: "跨字段综合匹配"},
	{Value: "hybrid", Label: "混合搜索", Description: "关键词与语义结合"},
	{Value: "fuzzy", Label: "模糊搜索", Description: "容忍更多拼写差异"},
}

var sortTypeOptions = []respond.Option{
	{Value: "relevance", Label: "相关度", Description: "按匹配程度排序"},
	{Value: "created_at", Label: "创建时间", Description: "最新创建优先"},
	{Value: "updated_at", Label: "更新时间", Description: "最近更新优先"},
	{Value: "popularity", Label: "热度", Description: "按热度分数排序"},
	{Value: "name", Label: "名称", Description: "按名称字母序"},
}

// SearchTypes 路由: GET /search/types
func (h *SearchHandler) SearchTypes(c *gin.Context) {
	back.Success(c, searchTypeOptions)
}

// SortTypes 路由: GET /search/sort-types
func (h *SearchHandler) SortTypes(c *gin.Context) {
	back.Success(c, sortTypeOptions)
}
