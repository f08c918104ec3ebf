package handlers

import (
	"context"
	"fmt"
	"strings"

	catalogEntity "AgentPedia/internal/modules/catalog/domain/entity"
	catalogService "AgentPedia/internal/modules/catalog/application/service"
	"AgentPedia/internal/modules/search/application/dto/request"
	"AgentPedia/internal/modules/search/application/service"
	"AgentPedia/pkg/pagination"
	"AgentPedia/pkg/zlog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// DirectoryToolHandler 只读目录工具，供外部 Agent 检索目录
type DirectoryToolHandler struct {
	searchSvc  service.SearchService
	catalogSvc catalogService.CatalogService
}

func NewDirectoryToolHandler(searchSvc service.SearchService, catalogSvc catalogService.CatalogService) *DirectoryToolHandler {
	return &DirectoryToolHandler{searchSvc: searchSvc, catalogSvc: catalogSvc}
}

// RegisterTools 注册目录工具到 Server
func (h *DirectoryToolHandler) RegisterTools(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("search_agents",
		mcp.WithDescription("按关键词与过滤条件检索 AI Agent 目录"),
		mcp.WithString("query", mcp.Required(), mcp.Description("搜索关键词")),
		mcp.WithString("search_type", mcp.Description("keyword / semantic / hybrid / fuzzy，默认 hybrid"),
			mcp.Enum("keyword", "semantic", "hybrid", "fuzzy")),
		mcp.WithString("status", mcp.Description("状态过滤")),
		mcp.WithString("tags", mcp.Description("逗号分隔的标签")),
		mcp.WithString("language", mcp.Description("zh 或 en，默认 zh")),
		mcp.WithNumber("size", mcp.Description("返回条数，1-20，默认 10")),
	), h.handleSearch)

	s.AddTool(mcp.NewTool("search_suggestions",
		mcp.WithDescription("按名称前缀给出搜索建议"),
		mcp.WithString("prefix", mcp.Required(), mcp.Description("名称前缀")),
		mcp.WithString("language", mcp.Description("zh 或 en，默认 zh")),
	), h.handleSuggestions)

	s.AddTool(mcp.NewTool("popular_agents",
		mcp.WithDescription("获取热门 Agent"),
		mcp.WithNumber("limit", mcp.Description("返回条数，1-50，默认 10")),
		mcp.WithNumber("time_range", mcp.Description("只统计最近 N 天创建的 Agent")),
	), h.handlePopular)

	if h.catalogSvc != nil {
		s.AddTool(mcp.NewTool("get_catalog_agent",
			mcp.WithDescription("按 slug 获取 Agent 详情"),
			mcp.WithString("slug", mcp.Required(), mcp.Description("Agent slug")),
			mcp.WithString("language", mcp.Description("zh 或 en，默认 zh")),
		), h.handleGetAgent)
	}
}

func (h *DirectoryToolHandler) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query is required"), nil
	}
	lang := catalogEntity.NormalizeLanguage(req.GetString("language", "zh"))
	size := clamp(req.GetInt("size", 10), 1, 20)
	searchType := req.GetString("search_type", "hybrid")

	res, err := h.searchSvc.Search(ctx, request.SearchAgentsRequest{
		Query:      pagination.Query{Page: 1, Size: size},
		Q:          query,
		SearchType: searchType,
		SortBy:     "relevance",
		Language:   lang,
		Status:     req.GetString("status", ""),
		Tags:       req.GetString("tags", ""),
	})
	if err != nil {
		zlog.Error("search_agents failed", zap.Error(err), zap.String("query", query))
		return mcp.NewToolResultError(fmt.Sprintf("搜索失败：%v", err)), nil
	}
	if len(res.Items) == 0 {
		return mcp.NewToolResultText("没有找到匹配的 Agent。"), nil
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("共 %d 个结果，显示前 %d 个：\n", res.Total, len(res.Items)))
	for i := range res.Items {
		writeAgentLine(&sb, i+1, &res.Items[i], lang)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (h *DirectoryToolHandler) handleSuggestions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prefix, err := req.RequireString("prefix")
	if err != nil {
		return mcp.NewToolResultError("prefix is required"), nil
	}
	names, err := h.searchSvc.Suggestions(ctx, prefix, 10, req.GetString("language", "zh"))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("获取建议失败：%v", err)), nil
	}
	if len(names) == 0 {
		return mcp.NewToolResultText("没有匹配的名称。"), nil
	}
	return mcp.NewToolResultText(strings.Join(names, "\n")), nil
}

func (h *DirectoryToolHandler) handlePopular(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := clamp(req.GetInt("limit", 10), 1, 50)
	var window *int
	if days := req.GetInt("time_range", 0); days > 0 {
		window = &days
	}
	items, err := h.searchSvc.Popular(ctx, limit, window)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("获取热门失败：%v", err)), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("暂无热门 Agent。"), nil
	}
	var sb strings.Builder
	for i := range items {
		writeAgentLine(&sb, i+1, &items[i], "zh")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (h *DirectoryToolHandler) handleGetAgent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError("slug is required"), nil
	}
	lang := catalogEntity.NormalizeLanguage(req.GetString("language", "zh"))
	agent, err := h.catalogSvc.GetBySlug(ctx, slug)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("获取 Agent 失败：%v", err)), nil
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s (%s)\n", agent.Name.Get(lang), agent.Slug))
	sb.WriteString(fmt.Sprintf("状态：%s\n", agent.Status))
	if d := agent.Description.Detailed.Get(lang); d != "" {
		sb.WriteString(d + "\n")
	} else if d := agent.Description.Short.Get(lang); d != "" {
		sb.WriteString(d + "\n")
	}
	if len(agent.Tags) > 0 {
		sb.WriteString("标签：" + strings.Join(agent.Tags, ", ") + "\n")
	}
	if agent.OfficialURL != "" {
		sb.WriteString("官网：" + agent.OfficialURL + "\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func writeAgentLine(sb *strings.Builder, n int, a *catalogEntity.CatalogAgent, lang string) {
	sb.WriteString(fmt.Sprintf("%d. %s [%s] %s\n", n, a.Name.Get(lang), a.Slug, a.Description.Short.Get(lang)))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
