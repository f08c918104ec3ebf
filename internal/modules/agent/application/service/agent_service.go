package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"AgentPedia/internal/modules/agent/application/dto/request"
	"AgentPedia/internal/modules/agent/application/dto/respond"
	"AgentPedia/internal/modules/agent/domain/entity"
	"AgentPedia/internal/modules/agent/domain/repository"
	"AgentPedia/pkg/caller"
	"AgentPedia/pkg/xerr"
	"AgentPedia/pkg/zlog"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const exportVersion = "1.0"

var (
	ErrAgentNotFound  = xerr.NotFoundf("Agent不存在")
	ErrAgentNameTaken = xerr.Conflictf("Agent名称已存在")
	ErrToolNotFound   = xerr.NotFoundf("工具不存在")
)

type AgentService interface {
	Create(ctx context.Context, req request.CreateAgentRequest, who caller.Caller) (*entity.Agent, error)
	// Get 私有 Agent 仅所有者与管理员可见
	Get(ctx context.Context, id int64, who caller.Caller) (*entity.Agent, error)
	Update(ctx context.Context, id int64, req request.UpdateAgentRequest, who caller.Caller) (*entity.Agent, error)
	Delete(ctx context.Context, id int64, who caller.Caller) error
	List(ctx context.Context, req request.ListAgentsRequest, who caller.Caller) ([]entity.Agent, int64, error)
	ListMine(ctx context.Context, req request.ListAgentsRequest, who caller.Caller) ([]entity.Agent, int64, error)
	Clone(ctx context.Context, id int64, req request.CloneAgentRequest, who caller.Caller) (*entity.Agent, error)
	Publish(ctx context.Context, id int64, who caller.Caller) (*entity.Agent, error)
	Unpublish(ctx context.Context, id int64, who caller.Caller) (*entity.Agent, error)
	Stats(ctx context.Context, id int64, who caller.Caller) (*respond.AgentStats, error)
	Export(ctx context.Context, id int64, who caller.Caller) (*request.AgentExport, error)
	Import(ctx context.Context, req request.ImportAgentRequest, who caller.Caller) (*entity.Agent, error)
	ToggleTool(ctx context.Context, id int64, toolName string, enabled bool, who caller.Caller) error

	RecordUsage(ctx context.Context, id int64, u repository.Usage) error
	CountByOwner(ctx context.Context, ownerID int64) (total int64, active int64, err error)
}

type agentServiceImpl struct {
	repo repository.AgentRepository
	now  func() time.Time
}

func NewAgentService(repo repository.AgentRepository) AgentService {
	return &agentServiceImpl{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *agentServiceImpl) Create(ctx context.Context, req request.CreateAgentRequest, who caller.Caller) (*entity.Agent, error) {
	if err := s.checkName(ctx, who.UserID, req.Name, 0); err != nil {
		return nil, err
	}
	agent := &entity.Agent{
		Name:                  req.Name,
		Description:           req.Description,
		Type:                  defaultStr(req.Type, entity.TypeChatbot),
		Visibility:            defaultStr(req.Visibility, entity.VisibilityPrivate),
		Status:                entity.StatusActive,
		OwnerId:               who.UserID,
		ModelProvider:         req.ModelProvider,
		ModelName:             req.ModelName,
		ModelVersion:          req.ModelVersion,
		SystemPrompt:          req.SystemPrompt,
		Temperature:           floatOr(req.Temperature, 0.7),
		MaxTokens:             intOr(req.MaxTokens, 2048),
		TopP:                  floatOr(req.TopP, 1),
		FrequencyPenalty:      floatOr(req.FrequencyPenalty, 0),
		PresencePenalty:       floatOr(req.PresencePenalty, 0),
		EnableMemory:          req.EnableMemory == nil || *req.EnableMemory,
		EnableTools:           req.EnableTools,
		EnableWebSearch:       req.EnableWebSearch,
		EnableCodeExecution:   req.EnableCodeExecution,
		MaxConversationLength: intOr(req.MaxConversationLength, 50),
		MemoryWindow:          intOr(req.MemoryWindow, 10),
		RateLimitPerMinute:    intOr(req.RateLimitPerMinute, 60),
		RateLimitPerHour:      intOr(req.RateLimitPerHour, 1000),
		RateLimitPerDay:       intOr(req.RateLimitPerDay, 10000),
		Tools:                 buildTools(req.Tools),
	}
	if agent.Visibility == entity.VisibilityPublic {
		now := s.now()
		agent.PublishedAt = &now
	}
	return s.create(ctx, agent)
}

func (s *agentServiceImpl) create(ctx context.Context, agent *entity.Agent) (*entity.Agent, error) {
	if err := s.repo.CreateAgent(ctx, agent); err != nil {
		zlog.Error("创建 Agent 失败", zap.Error(err), zap.Int64("owner_id", agent.OwnerId), zap.String("name", agent.Name))
		return nil, xerr.ErrServerError
	}
	zlog.Info("创建 Agent", zap.Int64("agent_id", agent.Id), zap.Int64("owner_id", agent.OwnerId))
	return s.load(ctx, agent.Id, true)
}

// checkName 同一所有者下名称唯一，exceptID 为更新中的 Agent
func (s *agentServiceImpl) checkName(ctx context.Context, ownerID int64, name string, exceptID int64) error {
	existing, err := s.repo.GetAgentByOwnerAndName(ctx, ownerID, name)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		zlog.Error("查询 Agent 名称失败", zap.Error(err), zap.Int64("owner_id", ownerID))
		return xerr.ErrServerError
	}
	if existing.Id == exceptID {
		return nil
	}
	return ErrAgentNameTaken
}

func (s *agentServiceImpl) load(ctx context.Context, id int64, withTools bool) (*entity.Agent, error) {
	agent, err := s.repo.GetAgentById(ctx, id, withTools)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAgentNotFound
	}
	if err != nil {
		zlog.Error("查询 Agent 失败", zap.Error(err), zap.Int64("agent_id", id))
		return nil, xerr.ErrServerError
	}
	return agent, nil
}

func (s *agentServiceImpl) loadVisible(ctx context.Context, id int64, withTools bool, who caller.Caller) (*entity.Agent, error) {
	agent, err := s.load(ctx, id, withTools)
	if err != nil {
		return nil, err
	}
	if !agent.VisibleTo(who.UserID) && !who.IsAdmin() {
		return nil, xerr.New(xerr.Forbidden, "无权限访问此Agent")
	}
	return agent, nil
}

func (s *agentServiceImpl) loadOwned(ctx context.Context, id int64, withTools bool, who caller.Caller) (*entity.Agent, error) {
	agent, err := s.load(ctx, id, withTools)
	if err != nil {
		return nil, err
	}
	if !who.CanModify(agent.OwnerId) {
		return nil, xerr.New(xerr.Forbidden, "无权限操作此Agent")
	}
	return agent, nil
}

func (s *agentServiceImpl) Get(ctx context.Context, id int64, who caller.Caller) (*entity.Agent, error) {
	return s.loadVisible(ctx, id, true, who)
}

func (s *agentServiceImpl) Update(ctx context.Context, id int64, req request.UpdateAgentRequest, who caller.Caller) (*entity.Agent, error) {
	agent, err := s.loadOwned(ctx, id, false, who)
	if err != nil {
		return nil, err
	}
	if req.Name != nil && *req.Name != agent.Name {
		if err := s.checkName(ctx, agent.OwnerId, *req.Name, agent.Id); err != nil {
			return nil, err
		}
	}
	fields := updateFields(req)
	if req.Visibility != nil && *req.Visibility == entity.VisibilityPublic && agent.PublishedAt == nil {
		fields["published_at"] = s.now()
	}
	if len(fields) > 0 {
		if err := s.repo.UpdateAgent(ctx, id, fields); err != nil {
			zlog.Error("更新 Agent 失败", zap.Error(err), zap.Int64("agent_id", id), zap.Int64("operator", who.UserID))
			return nil, xerr.ErrServerError
		}
	}
	if req.Tools != nil {
		if err := s.repo.ReplaceTools(ctx, id, buildTools(*req.Tools)); err != nil {
			zlog.Error("更新 Agent 工具失败", zap.Error(err), zap.Int64("agent_id", id))
			return nil, xerr.ErrServerError
		}
	}
	return s.load(ctx, id, true)
}

func updateFields(req request.UpdateAgentRequest) map[string]interface{} {
	fields := map[string]interface{}{}
	setStr := func(col string, v *string) {
		if v != nil {
			fields[col] = *v
		}
	}
	setFloat := func(col string, v *float64) {
		if v != nil {
			fields[col] = *v
		}
	}
	setInt := func(col string, v *int) {
		if v != nil {
			fields[col] = *v
		}
	}
	setBool := func(col string, v *bool) {
		if v != nil {
			fields[col] = *v
		}
	}
	setStr("name", req.Name)
	setStr("description", req.Description)
	setStr("type", req.Type)
	setStr("visibility", req.Visibility)
	setStr("status", req.Status)
	setStr("model_provider", req.ModelProvider)
	setStr("model_name", req.ModelName)
	setStr("model_version", req.ModelVersion)
	setStr("system_prompt", req.SystemPrompt)
	setFloat("temperature", req.Temperature)
	setInt("max_tokens", req.MaxTokens)
	setFloat("top_p", req.TopP)
	setFloat("frequency_penalty", req.FrequencyPenalty)
	setFloat("presence_penalty", req.PresencePenalty)
	setBool("enable_memory", req.EnableMemory)
	setBool("enable_tools", req.EnableTools)
	setBool("enable_web_search", req.EnableWebSearch)
	setBool("enable_code_execution", req.EnableCodeExecution)
	setInt("max_conversation_length", req.MaxConversationLength)
	setInt("memory_window", req.MemoryWindow)
	setInt("rate_limit_per_minute", req.RateLimitPerMinute)
	setInt("rate_limit_per_hour", req.RateLimitPerHour)
	setInt("rate_limit_per_day", req.RateLimitPerDay)
	return fields
}

// Delete 软删除
func (s *agentServiceImpl) Delete(ctx context.Context, id int64, who caller.Caller) error {
	if _, err := s.loadOwned(ctx, id, false, who); err != nil {
		return err
	}
	if err := s.repo.DeleteAgent(ctx, id); err != nil {
		zlog.Error("删除 Agent 失败", zap.Error(err), zap.Int64("agent_id", id), zap.Int64("operator", who.UserID))
		return xerr.ErrServerError
	}
	zlog.Info("删除 Agent", zap.Int64("agent_id", id), zap.Int64("operator", who.UserID))
	return nil
}

func (s *agentServiceImpl) List(ctx context.Context, req request.ListAgentsRequest, who caller.Caller) ([]entity.Agent, int64, error) {
	return s.list(ctx, req, who.UserID, req.OwnerID)
}

func (s *agentServiceImpl) ListMine(ctx context.Context, req request.ListAgentsRequest, who caller.Caller) ([]entity.Agent, int64, error) {
	return s.list(ctx, req, who.UserID, who.UserID)
}

func (s *agentServiceImpl) list(ctx context.Context, req request.ListAgentsRequest, viewerID, ownerID int64) ([]entity.Agent, int64, error) {
	agents, total, err := s.repo.ListAgents(ctx, repository.AgentFilter{
		ViewerID:      viewerID,
		Search:        strings.TrimSpace(req.Search),
		Type:          req.Type,
		Status:        req.Status,
		Visibility:    req.Visibility,
		OwnerID:       ownerID,
		CreatedAfter:  req.CreatedAfter,
		CreatedBefore: req.CreatedBefore,
	}, req.Offset(), req.Limit())
	if err != nil {
		zlog.Error("查询 Agent 列表失败", zap.Error(err), zap.Int64("viewer_id", viewerID))
		return nil, 0, xerr.ErrServerError
	}
	return agents, total, nil
}

// Clone 复制为调用者名下的私有 Agent
func (s *agentServiceImpl) Clone(ctx context.Context, id int64, req request.CloneAgentRequest, who caller.Caller) (*entity.Agent, error) {
	src, err := s.loadVisible(ctx, id, true, who)
	if err != nil {
		return nil, err
	}
	if err := s.checkName(ctx, who.UserID, req.Name, 0); err != nil {
		return nil, err
	}
	clone := *src
	clone.Id = 0
	clone.Name = req.Name
	clone.Description = "克隆自 " + src.Name
	if req.Description != nil {
		clone.Description = *req.Description
	}
	clone.OwnerId = who.UserID
	clone.Visibility = defaultStr(req.Visibility, entity.VisibilityPrivate)
	clone.Status = entity.StatusActive
	clone.PublishedAt, clone.LastUsedAt = nil, nil
	clone.CreatedAt, clone.UpdatedAt = time.Time{}, time.Time{}
	clone.DeletedAt = gorm.DeletedAt{}
	clone.UsageCount, clone.TotalConversations, clone.TotalMessages = 0, 0, 0
	clone.TotalTokensUsed, clone.TotalCost, clone.AverageResponseTime = 0, 0, 0
	clone.SuccessCount, clone.Rating, clone.RatingCount, clone.Revenue = 0, 0, 0, 0
	clone.Tools = make([]entity.AgentTool, 0, len(src.Tools))
	for _, t := range src.Tools {
		clone.Tools = append(clone.Tools, entity.AgentTool{ToolName: t.ToolName, ToolConfig: t.ToolConfig, IsEnabled: t.IsEnabled})
	}
	if clone.Visibility == entity.VisibilityPublic {
		now := s.now()
		clone.PublishedAt = &now
	}
	return s.create(ctx, &clone)
}

func (s *agentServiceImpl) Publish(ctx context.Context, id int64, who caller.Caller) (*entity.Agent, error) {
	return s.setVisibility(ctx, id, who, map[string]interface{}{
		"visibility":   entity.VisibilityPublic,
		"published_at": s.now(),
	})
}

func (s *agentServiceImpl) Unpublish(ctx context.Context, id int64, who caller.Caller) (*entity.Agent, error) {
	return s.setVisibility(ctx, id, who, map[string]interface{}{
		"visibility":   entity.VisibilityPrivate,
		"published_at": nil,
	})
}

func (s *agentServiceImpl) setVisibility(ctx context.Context, id int64, who caller.Caller, fields map[string]interface{}) (*entity.Agent, error) {
	if _, err := s.loadOwned(ctx, id, false, who); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateAgent(ctx, id, fields); err != nil {
		zlog.Error("修改 Agent 可见性失败", zap.Error(err), zap.Int64("agent_id", id))
		return nil, xerr.ErrServerError
	}
	zlog.Info("修改 Agent 可见性", zap.Int64("agent_id", id), zap.Any("visibility", fields["visibility"]))
	return s.load(ctx, id, true)
}

func (s *agentServiceImpl) Stats(ctx context.Context, id int64, who caller.Caller) (*respond.AgentStats, error) {
	agent, err := s.loadVisible(ctx, id, false, who)
	if err != nil {
		return nil, err
	}
	return &respond.AgentStats{
		UsageCount:          agent.UsageCount,
		TotalConversations:  agent.TotalConversations,
		TotalMessages:       agent.TotalMessages,
		TotalTokensUsed:     agent.TotalTokensUsed,
		TotalCost:           agent.TotalCost,
		AverageResponseTime: agent.AverageResponseTime,
		SuccessRate:         agent.SuccessRate,
		LastUsedAt:          agent.LastUsedAt,
	}, nil
}

// Export 仅导出已启用的工具
func (s *agentServiceImpl) Export(ctx context.Context, id int64, who caller.Caller) (*request.AgentExport, error) {
	agent, err := s.loadOwned(ctx, id, true, who)
	if err != nil {
		return nil, err
	}
	tools := make([]string, 0, len(agent.Tools))
	for _, t := range agent.Tools {
		if t.IsEnabled {
			tools = append(tools, t.ToolName)
		}
	}
	return &request.AgentExport{
		Name:                agent.Name,
		Description:         agent.Description,
		Type:                agent.Type,
		ModelProvider:       agent.ModelProvider,
		ModelName:           agent.ModelName,
		ModelVersion:        agent.ModelVersion,
		SystemPrompt:        agent.SystemPrompt,
		Temperature:         agent.Temperature,
		MaxTokens:           agent.MaxTokens,
		TopP:                agent.TopP,
		FrequencyPenalty:    agent.FrequencyPenalty,
		PresencePenalty:     agent.PresencePenalty,
		EnableMemory:        agent.EnableMemory,
		MemoryWindow:        agent.MemoryWindow,
		EnableTools:         agent.EnableTools,
		EnableWebSearch:     agent.EnableWebSearch,
		EnableCodeExecution: agent.EnableCodeExecution,
		Tools:               tools,
		RateLimits: request.RateLimits{
			PerMinute: agent.RateLimitPerMinute,
			PerHour:   agent.RateLimitPerHour,
			PerDay:    agent.RateLimitPerDay,
		},
		ExportedAt: s.now(),
		Version:    exportVersion,
	}, nil
}

// Import 导入为私有 Agent，overwrite 时覆盖同名 Agent 的配置
func (s *agentServiceImpl) Import(ctx context.Context, req request.ImportAgentRequest, who caller.Caller) (*entity.Agent, error) {
	d := req.Data
	existing, err := s.repo.GetAgentByOwnerAndName(ctx, who.UserID, d.Name)
	switch {
	case err == nil && !req.Overwrite:
		return nil, ErrAgentNameTaken
	case err == nil:
		return s.overwrite(ctx, existing.Id, d, who)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		zlog.Error("查询 Agent 名称失败", zap.Error(err), zap.Int64("owner_id", who.UserID))
		return nil, xerr.ErrServerError
	}

	create := request.CreateAgentRequest{
		Name:                d.Name,
		Description:         d.Description,
		Type:                d.Type,
		Visibility:          entity.VisibilityPrivate,
		ModelProvider:       d.ModelProvider,
		ModelName:           d.ModelName,
		ModelVersion:        d.ModelVersion,
		SystemPrompt:        d.SystemPrompt,
		Temperature:         &d.Temperature,
		MaxTokens:           positive(d.MaxTokens),
		TopP:                &d.TopP,
		FrequencyPenalty:    &d.FrequencyPenalty,
		PresencePenalty:     &d.PresencePenalty,
		EnableMemory:        &d.EnableMemory,
		EnableTools:         d.EnableTools,
		EnableWebSearch:     d.EnableWebSearch,
		EnableCodeExecution: d.EnableCodeExecution,
		MemoryWindow:        positive(d.MemoryWindow),
		RateLimitPerMinute:  positive(d.RateLimits.PerMinute),
		RateLimitPerHour:    positive(d.RateLimits.PerHour),
		RateLimitPerDay:     positive(d.RateLimits.PerDay),
		Tools:               d.Tools,
	}
	agent, err := s.Create(ctx, create, who)
	if err == nil {
		zlog.Info("导入 Agent", zap.Int64("agent_id", agent.Id), zap.Int64("owner_id", who.UserID))
	}
	return agent, err
}

func (s *agentServiceImpl) overwrite(ctx context.Context, id int64, d request.AgentExport, who caller.Caller) (*entity.Agent, error) {
	fields := map[string]interface{}{
		"description":           d.Description,
		"model_provider":        d.ModelProvider,
		"model_name":            d.ModelName,
		"model_version":         d.ModelVersion,
		"system_prompt":         d.SystemPrompt,
		"temperature":           d.Temperature,
		"top_p":                 d.TopP,
		"frequency_penalty":     d.FrequencyPenalty,
		"presence_penalty":      d.PresencePenalty,
		"enable_memory":         d.EnableMemory,
		"enable_tools":          d.EnableTools,
		"enable_web_search":     d.EnableWebSearch,
		"enable_code_execution": d.EnableCodeExecution,
	}
	if d.Type != "" {
		fields["type"] = d.Type
	}
	if d.MaxTokens > 0 {
		fields["max_tokens"] = d.MaxTokens
	}
	if d.MemoryWindow > 0 {
		fields["memory_window"] = d.MemoryWindow
	}
	if d.RateLimits.PerMinute > 0 {
		fields["rate_limit_per_minute"] = d.RateLimits.PerMinute
	}
	if d.RateLimits.PerHour > 0 {
		fields["rate_limit_per_hour"] = d.RateLimits.PerHour
	}
	if d.RateLimits.PerDay > 0 {
		fields["rate_limit_per_day"] = d.RateLimits.PerDay
	}
	if err := s.repo.UpdateAgent(ctx, id, fields); err != nil {
		zlog.Error("覆盖导入 Agent 失败", zap.Error(err), zap.Int64("agent_id", id))
		return nil, xerr.ErrServerError
	}
	if err := s.repo.ReplaceTools(ctx, id, buildTools(d.Tools)); err != nil {
		zlog.Error("覆盖导入 Agent 工具失败", zap.Error(err), zap.Int64("agent_id", id))
		return nil, xerr.ErrServerError
	}
	zlog.Info("覆盖导入 Agent", zap.Int64("agent_id", id), zap.Int64("owner_id", who.UserID))
	return s.load(ctx, id, true)
}

func (s *agentServiceImpl) ToggleTool(ctx context.Context, id int64, toolName string, enabled bool, who caller.Caller) error {
	if _, err := s.loadOwned(ctx, id, false, who); err != nil {
		return err
	}
	ok, err := s.repo.SetToolEnabled(ctx, id, toolName, enabled)
	if err != nil {
		zlog.Error("切换工具状态失败", zap.Error(err), zap.Int64("agent_id", id), zap.String("tool", toolName))
		return xerr.ErrServerError
	}
	if !ok {
		return ErrToolNotFound
	}
	return nil
}

func (s *agentServiceImpl) RecordUsage(ctx context.Context, id int64, u repository.Usage) error {
	if err := s.repo.AddUsage(ctx, id, u, s.now()); err != nil {
		zlog.Error("记录 Agent 用量失败", zap.Error(err), zap.Int64("agent_id", id))
		return xerr.ErrServerError
	}
	return nil
}

func (s *agentServiceImpl) CountByOwner(ctx context.Context, ownerID int64) (int64, int64, error) {
	return s.repo.CountByOwner(ctx, ownerID)
}

func buildTools(names []string) []entity.AgentTool {
	tools := make([]entity.AgentTool, 0, len(names))
	seen := map[string]struct{}{}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		tools = append(tools, entity.AgentTool{ToolName: n, IsEnabled: true})
	}
	return tools
}

func defaultStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func positive(v int) *int {
	if v <= 0 {
		return nil
	}
	return &v
}
