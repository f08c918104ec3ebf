package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"AgentPedia/internal/modules/catalog/application/dto/request"
	"AgentPedia/internal/modules/catalog/domain/entity"
	"AgentPedia/internal/modules/catalog/domain/repository"
	"AgentPedia/pkg/caller"
	"AgentPedia/pkg/util"
	"AgentPedia/pkg/xerr"
	"AgentPedia/pkg/zlog"

	"go.uber.org/zap"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ChangeNotifier 目录变更通知，用于同步搜索索引
type ChangeNotifier interface {
	Notify(ctx context.Context, ev entity.ChangeEvent) error
}

// NotifierFunc 函数适配 ChangeNotifier
type NotifierFunc func(ctx context.Context, ev entity.ChangeEvent) error

func (f NotifierFunc) Notify(ctx context.Context, ev entity.ChangeEvent) error {
	return f(ctx, ev)
}

type CatalogService interface {
	Create(ctx context.Context, req request.CreateCatalogAgentRequest, c caller.Caller) (*entity.CatalogAgent, error)
	Get(ctx context.Context, id string) (*entity.CatalogAgent, error)
	GetBySlug(ctx context.Context, slug string) (*entity.CatalogAgent, error)
	Update(ctx context.Context, id string, req request.UpdateCatalogAgentRequest, c caller.Caller) (*entity.CatalogAgent, error)
	Delete(ctx context.Context, id string, c caller.Caller) error
	List(ctx context.Context, req request.ListCatalogAgentsRequest) ([]entity.CatalogAgent, int64, error)
	Related(ctx context.Context, id string, limit int) ([]entity.CatalogAgent, error)
}

type catalogServiceImpl struct {
	repo     repository.CatalogRepository
	notifier ChangeNotifier
}

// NewCatalogService notifier 可为 nil
func NewCatalogService(repo repository.CatalogRepository, notifier ChangeNotifier) CatalogService {
	return &catalogServiceImpl{repo: repo, notifier: notifier}
}

func (s *catalogServiceImpl) Create(ctx context.Context, req request.CreateCatalogAgentRequest, c caller.Caller) (*entity.CatalogAgent, error) {
	slug := strings.TrimSpace(req.Slug)
	if !slugPattern.MatchString(slug) {
		return nil, xerr.Paramf("slug 只能包含小写字母、数字和连字符")
	}
	if strings.TrimSpace(req.Name.Get("")) == "" {
		return nil, xerr.Paramf("name 至少需要一种语言")
	}
	status := req.Status
	if status == "" {
		status = entity.StatusConcept
	}

	now := time.Now().UTC()
	agent := &entity.CatalogAgent{
		ID:              util.GenerateUUID(),
		Slug:            slug,
		Name:            req.Name,
		Description:     req.Description,
		Features:        req.Features,
		LogoURL:         req.LogoURL,
		OfficialURL:     req.OfficialURL,
		DevelopmentTeam: req.DevelopmentTeam,
		TechnicalStack:  req.TechnicalStack,
		FundingInfo:     req.FundingInfo,
		BusinessInfo:    req.BusinessInfo,
		Status:          status,
		Tags:            nonNil(req.Tags),
		RelatedAgents:   req.RelatedAgents,
		Metrics:         req.Metrics,
		Timeline:        req.Timeline,
		CreatedBy:       c.UserID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, agent); err != nil {
		if errors.Is(err, repository.ErrDuplicateSlug) {
			return nil, xerr.Conflictf("slug %s 已存在", slug)
		}
		zlog.Error("创建目录 Agent 失败", zap.Error(err), zap.Int64("user_id", c.UserID), zap.String("slug", slug))
		return nil, xerr.ErrServerError
	}
	s.notify(ctx, entity.ChangeUpsert, agent.ID)
	return agent, nil
}

func (s *catalogServiceImpl) Get(ctx context.Context, id string) (*entity.CatalogAgent, error) {
	agent, err := s.repo.GetByID(ctx, id)
	return agent, s.mapGetErr(err, "id", id)
}

func (s *catalogServiceImpl) GetBySlug(ctx context.Context, slug string) (*entity.CatalogAgent, error) {
	agent, err := s.repo.GetBySlug(ctx, slug)
	return agent, s.mapGetErr(err, "slug", slug)
}

func (s *catalogServiceImpl) mapGetErr(err error, key, val string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return xerr.NotFoundf("Agent不存在")
	}
	zlog.Error("查询目录 Agent 失败", zap.Error(err), zap.String(key, val))
	return xerr.ErrServerError
}

func (s *catalogServiceImpl) Update(ctx context.Context, id string, req request.UpdateCatalogAgentRequest, c caller.Caller) (*entity.CatalogAgent, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.CanModify(current.CreatedBy) {
		return nil, xerr.New(xerr.Forbidden, "无权修改该Agent")
	}
	if req.IsVerified != nil && !c.IsAdmin() {
		return nil, xerr.New(xerr.Forbidden, "仅管理员可以设置认证状态")
	}

	fields, err := updateFields(req)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return current, nil
	}

	agent, err := s.repo.Update(ctx, id, fields)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, xerr.NotFoundf("Agent不存在")
		case errors.Is(err, repository.ErrDuplicateSlug):
			return nil, xerr.Conflictf("slug 已存在")
		}
		zlog.Error("更新目录 Agent 失败", zap.Error(err), zap.Int64("user_id", c.UserID), zap.String("agent_id", id))
		return nil, xerr.ErrServerError
	}
	s.notify(ctx, entity.ChangeUpsert, id)
	return agent, nil
}

func updateFields(req request.UpdateCatalogAgentRequest) (map[string]interface{}, error) {
	f := map[string]interface{}{}
	if req.Slug != nil {
		slug := strings.TrimSpace(*req.Slug)
		if !slugPattern.MatchString(slug) {
			return nil, xerr.Paramf("slug 只能包含小写字母、数字和连字符")
		}
		f["slug"] = slug
	}
	if req.Name != nil {
		if strings.TrimSpace(req.Name.Get("")) == "" {
			return nil, xerr.Paramf("name 至少需要一种语言")
		}
		f["name"] = *req.Name
	}
	if req.Description != nil {
		f["description"] = *req.Description
	}
	if req.Features != nil {
		f["features"] = *req.Features
	}
	if req.LogoURL != nil {
		f["logo_url"] = *req.LogoURL
	}
	if req.OfficialURL != nil {
		f["official_url"] = *req.OfficialURL
	}
	if req.DevelopmentTeam != nil {
		f["development_team"] = *req.DevelopmentTeam
	}
	if req.TechnicalStack != nil {
		f["technical_stack"] = *req.TechnicalStack
	}
	if req.FundingInfo != nil {
		f["funding_info"] = req.FundingInfo
	}
	if req.BusinessInfo != nil {
		f["business_info"] = req.BusinessInfo
	}
	if req.Status != nil {
		f["status"] = *req.Status
	}
	if req.Tags != nil {
		f["tags"] = nonNil(*req.Tags)
	}
	if req.RelatedAgents != nil {
		f["related_agents"] = *req.RelatedAgents
	}
	if req.Metrics != nil {
		f["metrics"] = *req.Metrics
	}
	if req.Timeline != nil {
		f["timeline"] = *req.Timeline
	}
	if req.IsVerified != nil {
		f["is_verified"] = *req.IsVerified
	}
	return f, nil
}

func (s *catalogServiceImpl) Delete(ctx context.Context, id string, c caller.Caller) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !c.CanModify(current.CreatedBy) {
		return xerr.New(xerr.Forbidden, "无权删除该Agent")
	}
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		zlog.Error("删除目录 Agent 失败", zap.Error(err), zap.Int64("user_id", c.UserID), zap.String("agent_id", id))
		return xerr.ErrServerError
	}
	if !ok {
		return xerr.NotFoundf("Agent不存在")
	}
	s.notify(ctx, entity.ChangeDelete, id)
	return nil
}

func (s *catalogServiceImpl) List(ctx context.Context, req request.ListCatalogAgentsRequest) ([]entity.CatalogAgent, int64, error) {
	q := repository.AgentQuery{
		Text:           strings.TrimSpace(req.Search),
		Language:       req.Language,
		Status:         req.Status,
		Tags:           util.SplitCSV(req.Tags),
		TechnicalStack: util.SplitCSV(req.TechnicalStack),
		SortBy:         req.SortBy,
		SortDesc:       req.SortOrder != "asc",
		Offset:         int64(req.Offset()),
		Limit:          int64(req.Limit()),
	}
	if q.SortBy == "" {
		q.SortBy = repository.SortCreatedAt
	}
	items, total, err := s.repo.Find(ctx, q)
	if err != nil {
		zlog.Error("查询目录 Agent 列表失败", zap.Error(err))
		return nil, 0, xerr.ErrServerError
	}
	return items, total, nil
}

func (s *catalogServiceImpl) Related(ctx context.Context, id string, limit int) ([]entity.CatalogAgent, error) {
	agent, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 20 {
		limit = 5
	}
	items, err := s.repo.Related(ctx, agent, limit)
	if err != nil {
		zlog.Error("查询相关 Agent 失败", zap.Error(err), zap.String("agent_id", id))
		return nil, xerr.ErrServerError
	}
	return items, nil
}

// notify 索引同步失败只记录日志，不影响主流程
func (s *catalogServiceImpl) notify(ctx context.Context, op entity.ChangeOp, id string) {
	if s.notifier == nil {
		return
	}
	ev := entity.ChangeEvent{Op: op, AgentID: id, Timestamp: time.Now().UTC()}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		zlog.Warn("目录变更通知失败", zap.Error(err), zap.String("agent_id", id), zap.String("op", string(op)))
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
