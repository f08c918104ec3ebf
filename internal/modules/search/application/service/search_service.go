package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	catalogEntity "AgentPedia/internal/modules/catalog/domain/entity"
	catalogRepository "AgentPedia/internal/modules/catalog/domain/repository"
	"AgentPedia/internal/modules/search/application/dto/request"
	"AgentPedia/internal/modules/search/application/dto/respond"
	"AgentPedia/internal/modules/search/domain/engine"
	"AgentPedia/pkg/back"
	"AgentPedia/pkg/util"
	"AgentPedia/pkg/xerr"
	"AgentPedia/pkg/zlog"

	"go.uber.org/zap"
)

var ErrSearchFailed = xerr.New(xerr.InternalServerError, "搜索失败")

// Observer 搜索指标
type Observer interface {
	ObserveSearch(backend, searchType string, fallback bool)
	ObserveReindexed(n int)
}

type SearchService interface {
	// Initialize 启动时探测一次引擎，失败后本进程内不再重试
	Initialize(ctx context.Context)
	Available() bool
	Search(ctx context.Context, req request.SearchAgentsRequest) (*respond.SearchResult, error)
	Suggestions(ctx context.Context, prefix string, size int, lang string) ([]string, error)
	Popular(ctx context.Context, limit int, timeRangeDays *int) ([]catalogEntity.CatalogAgent, error)
	ReindexAll(ctx context.Context) (int, error)
	ApplyChange(ctx context.Context, ev catalogEntity.ChangeEvent) error
}

type searchServiceImpl struct {
	engine    engine.Engine
	repo      catalogRepository.CatalogRepository
	observer  Observer
	available atomic.Bool
}

// NewSearchService eng 与 observer 可为 nil
func NewSearchService(eng engine.Engine, repo catalogRepository.CatalogRepository, observer Observer) SearchService {
	return &searchServiceImpl{engine: eng, repo: repo, observer: observer}
}

func (s *searchServiceImpl) Initialize(ctx context.Context) {
	if s.engine == nil {
		zlog.Info("搜索引擎未配置，使用文档库检索")
		return
	}
	if err := s.engine.Ping(ctx); err != nil {
		zlog.Warn("搜索引擎不可用，使用文档库检索", zap.Error(err))
		return
	}
	if err := s.engine.EnsureIndex(ctx); err != nil {
		zlog.Warn("搜索索引初始化失败，使用文档库检索", zap.Error(err))
		return
	}
	s.available.Store(true)
	zlog.Info("搜索引擎已就绪", zap.String("engine", s.engine.Name()))
}

func (s *searchServiceImpl) Available() bool {
	return s.engine != nil && s.available.Load()
}

func (s *searchServiceImpl) Search(ctx context.Context, req request.SearchAgentsRequest) (*respond.SearchResult, error) {
	start := time.Now()
	q := engine.Query{
		Text:           strings.TrimSpace(req.Q),
		Type:           engine.SearchType(req.SearchType),
		Status:         req.Status,
		Tags:           util.SplitCSV(req.Tags),
		TechnicalStack: util.SplitCSV(req.TechnicalStack),
		SortBy:         engine.SortBy(req.SortBy),
		Language:       catalogEntity.NormalizeLanguage(req.Language),
		Offset:         req.Offset(),
		Size:           req.Limit(),
	}
	if q.Type == "" {
		q.Type = engine.TypeHybrid
	}
	if q.SortBy == "" {
		q.SortBy = engine.SortRelevance
	}

	var (
		hits     *engine.Hits
		backend  string
		fallback bool
	)
	if s.Available() {
		h, err := s.engine.Search(ctx, q)
		if err == nil {
			hits, backend = h, respond.BackendElasticsearch
		} else {
			zlog.Error("搜索引擎查询失败，回退到文档库", zap.Error(err), zap.String("query", q.Text))
			fallback = true
		}
	}
	if hits == nil {
		h, err := s.fallbackSearch(ctx, q)
		if err != nil {
			zlog.Error("文档库搜索失败", zap.Error(err), zap.String("query", q.Text))
			return nil, ErrSearchFailed
		}
		hits, backend = h, respond.BackendMongoDB
	}
	if s.observer != nil {
		s.observer.ObserveSearch(backend, string(q.Type), fallback)
	}

	items := hits.Items
	if items == nil {
		items = []catalogEntity.CatalogAgent{}
	}
	return &respond.SearchResult{
		Items:       items,
		Total:       hits.Total,
		Page:        req.Page,
		Size:        q.Size,
		Pages:       back.Pages(hits.Total, q.Size),
		BackendUsed: backend,
		Query:       q.Text,
		SearchType:  string(q.Type),
		TookMs:      time.Since(start).Milliseconds(),
	}, nil
}

// fallbackSearch 不区分搜索类型，按语言在名称、描述、标签上做子串匹配
func (s *searchServiceImpl) fallbackSearch(ctx context.Context, q engine.Query) (*engine.Hits, error) {
	aq := catalogRepository.AgentQuery{
		Text:           q.Text,
		Language:       q.Language,
		Status:         q.Status,
		Tags:           q.Tags,
		TechnicalStack: q.TechnicalStack,
		Offset:         int64(q.Offset),
		Limit:          int64(q.Size),
	}
	switch q.SortBy {
	case engine.SortCreatedAt:
		aq.SortBy, aq.SortDesc = catalogRepository.SortCreatedAt, true
	case engine.SortUpdatedAt:
		aq.SortBy, aq.SortDesc = catalogRepository.SortUpdatedAt, true
	case engine.SortPopularity:
		aq.SortBy, aq.SortDesc = catalogRepository.SortPopularity, true
	default:
		// 文档库无相关度评分，relevance 按名称升序
		aq.SortBy = catalogRepository.SortName
	}
	items, total, err := s.repo.Find(ctx, aq)
	if err != nil {
		return nil, err
	}
	return &engine.Hits{Items: items, Total: total}, nil
}

func (s *searchServiceImpl) Suggestions(ctx context.Context, prefix string, size int, lang string) ([]string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return []string{}, nil
	}
	lang = catalogEntity.NormalizeLanguage(lang)
	if s.Available() {
		names, err := s.engine.Suggest(ctx, prefix, lang, size)
		if err == nil {
			return names, nil
		}
		zlog.Error("搜索建议查询失败，回退到文档库", zap.Error(err), zap.String("prefix", prefix))
	}
	names, err := s.repo.NamesWithPrefix(ctx, prefix, lang, size)
	if err != nil {
		zlog.Error("文档库搜索建议失败", zap.Error(err), zap.String("prefix", prefix))
		return nil, ErrSearchFailed
	}
	return names, nil
}

func (s *searchServiceImpl) Popular(ctx context.Context, limit int, timeRangeDays *int) ([]catalogEntity.CatalogAgent, error) {
	var since *time.Time
	if timeRangeDays != nil && *timeRangeDays > 0 {
		t := time.Now().UTC().AddDate(0, 0, -*timeRangeDays)
		since = &t
	}
	if s.Available() {
		items, err := s.engine.Popular(ctx, limit, since)
		if err == nil {
			return items, nil
		}
		zlog.Error("热门查询失败，回退到文档库", zap.Error(err))
	}
	items, _, err := s.repo.Find(ctx, catalogRepository.AgentQuery{
		CreatedAfter: since,
		SortBy:       catalogRepository.SortPopularity,
		SortDesc:     true,
		Limit:        int64(limit),
	})
	if err != nil {
		zlog.Error("文档库热门查询失败", zap.Error(err))
		return nil, ErrSearchFailed
	}
	return items, nil
}

func (s *searchServiceImpl) ReindexAll(ctx context.Context) (int, error) {
	if !s.Available() {
		return 0, xerr.New(xerr.ServiceUnavailable, "搜索引擎不可用")
	}
	indexed := 0
	err := s.repo.Iterate(ctx, func(agent *catalogEntity.CatalogAgent) error {
		if err := s.engine.Index(ctx, agent); err != nil {
			zlog.Error("索引 Agent 失败", zap.Error(err), zap.String("agent_id", agent.ID))
			return nil
		}
		indexed++
		return nil
	})
	if s.observer != nil {
		s.observer.ObserveReindexed(indexed)
	}
	if err != nil {
		zlog.Error("读取目录失败，重建索引中止", zap.Error(err), zap.Int("indexed", indexed))
		return indexed, xerr.New(xerr.InternalServerError, "重建索引失败")
	}
	zlog.Info("重建索引完成", zap.Int("indexed", indexed))
	return indexed, nil
}

func (s *searchServiceImpl) ApplyChange(ctx context.Context, ev catalogEntity.ChangeEvent) error {
	if !s.Available() {
		return nil
	}
	if ev.Op == catalogEntity.ChangeDelete {
		return s.engine.Delete(ctx, ev.AgentID)
	}
	agent, err := s.repo.GetByID(ctx, ev.AgentID)
	if errors.Is(err, catalogRepository.ErrNotFound) {
		return s.engine.Delete(ctx, ev.AgentID)
	}
	if err != nil {
		return err
	}
	return s.engine.Index(ctx, agent)
}
