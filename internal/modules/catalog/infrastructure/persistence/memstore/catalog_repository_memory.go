// Package memstore 进程内目录存储，未配置 MongoDB 时使用，语义与 Mongo 实现一致
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"AgentPedia/internal/modules/catalog/domain/entity"
	"AgentPedia/internal/modules/catalog/domain/repository"
)

type catalogRepositoryMemory struct {
	mu     sync.RWMutex
	agents map[string]entity.CatalogAgent
	// 非 nil 时 Find 直接返回该错误
	failFind error
}

// Store 暴露测试钩子
type Store interface {
	repository.CatalogRepository
	FailFind(err error)
}

func NewCatalogRepository() Store {
	return &catalogRepositoryMemory{agents: map[string]entity.CatalogAgent{}}
}

func (r *catalogRepositoryMemory) FailFind(err error) {
	r.mu.Lock()
	r.failFind = err
	r.mu.Unlock()
}

func (r *catalogRepositoryMemory) EnsureIndexes(ctx context.Context) error { return nil }

func (r *catalogRepositoryMemory) Create(ctx context.Context, agent *entity.CatalogAgent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.agents {
		if a.Slug == agent.Slug {
			return repository.ErrDuplicateSlug
		}
	}
	r.agents[agent.ID] = *agent
	return nil
}

func (r *catalogRepositoryMemory) GetByID(ctx context.Context, id string) (*entity.CatalogAgent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r *catalogRepositoryMemory) GetBySlug(ctx context.Context, slug string) (*entity.CatalogAgent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.agents {
		if a.Slug == slug {
			out := a
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *catalogRepositoryMemory) Update(ctx context.Context, id string, fields map[string]interface{}) (*entity.CatalogAgent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if v, ok := fields["slug"].(string); ok && v != a.Slug {
		for oid, o := range r.agents {
			if oid != id && o.Slug == v {
				return nil, repository.ErrDuplicateSlug
			}
		}
	}
	apply(&a, fields)
	a.UpdatedAt = time.Now().UTC()
	r.agents[id] = a
	return &a, nil
}

func apply(a *entity.CatalogAgent, f map[string]interface{}) {
	for k, v := range f {
		switch k {
		case "slug":
			a.Slug = v.(string)
		case "name":
			a.Name = v.(entity.MultilingualText)
		case "description":
			a.Description = v.(entity.Description)
		case "features":
			a.Features = v.(map[string][]string)
		case "logo_url":
			a.LogoURL = v.(string)
		case "official_url":
			a.OfficialURL = v.(string)
		case "development_team":
			a.DevelopmentTeam = v.(entity.DevelopmentTeam)
		case "technical_stack":
			a.TechnicalStack = v.(entity.TechnicalStack)
		case "funding_info":
			a.FundingInfo = v.(*entity.FundingInfo)
		case "business_info":
			a.BusinessInfo = v.(*entity.BusinessInfo)
		case "status":
			a.Status = v.(string)
		case "tags":
			a.Tags = v.([]string)
		case "related_agents":
			a.RelatedAgents = v.([]string)
		case "metrics":
			a.Metrics = v.(entity.Metrics)
		case "timeline":
			a.Timeline = v.([]entity.TimelineEvent)
		case "is_verified":
			a.IsVerified = v.(bool)
		}
	}
}

func (r *catalogRepositoryMemory) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[id]; !ok {
		return false, nil
	}
	delete(r.agents, id)
	return true, nil
}

func (r *catalogRepositoryMemory) Find(ctx context.Context, q repository.AgentQuery) ([]entity.CatalogAgent, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.failFind != nil {
		return nil, 0, r.failFind
	}

	matched := make([]entity.CatalogAgent, 0)
	for _, a := range r.agents {
		if matches(a, q) {
			matched = append(matched, a)
		}
	}
	sortAgents(matched, q)

	total := int64(len(matched))
	start := q.Offset
	if start > total {
		start = total
	}
	end := total
	if q.Limit > 0 && start+q.Limit < total {
		end = start + q.Limit
	}
	return matched[start:end], total, nil
}

func matches(a entity.CatalogAgent, q repository.AgentQuery) bool {
	if q.Text != "" {
		lang := entity.NormalizeLanguage(q.Language)
		needle := strings.ToLower(q.Text)
		hit := containsFold(a.Name[lang], needle) ||
			containsFold(a.Description.Short[lang], needle) ||
			containsFold(a.Description.Detailed[lang], needle)
		for _, t := range a.Tags {
			hit = hit || containsFold(t, needle)
		}
		if !hit {
			return false
		}
	}
	if q.Status != "" && a.Status != q.Status {
		return false
	}
	if len(q.Tags) > 0 && !anyOf(a.Tags, q.Tags) {
		return false
	}
	if len(q.TechnicalStack) > 0 && !anyOf(a.TechnicalStack.Keywords(), q.TechnicalStack) {
		return false
	}
	if q.CreatedAfter != nil && a.CreatedAt.Before(*q.CreatedAfter) {
		return false
	}
	return true
}

func sortAgents(items []entity.CatalogAgent, q repository.AgentQuery) {
	lang := entity.NormalizeLanguage(q.Language)
	less := func(i, j int) bool {
		a, b := items[i], items[j]
		var c int
		switch q.SortBy {
		case repository.SortPopularity:
			c = cmpFloat(a.Metrics.PopularityScore, b.Metrics.PopularityScore)
		case repository.SortCreatedAt:
			c = a.CreatedAt.Compare(b.CreatedAt)
		case repository.SortUpdatedAt:
			c = a.UpdatedAt.Compare(b.UpdatedAt)
		default:
			c = strings.Compare(a.Name[lang], b.Name[lang])
		}
		if q.SortDesc {
			c = -c
		}
		if c == 0 {
			return a.ID < b.ID
		}
		return c < 0
	}
	sort.SliceStable(items, less)
}

func (r *catalogRepositoryMemory) NamesWithPrefix(ctx context.Context, prefix, lang string, limit int) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lang = entity.NormalizeLanguage(lang)
	p := strings.ToLower(prefix)
	seen := map[string]struct{}{}
	out := make([]string, 0)
	for _, a := range r.agents {
		name := a.Name[lang]
		if name == "" || !strings.HasPrefix(strings.ToLower(name), p) {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *catalogRepositoryMemory) Related(ctx context.Context, agent *entity.CatalogAgent, limit int) ([]entity.CatalogAgent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kw := agent.TechnicalStack.Keywords()
	out := make([]entity.CatalogAgent, 0)
	for _, a := range r.agents {
		if a.ID == agent.ID {
			continue
		}
		if anyOf(a.Tags, agent.Tags) || anyOf(a.TechnicalStack.Keywords(), kw) {
			out = append(out, a)
		}
	}
	sortAgents(out, repository.AgentQuery{SortBy: repository.SortPopularity, SortDesc: true})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *catalogRepositoryMemory) Iterate(ctx context.Context, fn func(agent *entity.CatalogAgent) error) error {
	r.mu.RLock()
	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)

	for _, id := range ids {
		a, err := r.GetByID(ctx, id)
		if err != nil {
			continue
		}
		if err := fn(a); err != nil {
			return err
		}
	}
	return nil
}

func containsFold(s, lowerNeedle string) bool {
	return s != "" && strings.Contains(strings.ToLower(s), lowerNeedle)
}

func anyOf(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
