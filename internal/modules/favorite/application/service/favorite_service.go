package service

import (
	"context"
	"time"

	"AgentPedia/internal/modules/catalog/domain/entity"
	"AgentPedia/internal/modules/favorite/application/dto/request"
	"AgentPedia/internal/modules/favorite/application/dto/respond"
	favEntity "AgentPedia/internal/modules/favorite/domain/entity"
	"AgentPedia/internal/modules/favorite/domain/repository"
	"AgentPedia/pkg/caller"
	"AgentPedia/pkg/xerr"
	"AgentPedia/pkg/zlog"

	"go.uber.org/zap"
)

const maxCheckIDs = 100

// CatalogLookup 目录服务满足该接口，不存在时返回 404 CodeError
type CatalogLookup interface {
	Get(ctx context.Context, id string) (*entity.CatalogAgent, error)
}

type FavoriteService interface {
	// Add 幂等，重复收藏时 created 为 false
	Add(ctx context.Context, agentID string, who caller.Caller) (fav *favEntity.Favorite, created bool, err error)
	Remove(ctx context.Context, agentID string, who caller.Caller) error
	List(ctx context.Context, req request.ListFavoritesRequest, who caller.Caller) ([]respond.FavoriteItem, int64, error)
	IsFavorite(ctx context.Context, agentID string, who caller.Caller) (bool, error)
	Check(ctx context.Context, agentIDs []string, who caller.Caller) ([]respond.FavoriteStatus, error)
}

type favoriteServiceImpl struct {
	repo    repository.FavoriteRepository
	catalog CatalogLookup
	now     func() time.Time
}

func NewFavoriteService(repo repository.FavoriteRepository, catalog CatalogLookup) FavoriteService {
	return &favoriteServiceImpl{
		repo:    repo,
		catalog: catalog,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *favoriteServiceImpl) Add(ctx context.Context, agentID string, who caller.Caller) (*favEntity.Favorite, bool, error) {
	if _, err := s.catalog.Get(ctx, agentID); err != nil {
		return nil, false, err
	}
	fav := &favEntity.Favorite{
		ID:        favEntity.KeyOf(who.UserID, agentID),
		UserID:    who.UserID,
		AgentID:   agentID,
		CreatedAt: s.now(),
	}
	created, err := s.repo.Add(ctx, fav)
	if err != nil {
		zlog.Error("添加收藏失败", zap.Error(err), zap.Int64("user_id", who.UserID), zap.String("agent_id", agentID))
		return nil, false, xerr.ErrServerError
	}
	return fav, created, nil
}

func (s *favoriteServiceImpl) Remove(ctx context.Context, agentID string, who caller.Caller) error {
	ok, err := s.repo.Remove(ctx, who.UserID, agentID)
	if err != nil {
		zlog.Error("取消收藏失败", zap.Error(err), zap.Int64("user_id", who.UserID), zap.String("agent_id", agentID))
		return xerr.ErrServerError
	}
	if !ok {
		return xerr.NotFoundf("未收藏该Agent")
	}
	return nil
}

func (s *favoriteServiceImpl) List(ctx context.Context, req request.ListFavoritesRequest, who caller.Caller) ([]respond.FavoriteItem, int64, error) {
	favs, total, err := s.repo.List(ctx, who.UserID, int64(req.Offset()), int64(req.Limit()))
	if err != nil {
		zlog.Error("查询收藏列表失败", zap.Error(err), zap.Int64("user_id", who.UserID))
		return nil, 0, xerr.ErrServerError
	}
	items := make([]respond.FavoriteItem, 0, len(favs))
	for _, f := range favs {
		item := respond.FavoriteItem{AgentID: f.AgentID, CreatedAt: f.CreatedAt}
		agent, err := s.catalog.Get(ctx, f.AgentID)
		switch {
		case err == nil:
			item.Agent = agent
		case xerr.CodeOf(err) == xerr.NotFound:
			// 目录中已删除
		default:
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, nil
}

func (s *favoriteServiceImpl) IsFavorite(ctx context.Context, agentID string, who caller.Caller) (bool, error) {
	ok, err := s.repo.Exists(ctx, who.UserID, agentID)
	if err != nil {
		zlog.Error("查询收藏状态失败", zap.Error(err), zap.Int64("user_id", who.UserID), zap.String("agent_id", agentID))
		return false, xerr.ErrServerError
	}
	return ok, nil
}

// Check 按入参顺序返回，重复 id 只保留一次
func (s *favoriteServiceImpl) Check(ctx context.Context, agentIDs []string, who caller.Caller) ([]respond.FavoriteStatus, error) {
	ids := dedupe(agentIDs)
	if len(ids) == 0 {
		return nil, xerr.Paramf("agent_ids 不能为空")
	}
	if len(ids) > maxCheckIDs {
		return nil, xerr.Paramf("一次最多查询 %d 个Agent", maxCheckIDs)
	}
	hit, err := s.repo.ExistsMany(ctx, who.UserID, ids)
	if err != nil {
		zlog.Error("批量查询收藏状态失败", zap.Error(err), zap.Int64("user_id", who.UserID))
		return nil, xerr.ErrServerError
	}
	out := make([]respond.FavoriteStatus, 0, len(ids))
	for _, id := range ids {
		out = append(out, respond.FavoriteStatus{AgentID: id, IsFavorite: hit[id]})
	}
	return out, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
