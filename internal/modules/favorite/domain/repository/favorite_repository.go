package repository

import (
	"context"

	"AgentPedia/internal/modules/favorite/domain/entity"
)

type FavoriteRepository interface {
	EnsureIndexes(ctx context.Context) error
	// Add 已存在时返回 false 且不修改原记录
	Add(ctx context.Context, fav *entity.Favorite) (bool, error)
	Remove(ctx context.Context, userID int64, agentID string) (bool, error)
	// List 按收藏时间倒序
	List(ctx context.Context, userID int64, offset, limit int64) ([]entity.Favorite, int64, error)
	Exists(ctx context.Context, userID int64, agentID string) (bool, error)
	// ExistsMany 返回已收藏的 agent_id 集合
	ExistsMany(ctx context.Context, userID int64, agentIDs []string) (map[string]bool, error)
}
