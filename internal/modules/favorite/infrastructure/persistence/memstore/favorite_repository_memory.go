// Package memstore 进程内收藏存储，未配置 MongoDB 时使用
package memstore

import (
	"context"
	"sort"
	"sync"

	"AgentPedia/internal/modules/favorite/domain/entity"
	"AgentPedia/internal/modules/favorite/domain/repository"
)

type favoriteRepositoryMemory struct {
	mu   sync.RWMutex
	favs map[string]entity.Favorite
}

func NewFavoriteRepository() repository.FavoriteRepository {
	return &favoriteRepositoryMemory{favs: map[string]entity.Favorite{}}
}

func (r *favoriteRepositoryMemory) EnsureIndexes(ctx context.Context) error { return nil }

func (r *favoriteRepositoryMemory) Add(ctx context.Context, fav *entity.Favorite) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := entity.KeyOf(fav.UserID, fav.AgentID)
	if _, ok := r.favs[k]; ok {
		return false, nil
	}
	r.favs[k] = *fav
	return true, nil
}

func (r *favoriteRepositoryMemory) Remove(ctx context.Context, userID int64, agentID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := entity.KeyOf(userID, agentID)
	if _, ok := r.favs[k]; !ok {
		return false, nil
	}
	delete(r.favs, k)
	return true, nil
}

func (r *favoriteRepositoryMemory) List(ctx context.Context, userID int64, offset, limit int64) ([]entity.Favorite, int64, error) {
	r.mu.RLock()
	mine := make([]entity.Favorite, 0)
	for _, f := range r.favs {
		if f.UserID == userID {
			mine = append(mine, f)
		}
	}
	r.mu.RUnlock()

	sort.Slice(mine, func(i, j int) bool {
		if !mine[i].CreatedAt.Equal(mine[j].CreatedAt) {
			return mine[i].CreatedAt.After(mine[j].CreatedAt)
		}
		return mine[i].ID < mine[j].ID
	})
	total := int64(len(mine))
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return mine[offset:end], total, nil
}

func (r *favoriteRepositoryMemory) Exists(ctx context.Context, userID int64, agentID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.favs[entity.KeyOf(userID, agentID)]
	return ok, nil
}

func (r *favoriteRepositoryMemory) ExistsMany(ctx context.Context, userID int64, agentIDs []string) (map[string]bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]bool, len(agentIDs))
	for _, id := range agentIDs {
		if _, ok := r.favs[entity.KeyOf(userID, id)]; ok {
			out[id] = true
		}
	}
	return out, nil
}
