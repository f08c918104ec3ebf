package respond

import (
	"time"

	catalog "AgentPedia/internal/modules/catalog/domain/entity"
)

// FavoriteItem Agent 已从目录删除时为 nil
type FavoriteItem struct {
	AgentID   string                `json:"agent_id"`
	CreatedAt time.Time             `json:"created_at"`
	Agent     *catalog.CatalogAgent `json:"agent"`
}

type FavoriteStatus struct {
	AgentID    string `json:"agent_id"`
	IsFavorite bool   `json:"is_favorite"`
}
