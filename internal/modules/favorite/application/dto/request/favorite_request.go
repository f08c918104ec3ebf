package request

import "AgentPedia/pkg/pagination"

type AddFavoriteRequest struct {
	AgentID string `json:"agent_id" binding:"required,max=64"`
}

type ListFavoritesRequest struct {
	pagination.Query
}

type CheckFavoritesRequest struct {
	AgentIDs string `form:"agent_ids" binding:"required"`
}
