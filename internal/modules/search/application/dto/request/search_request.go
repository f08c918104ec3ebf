package request

import "AgentPedia/pkg/pagination"

type SearchAgentsRequest struct {
	pagination.Query
	Q              string `form:"q"`
	SearchType     string `form:"search_type,default=hybrid" binding:"oneof=keyword semantic hybrid fuzzy"`
	SortBy         string `form:"sort_by,default=relevance" binding:"oneof=relevance created_at updated_at popularity name"`
	Language       string `form:"language,default=zh"`
	Status         string `form:"status" binding:"omitempty,oneof=concept alpha beta released discontinued"`
	Tags           string `form:"tags"`
	TechnicalStack string `form:"technical_stack"`
}

type SuggestionsRequest struct {
	Q        string `form:"q" binding:"required"`
	Size     int    `form:"size,default=5" binding:"min=1,max=20"`
	Language string `form:"language,default=zh"`
}

type PopularRequest struct {
	Limit     int  `form:"limit,default=10" binding:"min=1,max=50"`
	TimeRange *int `form:"time_range" binding:"omitempty,min=1,max=365"`
}
