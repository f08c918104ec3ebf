package request

import (
	"AgentPedia/internal/modules/catalog/domain/entity"
	"AgentPedia/pkg/pagination"
)

type CreateCatalogAgentRequest struct {
	Slug            string                  `json:"slug" binding:"required,max=100"`
	Name            entity.MultilingualText `json:"name" binding:"required"`
	Description     entity.Description      `json:"description"`
	Features        map[string][]string     `json:"features"`
	LogoURL         string                  `json:"logo_url" binding:"omitempty,url"`
	OfficialURL     string                  `json:"official_url" binding:"omitempty,url"`
	DevelopmentTeam entity.DevelopmentTeam  `json:"development_team"`
	TechnicalStack  entity.TechnicalStack   `json:"technical_stack"`
	FundingInfo     *entity.FundingInfo     `json:"funding_info"`
	BusinessInfo    *entity.BusinessInfo    `json:"business_info"`
	Status          string                  `json:"status" binding:"omitempty,oneof=concept alpha beta released discontinued"`
	Tags            []string                `json:"tags"`
	RelatedAgents   []string                `json:"related_agents"`
	Metrics         entity.Metrics          `json:"metrics"`
	Timeline        []entity.TimelineEvent  `json:"timeline"`
}

// UpdateCatalogAgentRequest 只覆盖传入的顶层字段
type UpdateCatalogAgentRequest struct {
	Slug            *string                  `json:"slug" binding:"omitempty,max=100"`
	Name            *entity.MultilingualText `json:"name"`
	Description     *entity.Description      `json:"description"`
	Features        *map[string][]string     `json:"features"`
	LogoURL         *string                  `json:"logo_url"`
	OfficialURL     *string                  `json:"official_url"`
	DevelopmentTeam *entity.DevelopmentTeam  `json:"development_team"`
	TechnicalStack  *entity.TechnicalStack   `json:"technical_stack"`
	FundingInfo     *entity.FundingInfo      `json:"funding_info"`
	BusinessInfo    *entity.BusinessInfo     `json:"business_info"`
	Status          *string                  `json:"status" binding:"omitempty,oneof=concept alpha beta released discontinued"`
	Tags            *[]string                `json:"tags"`
	RelatedAgents   *[]string                `json:"related_agents"`
	Metrics         *entity.Metrics          `json:"metrics"`
	Timeline        *[]entity.TimelineEvent  `json:"timeline"`
	IsVerified      *bool                    `json:"is_verified"`
}

type ListCatalogAgentsRequest struct {
	pagination.Query
	Status         string `form:"status" binding:"omitempty,oneof=concept alpha beta released discontinued"`
	Tags           string `form:"tags"`
	TechnicalStack string `form:"technical_stack"`
	Search         string `form:"search"`
	Language       string `form:"language,default=zh"`
	SortBy         string `form:"sort_by,default=created_at" binding:"oneof=created_at updated_at"`
	SortOrder      string `form:"sort_order,default=desc" binding:"oneof=asc desc"`
}
