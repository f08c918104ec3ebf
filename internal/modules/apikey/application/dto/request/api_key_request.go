package request

import (
	"time"

	"AgentPedia/pkg/pagination"
)

type CreateAPIKeyRequest struct {
	Name               string     `json:"name" binding:"required,min=1,max=100"`
	Description        string     `json:"description" binding:"max=500"`
	Scopes             []string   `json:"scopes" binding:"omitempty,dive,oneof=read write admin"`
	RateLimitPerMinute *int       `json:"rate_limit_per_minute" binding:"omitempty,min=1,max=10000"`
	RateLimitPerHour   *int       `json:"rate_limit_per_hour" binding:"omitempty,min=1,max=100000"`
	RateLimitPerDay    *int       `json:"rate_limit_per_day" binding:"omitempty,min=1,max=1000000"`
	ExpiresAt          *time.Time `json:"expires_at"`
}

type UpdateAPIKeyRequest struct {
	Name               *string    `json:"name" binding:"omitempty,min=1,max=100"`
	Description        *string    `json:"description" binding:"omitempty,max=500"`
	Scopes             *[]string  `json:"scopes" binding:"omitempty,dive,oneof=read write admin"`
	RateLimitPerMinute *int       `json:"rate_limit_per_minute" binding:"omitempty,min=1,max=10000"`
	RateLimitPerHour   *int       `json:"rate_limit_per_hour" binding:"omitempty,min=1,max=100000"`
	RateLimitPerDay    *int       `json:"rate_limit_per_day" binding:"omitempty,min=1,max=1000000"`
	ExpiresAt          *time.Time `json:"expires_at"`
}

type ListAPIKeysRequest struct {
	pagination.Query
	Status string `form:"status" binding:"omitempty,oneof=active inactive revoked"`
}

type ExtendAPIKeyRequest struct {
	Days int `json:"days" binding:"required,min=1,max=3650"`
}
