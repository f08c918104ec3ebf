package request

import (
	"time"

	"AgentPedia/pkg/pagination"
)

type CreateAgentRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=100"`
	Description string `json:"description" binding:"max=1000"`
	Type        string `json:"type" binding:"omitempty,oneof=chatbot assistant generator analyzer translator custom"`
	Visibility  string `json:"visibility" binding:"omitempty,oneof=public private unlisted"`

	ModelProvider    string   `json:"model_provider" binding:"required,oneof=openai azure_openai ark anthropic google local custom"`
	ModelName        string   `json:"model_name" binding:"required,max=100"`
	ModelVersion     string   `json:"model_version" binding:"max=50"`
	SystemPrompt     string   `json:"system_prompt" binding:"max=5000"`
	Temperature      *float64 `json:"temperature" binding:"omitempty,min=0,max=2"`
	MaxTokens        *int     `json:"max_tokens" binding:"omitempty,min=1,max=32000"`
	TopP             *float64 `json:"top_p" binding:"omitempty,min=0,max=1"`
	FrequencyPenalty *float64 `json:"frequency_penalty" binding:"omitempty,min=-2,max=2"`
	PresencePenalty  *float64 `json:"presence_penalty" binding:"omitempty,min=-2,max=2"`

	EnableMemory          *bool `json:"enable_memory"`
	EnableTools           bool  `json:"enable_tools"`
	EnableWebSearch       bool  `json:"enable_web_search"`
	EnableCodeExecution   bool  `json:"enable_code_execution"`
	MaxConversationLength *int  `json:"max_conversation_length" binding:"omitempty,min=1,max=1000"`
	MemoryWindow          *int  `json:"memory_window" binding:"omitempty,min=1,max=100"`
	RateLimitPerMinute    *int  `json:"rate_limit_per_minute" binding:"omitempty,min=1,max=1000"`
	RateLimitPerHour      *int  `json:"rate_limit_per_hour" binding:"omitempty,min=1,max=10000"`
	RateLimitPerDay       *int  `json:"rate_limit_per_day" binding:"omitempty,min=1,max=100000"`

	Tools []string `json:"tools" binding:"omitempty,dive,min=1,max=100"`
}

// UpdateAgentRequest 仅修改传入字段，Tools 非 nil 时整体替换
type UpdateAgentRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=100"`
	Description *string `json:"description" binding:"omitempty,max=1000"`
	Type        *string `json:"type" binding:"omitempty,oneof=chatbot assistant generator analyzer translator custom"`
	Visibility  *string `json:"visibility" binding:"omitempty,oneof=public private unlisted"`
	Status      *string `json:"status" binding:"omitempty,oneof=active inactive draft archived"`

	ModelProvider    *string  `json:"model_provider" binding:"omitempty,oneof=openai azure_openai ark anthropic google local custom"`
	ModelName        *string  `json:"model_name" binding:"omitempty,max=100"`
	ModelVersion     *string  `json:"model_version" binding:"omitempty,max=50"`
	SystemPrompt     *string  `json:"system_prompt" binding:"omitempty,max=5000"`
	Temperature      *float64 `json:"temperature" binding:"omitempty,min=0,max=2"`
	MaxTokens        *int     `json:"max_tokens" binding:"omitempty,min=1,max=32000"`
	TopP             *float64 `json:"top_p" binding:"omitempty,min=0,max=1"`
	FrequencyPenalty *float64 `json:"frequency_penalty" binding:"omitempty,min=-2,max=2"`
	PresencePenalty  *float64 `json:"presence_penalty" binding:"omitempty,min=-2,max=2"`

	EnableMemory          *bool `json:"enable_memory"`
	EnableTools           *bool `json:"enable_tools"`
	EnableWebSearch       *bool `json:"enable_web_search"`
	EnableCodeExecution   *bool `json:"enable_code_execution"`
	MaxConversationLength *int  `json:"max_conversation_length" binding:"omitempty,min=1,max=1000"`
	MemoryWindow          *int  `json:"memory_window" binding:"omitempty,min=1,max=100"`
	RateLimitPerMinute    *int  `json:"rate_limit_per_minute" binding:"omitempty,min=1,max=1000"`
	RateLimitPerHour      *int  `json:"rate_limit_per_hour" binding:"omitempty,min=1,max=10000"`
	RateLimitPerDay       *int  `json:"rate_limit_per_day" binding:"omitempty,min=1,max=100000"`

	Tools *[]string `json:"tools"`
}

type ListAgentsRequest struct {
	pagination.Query
	Search        string     `form:"search"`
	Type          string     `form:"type" binding:"omitempty,oneof=chatbot assistant generator analyzer translator custom"`
	Status        string     `form:"status" binding:"omitempty,oneof=active inactive draft archived"`
	Visibility    string     `form:"visibility" binding:"omitempty,oneof=public private unlisted"`
	OwnerID       int64      `form:"owner_id" binding:"omitempty,min=1"`
	CreatedAfter  *time.Time `form:"created_after" time_format:"2006-01-02"`
	CreatedBefore *time.Time `form:"created_before" time_format:"2006-01-02"`
}

type CloneAgentRequest struct {
	Name        string  `json:"name" binding:"required,min=1,max=100"`
	Description *string `json:"description" binding:"omitempty,max=1000"`
	Visibility  string  `json:"visibility" binding:"omitempty,oneof=public private unlisted"`
}

type ImportAgentRequest struct {
	Data      AgentExport `json:"data" binding:"required"`
	Overwrite bool        `json:"overwrite"`
}

type ToggleToolRequest struct {
	IsEnabled *bool `json:"is_enabled" binding:"required"`
}

type RateLimits struct {
	PerMinute int `json:"per_minute"`
	PerHour   int `json:"per_hour"`
	PerDay    int `json:"per_day"`
}

// AgentExport 导出/导入共用的配置快照
type AgentExport struct {
	Name                string     `json:"name" binding:"required,min=1,max=100"`
	Description         string     `json:"description"`
	Type                string     `json:"type"`
	ModelProvider       string     `json:"model_provider" binding:"required"`
	ModelName           string     `json:"model_name" binding:"required"`
	ModelVersion        string     `json:"model_version"`
	SystemPrompt        string     `json:"system_prompt"`
	Temperature         float64    `json:"temperature"`
	MaxTokens           int        `json:"max_tokens"`
	TopP                float64    `json:"top_p"`
	FrequencyPenalty    float64    `json:"frequency_penalty"`
	PresencePenalty     float64    `json:"presence_penalty"`
	EnableMemory        bool       `json:"enable_memory"`
	MemoryWindow        int        `json:"memory_window"`
	EnableTools         bool       `json:"enable_tools"`
	EnableWebSearch     bool       `json:"enable_web_search"`
	EnableCodeExecution bool       `json:"enable_code_execution"`
	Tools               []string   `json:"tools"`
	RateLimits          RateLimits `json:"rate_limits"`
	ExportedAt          time.Time  `json:"exported_at"`
	Version             string     `json:"version"`
}
