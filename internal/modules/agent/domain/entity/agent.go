package entity

import (
	"time"

	"gorm.io/gorm"
)

const (
	TypeChatbot    = "chatbot"
	TypeAssistant  = "assistant"
	TypeGenerator  = "generator"
	TypeAnalyzer   = "analyzer"
	TypeTranslator = "translator"
	TypeCustom     = "custom"
)

const (
	VisibilityPublic   = "public"
	VisibilityPrivate  = "private"
	VisibilityUnlisted = "unlisted"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusDraft    = "draft"
	StatusArchived = "archived"
)

// 模型提供商
const (
	ProviderOpenAI      = "openai"
	ProviderAzureOpenAI = "azure_openai"
	ProviderArk         = "ark"
	ProviderAnthropic   = "anthropic"
	ProviderGoogle      = "google"
	ProviderLocal       = "local"
	ProviderCustom      = "custom"
)

type Agent struct {
	Id          int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"column:name;type:varchar(100);not null;index:idx_agent_owner_name" json:"name"`
	Description string `gorm:"column:description;type:varchar(1000)" json:"description"`
	Type        string `gorm:"column:type;type:varchar(20);index" json:"type"`
	Visibility  string `gorm:"column:visibility;type:varchar(20);index" json:"visibility"`
	Status      string `gorm:"column:status;type:varchar(20);index" json:"status"`
	OwnerId     int64  `gorm:"column:owner_id;not null;index:idx_agent_owner_name" json:"owner_id"`

	ModelProvider    string  `gorm:"column:model_provider;type:varchar(30)" json:"model_provider"`
	ModelName        string  `gorm:"column:model_name;type:varchar(100)" json:"model_name"`
	ModelVersion     string  `gorm:"column:model_version;type:varchar(50)" json:"model_version"`
	SystemPrompt     string  `gorm:"column:system_prompt;type:text" json:"system_prompt"`
	Temperature      float64 `gorm:"column:temperature" json:"temperature"`
	MaxTokens        int     `gorm:"column:max_tokens" json:"max_tokens"`
	TopP             float64 `gorm:"column:top_p" json:"top_p"`
	FrequencyPenalty float64 `gorm:"column:frequency_penalty" json:"frequency_penalty"`
	PresencePenalty  float64 `gorm:"column:presence_penalty" json:"presence_penalty"`

	EnableMemory          bool `gorm:"column:enable_memory" json:"enable_memory"`
	EnableTools           bool `gorm:"column:enable_tools" json:"enable_tools"`
	EnableWebSearch       bool `gorm:"column:enable_web_search" json:"enable_web_search"`
	EnableCodeExecution   bool `gorm:"column:enable_code_execution" json:"enable_code_execution"`
	MaxConversationLength int  `gorm:"column:max_conversation_length" json:"max_conversation_length"`
	MemoryWindow          int  `gorm:"column:memory_window" json:"memory_window"`
	RateLimitPerMinute    int  `gorm:"column:rate_limit_per_minute" json:"rate_limit_per_minute"`
	RateLimitPerHour      int  `gorm:"column:rate_limit_per_hour" json:"rate_limit_per_hour"`
	RateLimitPerDay       int  `gorm:"column:rate_limit_per_day" json:"rate_limit_per_day"`

	UsageCount          int64   `gorm:"column:usage_count" json:"usage_count"`
	TotalConversations  int64   `gorm:"column:total_conversations" json:"total_conversations"`
	TotalMessages       int64   `gorm:"column:total_messages" json:"total_messages"`
	TotalTokensUsed     int64   `gorm:"column:total_tokens_used" json:"total_tokens_used"`
	TotalCost           float64 `gorm:"column:total_cost" json:"total_cost"`
	AverageResponseTime float64 `gorm:"column:average_response_time" json:"average_response_time"`
	SuccessCount        int64   `gorm:"column:success_count" json:"-"`
	SuccessRate         float64 `gorm:"-" json:"success_rate"`
	Rating              float64 `gorm:"column:rating" json:"rating"`
	RatingCount         int64   `gorm:"column:rating_count" json:"rating_count"`
	Revenue             float64 `gorm:"column:revenue" json:"revenue"`

	Tools       []AgentTool    `gorm:"foreignKey:AgentId" json:"tools,omitempty"`
	PublishedAt *time.Time     `gorm:"column:published_at" json:"published_at,omitempty"`
	LastUsedAt  *time.Time     `gorm:"column:last_used_at" json:"last_used_at,omitempty"`
	CreatedAt   time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (Agent) TableName() string { return "agents" }

// AfterFind 成功率由累计次数推导，未使用过视为 100
func (a *Agent) AfterFind(tx *gorm.DB) error {
	a.SuccessRate = 100
	if a.UsageCount > 0 {
		a.SuccessRate = float64(a.SuccessCount) * 100 / float64(a.UsageCount)
	}
	return nil
}

// VisibleTo 私有 Agent 只对所有者可见，管理员由调用方判断
func (a *Agent) VisibleTo(userID int64) bool {
	return a.Visibility != VisibilityPrivate || a.OwnerId == userID
}

type AgentTool struct {
	Id         int64                  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	AgentId    int64                  `gorm:"column:agent_id;index;not null" json:"agent_id"`
	ToolName   string                 `gorm:"column:tool_name;type:varchar(100);not null" json:"tool_name"`
	ToolConfig map[string]interface{} `gorm:"column:tool_config;serializer:json" json:"tool_config,omitempty"`
	IsEnabled  bool                   `gorm:"column:is_enabled" json:"is_enabled"`
	CreatedAt  time.Time              `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time              `gorm:"column:updated_at" json:"updated_at"`
}

func (AgentTool) TableName() string { return "agent_tools" }
