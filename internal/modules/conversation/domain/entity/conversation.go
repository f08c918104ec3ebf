package entity

import (
	"time"

	"gorm.io/gorm"
)

const (
	StatusActive   = "active"
	StatusArchived = "archived"
	StatusDeleted  = "deleted"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

const (
	MessageText  = "text"
	MessageImage = "image"
	MessageFile  = "file"
	MessageCode  = "code"
)

// Conversation 删除只修改状态，消息随之软删除
type Conversation struct {
	Id            int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Title         string     `gorm:"column:title;type:varchar(200)" json:"title"`
	UserId        int64      `gorm:"column:user_id;not null;index" json:"user_id"`
	AgentId       int64      `gorm:"column:agent_id;not null;index" json:"agent_id"`
	Status        string     `gorm:"column:status;type:varchar(20);index" json:"status"`
	MessageCount  int64      `gorm:"column:message_count" json:"message_count"`
	TotalTokens   int64      `gorm:"column:total_tokens" json:"total_tokens"`
	TotalCost     float64    `gorm:"column:total_cost" json:"total_cost"`
	LastMessageAt *time.Time `gorm:"column:last_message_at" json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at" json:"updated_at"`

	Messages []Message `gorm:"foreignKey:ConversationId" json:"messages,omitempty"`
}

func (Conversation) TableName() string { return "conversations" }

type Message struct {
	Id             int64                    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ConversationId int64                    `gorm:"column:conversation_id;not null;index" json:"conversation_id"`
	Role           string                   `gorm:"column:role;type:varchar(20)" json:"role"`
	Content        string                   `gorm:"column:content;type:text" json:"content"`
	Type           string                   `gorm:"column:type;type:varchar(20)" json:"type"`
	Attachments    []string                 `gorm:"column:attachments;serializer:json" json:"attachments,omitempty"`
	ToolCalls      []map[string]interface{} `gorm:"column:tool_calls;serializer:json" json:"tool_calls,omitempty"`
	ToolResults    []map[string]interface{} `gorm:"column:tool_results;serializer:json" json:"tool_results,omitempty"`
	TokensUsed     int64                    `gorm:"column:tokens_used" json:"tokens_used"`
	Cost           float64                  `gorm:"column:cost" json:"cost"`
	ProcessingTime float64                  `gorm:"column:processing_time" json:"processing_time"` // 秒
	IsEdited       bool                     `gorm:"column:is_edited" json:"is_edited"`
	CreatedAt      time.Time                `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time                `gorm:"column:updated_at" json:"updated_at"`
	DeletedAt      gorm.DeletedAt           `gorm:"column:deleted_at;index" json:"-"`
}

func (Message) TableName() string { return "messages" }
