package repository

import (
	"context"

	"AgentPedia/internal/modules/conversation/domain/entity"
)

type ConversationFilter struct {
	UserID  int64
	AgentID int64
	Status  string
	Search  string
}

// ConversationStats 不含已删除的对话
type ConversationStats struct {
	TotalConversations  int64
	ActiveConversations int64
	TotalMessages       int64
	TotalTokens         int64
	TotalCost           float64
}

type ConversationRepository interface {
	CreateConversation(ctx context.Context, conv *entity.Conversation) error
	GetConversationById(ctx context.Context, id int64) (*entity.Conversation, error)
	// ListConversations 未指定状态时排除已删除
	ListConversations(ctx context.Context, filter ConversationFilter, offset, limit int) ([]entity.Conversation, int64, error)
	UpdateConversation(ctx context.Context, id int64, fields map[string]interface{}) error
	// MarkDeleted 状态置为 deleted 并软删除全部消息
	MarkDeleted(ctx context.Context, id int64) error
	Stats(ctx context.Context, userID int64) (*ConversationStats, error)

	// CreateMessage 同时累加对话的消息数、token 与成本
	CreateMessage(ctx context.Context, msg *entity.Message) error
	GetMessageById(ctx context.Context, id int64) (*entity.Message, error)
	ListMessages(ctx context.Context, conversationID int64, offset, limit int) ([]entity.Message, int64, error)
	// RecentMessages 最近 n 条，按时间正序返回
	RecentMessages(ctx context.Context, conversationID int64, n int) ([]entity.Message, error)
	UpdateMessage(ctx context.Context, id int64, fields map[string]interface{}) error
	DeleteMessage(ctx context.Context, msg *entity.Message) error
}
