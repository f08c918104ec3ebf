package request

import "AgentPedia/pkg/pagination"

type CreateConversationRequest struct {
	AgentId int64  `json:"agent_id" binding:"required,min=1"`
	Title   string `json:"title" binding:"max=200"`
}

type ListConversationsRequest struct {
	pagination.Query
	AgentId int64  `form:"agent_id" binding:"omitempty,min=1"`
	Status  string `form:"status" binding:"omitempty,oneof=active archived deleted"`
	Search  string `form:"search"`
}

type UpdateConversationRequest struct {
	Title  *string `json:"title" binding:"omitempty,max=200"`
	Status *string `json:"status" binding:"omitempty,oneof=active archived"`
}

type CreateMessageRequest struct {
	Role        string                   `json:"role" binding:"required,oneof=user assistant system"`
	Content     string                   `json:"content" binding:"required,min=1,max=50000"`
	Type        string                   `json:"type" binding:"omitempty,oneof=text image file code"`
	Attachments []string                 `json:"attachments"`
	ToolCalls   []map[string]interface{} `json:"tool_calls"`
	ToolResults []map[string]interface{} `json:"tool_results"`
}

type ListMessagesRequest struct {
	pagination.Query
}

type UpdateMessageRequest struct {
	Content string `json:"content" binding:"required,min=1,max=50000"`
}

type ChatRequest struct {
	Message     string   `json:"message" binding:"required,min=1,max=50000"`
	Temperature *float64 `json:"temperature" binding:"omitempty,min=0,max=2"`
	MaxTokens   *int     `json:"max_tokens" binding:"omitempty,min=1,max=8192"`
}
