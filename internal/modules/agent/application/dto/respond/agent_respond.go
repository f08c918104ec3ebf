package respond

import "time"

type AgentStats struct {
	UsageCount          int64      `json:"usage_count"`
	TotalConversations  int64      `json:"total_conversations"`
	TotalMessages       int64      `json:"total_messages"`
	TotalTokensUsed     int64      `json:"total_tokens_used"`
	TotalCost           float64    `json:"total_cost"`
	AverageResponseTime float64    `json:"average_response_time"`
	SuccessRate         float64    `json:"success_rate"`
	LastUsedAt          *time.Time `json:"last_used_at"`
}
