package respond

import (
	"AgentPedia/internal/modules/user/domain/entity"
	"AgentPedia/pkg/util/myjwt"
)

type LoginRespond struct {
	*myjwt.TokenPair
	User *entity.UserInfo `json:"user"`
}

type UserStats struct {
	TotalAgents        int64   `json:"total_agents"`
	ActiveAgents       int64   `json:"active_agents"`
	TotalConversations int64   `json:"total_conversations"`
	TotalMessages      int64   `json:"total_messages"`
	TotalTokensUsed    int64   `json:"total_tokens_used"`
	TotalCost          float64 `json:"total_cost"`
	APIKeysCount       int64   `json:"api_keys_count"`
}
