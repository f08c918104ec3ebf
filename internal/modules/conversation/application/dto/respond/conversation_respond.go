package respond

type ConversationStats struct {
	TotalConversations             int64   `json:"total_conversations"`
	ActiveConversations            int64   `json:"active_conversations"`
	TotalMessages                  int64   `json:"total_messages"`
	TotalTokens                    int64   `json:"total_tokens"`
	TotalCost                      float64 `json:"total_cost"`
	AverageMessagesPerConversation float64 `json:"average_messages_per_conversation"`
}

type ChatRespond struct {
	ConversationId int64   `json:"conversation_id"`
	MessageId      int64   `json:"message_id"`
	Content        string  `json:"content"`
	TokensUsed     int64   `json:"tokens_used"`
	Cost           float64 `json:"cost"`
	ProcessingTime float64 `json:"processing_time"`
}
