package entity

import (
	"strconv"
	"time"
)

// Favorite 用户收藏的目录 Agent，(user_id, agent_id) 唯一
type Favorite struct {
	ID        string    `bson:"_id" json:"id"`
	UserID    int64     `bson:"user_id" json:"user_id"`
	AgentID   string    `bson:"agent_id" json:"agent_id"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// KeyOf 由 user/agent 派生主键，重复收藏落在同一文档上
func KeyOf(userID int64, agentID string) string {
	return strconv.FormatInt(userID, 10) + ":" + agentID
}
