package repository

import (
	"context"
	"time"

	"AgentPedia/internal/modules/agent/domain/entity"
)

// AgentFilter ViewerID 为 0 时只返回公开 Agent，否则额外包含其本人的 Agent
type AgentFilter struct {
	ViewerID      int64
	Search        string
	Type          string
	Status        string
	Visibility    string
	OwnerID       int64
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// Usage 一次调用的统计增量
type Usage struct {
	Tokens          int64
	Cost            float64
	ResponseTimeMs  float64
	Success         bool
	NewMessages     int64
	NewConversation bool
}

type AgentRepository interface {
	// CreateAgent 同时写入 agent.Tools
	CreateAgent(ctx context.Context, agent *entity.Agent) error
	GetAgentById(ctx context.Context, id int64, withTools bool) (*entity.Agent, error)
	// GetAgentByOwnerAndName 只匹配未删除的行
	GetAgentByOwnerAndName(ctx context.Context, ownerID int64, name string) (*entity.Agent, error)
	UpdateAgent(ctx context.Context, id int64, fields map[string]interface{}) error
	ReplaceTools(ctx context.Context, agentID int64, tools []entity.AgentTool) error
	SetToolEnabled(ctx context.Context, agentID int64, toolName string, enabled bool) (bool, error)
	DeleteAgent(ctx context.Context, id int64) error
	ListAgents(ctx context.Context, filter AgentFilter, offset, limit int) ([]entity.Agent, int64, error)
	AddUsage(ctx context.Context, id int64, u Usage, at time.Time) error
	CountByOwner(ctx context.Context, ownerID int64) (total int64, active int64, err error)
}
