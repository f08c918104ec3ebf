package persistence

import (
	"context"
	"time"

	"AgentPedia/internal/modules/agent/domain/entity"
	"AgentPedia/internal/modules/agent/domain/repository"
	"AgentPedia/pkg/util"

	"gorm.io/gorm"
)

type agentRepositoryImpl struct {
	db *gorm.DB
}

func NewAgentRepository(db *gorm.DB) repository.AgentRepository {
	return &agentRepositoryImpl{db: db}
}

func (r *agentRepositoryImpl) CreateAgent(ctx context.Context, agent *entity.Agent) error {
	return r.db.WithContext(ctx).Create(agent).Error
}

func (r *agentRepositoryImpl) GetAgentById(ctx context.Context, id int64, withTools bool) (*entity.Agent, error) {
	var agent entity.Agent
	q := r.db.WithContext(ctx)
	if withTools {
		q = q.Preload("Tools", func(db *gorm.DB) *gorm.DB { return db.Order("id") })
	}
	if err := q.Where("id = ?", id).First(&agent).Error; err != nil {
		return nil, err
	}
	return &agent, nil
}

func (r *agentRepositoryImpl) GetAgentByOwnerAndName(ctx context.Context, ownerID int64, name string) (*entity.Agent, error) {
	var agent entity.Agent
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND name = ?", ownerID, name).
		First(&agent).Error
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

func (r *agentRepositoryImpl) UpdateAgent(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&entity.Agent{}).Where("id = ?", id).Updates(fields).Error
}

// ReplaceTools 删除旧工具后整体写入
func (r *agentRepositoryImpl) ReplaceTools(ctx context.Context, agentID int64, tools []entity.AgentTool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("agent_id = ?", agentID).Delete(&entity.AgentTool{}).Error; err != nil {
			return err
		}
		if len(tools) == 0 {
			return nil
		}
		for i := range tools {
			tools[i].Id = 0
			tools[i].AgentId = agentID
		}
		return tx.Create(&tools).Error
	})
}

func (r *agentRepositoryImpl) SetToolEnabled(ctx context.Context, agentID int64, toolName string, enabled bool) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entity.AgentTool{}).
		Where("agent_id = ? AND tool_name = ?", agentID, toolName).
		Update("is_enabled", enabled)
	return res.RowsAffected > 0, res.Error
}

func (r *agentRepositoryImpl) DeleteAgent(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&entity.Agent{}, id).Error
}

func (r *agentRepositoryImpl) ListAgents(ctx context.Context, f repository.AgentFilter, offset, limit int) ([]entity.Agent, int64, error) {
	q := r.db.WithContext(ctx).Model(&entity.Agent{})
	if f.ViewerID > 0 {
		q = q.Where("visibility = ? OR owner_id = ?", entity.VisibilityPublic, f.ViewerID)
	} else {
		q = q.Where("visibility = ?", entity.VisibilityPublic)
	}
	if f.Search != "" {
		like := util.LikeContains(f.Search)
		q = q.Where("name LIKE ? ESCAPE '!' OR description LIKE ? ESCAPE '!'", like, like)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Visibility != "" {
		q = q.Where("visibility = ?", f.Visibility)
	}
	if f.OwnerID > 0 {
		q = q.Where("owner_id = ?", f.OwnerID)
	}
	if f.CreatedAfter != nil {
		q = q.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		q = q.Where("created_at <= ?", *f.CreatedBefore)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	agents := make([]entity.Agent, 0)
	err := q.Order("created_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&agents).Error
	if err != nil {
		return nil, 0, err
	}
	return agents, total, nil
}

// AddUsage 计数器在数据库侧累加，平均响应时间按累计次数滚动计算
func (r *agentRepositoryImpl) AddUsage(ctx context.Context, id int64, u repository.Usage, at time.Time) error {
	success := 0
	if u.Success {
		success = 1
	}
	conversations := 0
	if u.NewConversation {
		conversations = 1
	}
	return r.db.WithContext(ctx).Model(&entity.Agent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"average_response_time": gorm.Expr("(average_response_time * usage_count + ?) / (usage_count + 1)", u.ResponseTimeMs),
		"success_count":         gorm.Expr("success_count + ?", success),
		"usage_count":           gorm.Expr("usage_count + 1"),
		"total_tokens_used":     gorm.Expr("total_tokens_used + ?", u.Tokens),
		"total_cost":            gorm.Expr("total_cost + ?", u.Cost),
		"total_messages":        gorm.Expr("total_messages + ?", u.NewMessages),
		"total_conversations":   gorm.Expr("total_conversations + ?", conversations),
		"last_used_at":          at,
	}).Error
}

func (r *agentRepositoryImpl) CountByOwner(ctx context.Context, ownerID int64) (int64, int64, error) {
	var total, active int64
	base := r.db.WithContext(ctx).Model(&entity.Agent{}).Where("owner_id = ?", ownerID)
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err := base.Session(&gorm.Session{}).Where("status = ?", entity.StatusActive).Count(&active).Error; err != nil {
		return 0, 0, err
	}
	return total, active, nil
}
