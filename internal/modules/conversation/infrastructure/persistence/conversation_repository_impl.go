package persistence

import (
	"context"

	"AgentPedia/internal/modules/conversation/domain/entity"
	"AgentPedia/internal/modules/conversation/domain/repository"
	"AgentPedia/pkg/util"

	"gorm.io/gorm"
)

type conversationRepositoryImpl struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) repository.ConversationRepository {
	return &conversationRepositoryImpl{db: db}
}

func (r *conversationRepositoryImpl) CreateConversation(ctx context.Context, conv *entity.Conversation) error {
	return r.db.WithContext(ctx).Create(conv).Error
}

func (r *conversationRepositoryImpl) GetConversationById(ctx context.Context, id int64) (*entity.Conversation, error) {
	var conv entity.Conversation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepositoryImpl) ListConversations(ctx context.Context, f repository.ConversationFilter, offset, limit int) ([]entity.Conversation, int64, error) {
	q := r.db.WithContext(ctx).Model(&entity.Conversation{}).Where("user_id = ?", f.UserID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	} else {
		q = q.Where("status <> ?", entity.StatusDeleted)
	}
	if f.AgentID > 0 {
		q = q.Where("agent_id = ?", f.AgentID)
	}
	if f.Search != "" {
		q = q.Where("title LIKE ? ESCAPE '!'", util.LikeContains(f.Search))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	convs := make([]entity.Conversation, 0)
	err := q.Order("updated_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&convs).Error
	if err != nil {
		return nil, 0, err
	}
	return convs, total, nil
}

func (r *conversationRepositoryImpl) UpdateConversation(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&entity.Conversation{}).Where("id = ?", id).Updates(fields).Error
}

func (r *conversationRepositoryImpl) MarkDeleted(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&entity.Conversation{}).Where("id = ?", id).Update("status", entity.StatusDeleted).Error
		if err != nil {
			return err
		}
		return tx.Where("conversation_id = ?", id).Delete(&entity.Message{}).Error
	})
}

func (r *conversationRepositoryImpl) Stats(ctx context.Context, userID int64) (*repository.ConversationStats, error) {
	var row struct {
		Total    int64
		Active   int64
		Messages int64
		Tokens   int64
		Cost     float64
	}
	err := r.db.WithContext(ctx).Model(&entity.Conversation{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS active,
			COALESCE(SUM(message_count), 0) AS messages,
			COALESCE(SUM(total_tokens), 0) AS tokens,
			COALESCE(SUM(total_cost), 0) AS cost`, entity.StatusActive).
		Where("user_id = ? AND status <> ?", userID, entity.StatusDeleted).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return &repository.ConversationStats{
		TotalConversations:  row.Total,
		ActiveConversations: row.Active,
		TotalMessages:       row.Messages,
		TotalTokens:         row.Tokens,
		TotalCost:           row.Cost,
	}, nil
}

func (r *conversationRepositoryImpl) CreateMessage(ctx context.Context, msg *entity.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&entity.Conversation{}).Where("id = ?", msg.ConversationId).Updates(map[string]interface{}{
			"message_count":   gorm.Expr("message_count + 1"),
			"total_tokens":    gorm.Expr("total_tokens + ?", msg.TokensUsed),
			"total_cost":      gorm.Expr("total_cost + ?", msg.Cost),
			"last_message_at": msg.CreatedAt,
		}).Error
	})
}

func (r *conversationRepositoryImpl) GetMessageById(ctx context.Context, id int64) (*entity.Message, error) {
	var msg entity.Message
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *conversationRepositoryImpl) ListMessages(ctx context.Context, conversationID int64, offset, limit int) ([]entity.Message, int64, error) {
	q := r.db.WithContext(ctx).Model(&entity.Message{}).Where("conversation_id = ?", conversationID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	msgs := make([]entity.Message, 0)
	if err := q.Order("created_at").Order("id").Offset(offset).Limit(limit).Find(&msgs).Error; err != nil {
		return nil, 0, err
	}
	return msgs, total, nil
}

func (r *conversationRepositoryImpl) RecentMessages(ctx context.Context, conversationID int64, n int) ([]entity.Message, error) {
	msgs := make([]entity.Message, 0, n)
	err := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).
		Order("created_at DESC").Order("id DESC").Limit(n).Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *conversationRepositoryImpl) UpdateMessage(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&entity.Message{}).Where("id = ?", id).Updates(fields).Error
}

func (r *conversationRepositoryImpl) DeleteMessage(ctx context.Context, msg *entity.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&entity.Message{}, msg.Id).Error; err != nil {
			return err
		}
		return tx.Model(&entity.Conversation{}).
			Where("id = ? AND message_count > 0", msg.ConversationId).
			Update("message_count", gorm.Expr("message_count - 1")).Error
	})
}
