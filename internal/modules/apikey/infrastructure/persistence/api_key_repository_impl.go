package persistence

import (
	"context"
	"time"

	"AgentPedia/internal/modules/apikey/domain/entity"
	"AgentPedia/internal/modules/apikey/domain/repository"

	"gorm.io/gorm"
)

type apiKeyRepositoryImpl struct {
	db *gorm.DB
}

func NewAPIKeyRepository(db *gorm.DB) repository.APIKeyRepository {
	return &apiKeyRepositoryImpl{db: db}
}

func (r *apiKeyRepositoryImpl) CreateAPIKey(ctx context.Context, key *entity.APIKey) error {
	return r.db.WithContext(ctx).Create(key).Error
}

func (r *apiKeyRepositoryImpl) GetAPIKeyById(ctx context.Context, id int64) (*entity.APIKey, error) {
	var key entity.APIKey
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&key).Error; err != nil {
		return nil, err
	}
	return &key, nil
}

func (r *apiKeyRepositoryImpl) GetAPIKeyByHash(ctx context.Context, hash string) (*entity.APIKey, error) {
	var key entity.APIKey
	if err := r.db.WithContext(ctx).Where("key_hash = ?", hash).First(&key).Error; err != nil {
		return nil, err
	}
	return &key, nil
}

func (r *apiKeyRepositoryImpl) UpdateAPIKey(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&entity.APIKey{}).Where("id = ?", id).Updates(fields).Error
}

func (r *apiKeyRepositoryImpl) DeleteAPIKey(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&entity.APIKey{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *apiKeyRepositoryImpl) ListAPIKeys(ctx context.Context, userID int64, status string, offset, limit int) ([]entity.APIKey, int64, error) {
	q := r.db.WithContext(ctx).Model(&entity.APIKey{}).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	keys := make([]entity.APIKey, 0)
	if err := q.Order("created_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&keys).Error; err != nil {
		return nil, 0, err
	}
	return keys, total, nil
}

func (r *apiKeyRepositoryImpl) CountNonRevoked(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entity.APIKey{}).
		Where("user_id = ? AND status <> ?", userID, entity.StatusRevoked).
		Count(&n).Error
	return n, err
}

func (r *apiKeyRepositoryImpl) Stats(ctx context.Context, userID int64, now time.Time) (*repository.APIKeyStats, error) {
	var row struct {
		Total      int64
		Active     int64
		Expired    int64
		Revoked    int64
		TotalUsage int64
	}
	err := r.db.WithContext(ctx).Model(&entity.APIKey{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS active,
			COALESCE(SUM(CASE WHEN expires_at IS NOT NULL AND expires_at < ? THEN 1 ELSE 0 END), 0) AS expired,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS revoked,
			COALESCE(SUM(usage_count), 0) AS total_usage`, entity.StatusActive, now, entity.StatusRevoked).
		Where("user_id = ?", userID).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return &repository.APIKeyStats{
		TotalKeys:   row.Total,
		ActiveKeys:  row.Active,
		ExpiredKeys: row.Expired,
		RevokedKeys: row.Revoked,
		TotalUsage:  row.TotalUsage,
	}, nil
}

func (r *apiKeyRepositoryImpl) RecordUsage(ctx context.Context, id int64, ip string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&entity.APIKey{}).Where("id = ?", id).Updates(map[string]interface{}{
		"usage_count":  gorm.Expr("usage_count + 1"),
		"last_used_at": at,
		"last_used_ip": ip,
	}).Error
}
