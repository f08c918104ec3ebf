package persistence

import (
	"context"

	"AgentPedia/internal/modules/user/domain/entity"
	"AgentPedia/internal/modules/user/domain/repository"
	"AgentPedia/pkg/util"

	"gorm.io/gorm"
)

type userInfoRepositoryImpl struct {
	db *gorm.DB
}

func NewUserInfoRepository(db *gorm.DB) repository.UserInfoRepository {
	return &userInfoRepositoryImpl{db: db}
}

func (r *userInfoRepositoryImpl) CreateUserInfo(ctx context.Context, user *entity.UserInfo) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userInfoRepositoryImpl) GetUserInfoById(ctx context.Context, id int64) (*entity.UserInfo, error) {
	var user entity.UserInfo
	// First 查不到会返回 ErrRecordNotFound
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userInfoRepositoryImpl) GetUserInfoByUsernameOrEmail(ctx context.Context, username, email string) (*entity.UserInfo, error) {
	var user entity.UserInfo
	err := r.db.WithContext(ctx).
		Where("username = ? OR email = ?", username, email).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userInfoRepositoryImpl) GetUserInfoByUsername(ctx context.Context, username string) (*entity.UserInfo, error) {
	var user entity.UserInfo
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userInfoRepositoryImpl) UpdateUserInfo(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&entity.UserInfo{}).Where("id = ?", id).Updates(fields).Error
}

func (r *userInfoRepositoryImpl) ListUserInfo(ctx context.Context, f repository.UserFilter, offset, limit int) ([]entity.UserInfo, int64, error) {
	q := r.db.WithContext(ctx).Model(&entity.UserInfo{})
	if f.Search != "" {
		like := util.LikeContains(f.Search)
		q = q.Where("username LIKE ? ESCAPE '!' OR email LIKE ? ESCAPE '!' OR full_name LIKE ? ESCAPE '!'", like, like, like)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
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
	users := make([]entity.UserInfo, 0)
	err := q.Order("created_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&users).Error
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *userInfoRepositoryImpl) DeleteUserInfo(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&entity.UserInfo{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
