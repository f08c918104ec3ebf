package repository

import (
	"context"
	"time"

	"AgentPedia/internal/modules/user/domain/entity"
)

// UserFilter 管理端列表过滤
type UserFilter struct {
	Search        string
	Status        string
	Role          string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// UserInfoRepository 软删除的用户对所有查询不可见
type UserInfoRepository interface {
	CreateUserInfo(ctx context.Context, user *entity.UserInfo) error
	GetUserInfoById(ctx context.Context, id int64) (*entity.UserInfo, error)
	// GetUserInfoByUsernameOrEmail 任一匹配即返回
	GetUserInfoByUsernameOrEmail(ctx context.Context, username, email string) (*entity.UserInfo, error)
	GetUserInfoByUsername(ctx context.Context, username string) (*entity.UserInfo, error)
	UpdateUserInfo(ctx context.Context, id int64, fields map[string]interface{}) error
	ListUserInfo(ctx context.Context, filter UserFilter, offset, limit int) ([]entity.UserInfo, int64, error)
	DeleteUserInfo(ctx context.Context, id int64) error
}
