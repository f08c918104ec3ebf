package repository

import (
	"context"
	"time"

	"AgentPedia/internal/modules/rbac/domain/entity"
)

type RBACRepository interface {
	// EnsurePermission 按 code 查找，不存在则创建
	EnsurePermission(ctx context.Context, p *entity.Permission) (*entity.Permission, error)
	// EnsureRole 按 code 查找，不存在则创建并绑定权限
	EnsureRole(ctx context.Context, role *entity.Role, permissionCodes []string) (*entity.Role, error)
	GetRoleByCode(ctx context.Context, code string) (*entity.Role, error)
	ListRoles(ctx context.Context) ([]entity.Role, error)

	FindActiveAssignment(ctx context.Context, userID, roleID int64) (*entity.UserRoleAssignment, error)
	CreateAssignment(ctx context.Context, a *entity.UserRoleAssignment) error
	DeactivateAssignment(ctx context.Context, id int64) error
	// ValidAssignments 激活且未过期的分配，预加载角色及其权限
	ValidAssignments(ctx context.Context, userID int64, now time.Time) ([]entity.UserRoleAssignment, error)
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}
