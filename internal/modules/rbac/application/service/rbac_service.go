package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"AgentPedia/internal/modules/rbac/domain/entity"
	"AgentPedia/internal/modules/rbac/domain/repository"
	"AgentPedia/pkg/xerr"
	"AgentPedia/pkg/zlog"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type RBACService interface {
	// InitializeDefaults 写入全部 resource.action 权限与内置角色，可重复执行
	InitializeDefaults(ctx context.Context) error
	AssignRole(ctx context.Context, userID int64, roleCode string, grantedBy int64, expiresAt *time.Time, reason string) (*entity.UserRoleAssignment, error)
	RevokeRole(ctx context.Context, userID int64, roleCode string) (bool, error)
	GetUserPermissions(ctx context.Context, userID int64) ([]string, error)
	CheckPermission(ctx context.Context, userID int64, code string) (bool, error)
	ListRoles(ctx context.Context) ([]entity.Role, error)
	CleanupExpiredAssignments(ctx context.Context) (int64, error)
}

type rbacServiceImpl struct {
	repo repository.RBACRepository
	now  func() time.Time
}

func NewRBACService(repo repository.RBACRepository) RBACService {
	return &rbacServiceImpl{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

func (s *rbacServiceImpl) InitializeDefaults(ctx context.Context) error {
	perms := []entity.Permission{{
		Name: "all", Code: entity.PermissionAll, Description: "所有权限", IsSystem: true,
	}}
	for _, res := range entity.Resources {
		for _, act := range entity.Actions {
			perms = append(perms, entity.Permission{
				Name:        res + " " + act,
				Code:        entity.PermissionCode(res, act),
				Resource:    res,
				Action:      act,
				Description: fmt.Sprintf("权限：%s %s", res, act),
				IsSystem:    true,
			})
		}
	}
	for i := range perms {
		if _, err := s.repo.EnsurePermission(ctx, &perms[i]); err != nil {
			zlog.Error("初始化权限失败", zap.Error(err), zap.String("code", perms[i].Code))
			return err
		}
	}
	for _, d := range entity.DefaultRoles {
		role := &entity.Role{
			Name:        d.Code,
			Code:        d.Code,
			DisplayName: d.DisplayName,
			Description: d.Description,
			Level:       d.Level,
			IsSystem:    true,
			IsActive:    true,
			MaxAPIKeys:  d.MaxAPIKeys,
			MaxAgents:   d.MaxAgents,
		}
		if _, err := s.repo.EnsureRole(ctx, role, d.Permissions); err != nil {
			zlog.Error("初始化角色失败", zap.Error(err), zap.String("role", d.Code))
			return err
		}
	}
	zlog.Info("RBAC 默认权限与角色已就绪", zap.Int("permissions", len(perms)), zap.Int("roles", len(entity.DefaultRoles)))
	return nil
}

func (s *rbacServiceImpl) role(ctx context.Context, code string) (*entity.Role, error) {
	role, err := s.repo.GetRoleByCode(ctx, code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, xerr.NotFoundf("角色不存在: %s", code)
	}
	if err != nil {
		zlog.Error("查询角色失败", zap.Error(err), zap.String("role", code))
		return nil, xerr.ErrServerError
	}
	return role, nil
}

// AssignRole 已有有效分配时直接返回
func (s *rbacServiceImpl) AssignRole(ctx context.Context, userID int64, roleCode string, grantedBy int64, expiresAt *time.Time, reason string) (*entity.UserRoleAssignment, error) {
	role, err := s.role(ctx, roleCode)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.FindActiveAssignment(ctx, userID, role.Id)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		zlog.Error("查询角色分配失败", zap.Error(err), zap.Int64("user_id", userID))
		return nil, xerr.ErrServerError
	}
	if existing != nil && existing.Valid(s.now()) {
		return existing, nil
	}
	a := &entity.UserRoleAssignment{
		UserId:    userID,
		RoleId:    role.Id,
		GrantedBy: grantedBy,
		ExpiresAt: expiresAt,
		Reason:    reason,
		IsActive:  true,
	}
	if err := s.repo.CreateAssignment(ctx, a); err != nil {
		zlog.Error("分配角色失败", zap.Error(err), zap.Int64("user_id", userID), zap.String("role", roleCode))
		return nil, xerr.ErrServerError
	}
	a.Role = *role
	zlog.Info("分配角色", zap.Int64("user_id", userID), zap.String("role", roleCode), zap.Int64("granted_by", grantedBy))
	return a, nil
}

func (s *rbacServiceImpl) RevokeRole(ctx context.Context, userID int64, roleCode string) (bool, error) {
	role, err := s.role(ctx, roleCode)
	if err != nil {
		return false, err
	}
	a, err := s.repo.FindActiveAssignment(ctx, userID, role.Id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		zlog.Error("查询角色分配失败", zap.Error(err), zap.Int64("user_id", userID))
		return false, xerr.ErrServerError
	}
	if err := s.repo.DeactivateAssignment(ctx, a.Id); err != nil {
		zlog.Error("撤销角色失败", zap.Error(err), zap.Int64("user_id", userID), zap.String("role", roleCode))
		return false, xerr.ErrServerError
	}
	return true, nil
}

// GetUserPermissions 所有有效分配中激活角色的权限并集
func (s *rbacServiceImpl) GetUserPermissions(ctx context.Context, userID int64) ([]string, error) {
	list, err := s.repo.ValidAssignments(ctx, userID, s.now())
	if err != nil {
		zlog.Error("查询用户权限失败", zap.Error(err), zap.Int64("user_id", userID))
		return nil, xerr.ErrServerError
	}
	seen := map[string]struct{}{}
	out := make([]string, 0)
	for _, a := range list {
		if !a.Role.IsActive {
			continue
		}
		for _, p := range a.Role.Permissions {
			if _, ok := seen[p.Code]; ok {
				continue
			}
			seen[p.Code] = struct{}{}
			out = append(out, p.Code)
		}
	}
	return out, nil
}

func (s *rbacServiceImpl) CheckPermission(ctx context.Context, userID int64, code string) (bool, error) {
	perms, err := s.GetUserPermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p == entity.PermissionAll || p == code {
			return true, nil
		}
	}
	return false, nil
}

func (s *rbacServiceImpl) ListRoles(ctx context.Context) ([]entity.Role, error) {
	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		zlog.Error("查询角色列表失败", zap.Error(err))
		return nil, xerr.ErrServerError
	}
	return roles, nil
}

func (s *rbacServiceImpl) CleanupExpiredAssignments(ctx context.Context) (int64, error) {
	n, err := s.repo.DeactivateExpired(ctx, s.now())
	if err != nil {
		zlog.Error("清理过期角色分配失败", zap.Error(err))
		return 0, xerr.ErrServerError
	}
	if n > 0 {
		zlog.Info("清理过期角色分配", zap.Int64("count", n))
	}
	return n, nil
}
