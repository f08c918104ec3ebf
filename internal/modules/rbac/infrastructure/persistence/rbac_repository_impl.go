package persistence

import (
	"context"
	"errors"
	"time"

	"AgentPedia/internal/modules/rbac/domain/entity"
	"AgentPedia/internal/modules/rbac/domain/repository"

	"gorm.io/gorm"
)

type rbacRepositoryImpl struct {
	db *gorm.DB
}

func NewRBACRepository(db *gorm.DB) repository.RBACRepository {
	return &rbacRepositoryImpl{db: db}
}

func (r *rbacRepositoryImpl) EnsurePermission(ctx context.Context, p *entity.Permission) (*entity.Permission, error) {
	var out entity.Permission
	err := r.db.WithContext(ctx).Where("code = ?", p.Code).Attrs(*p).FirstOrCreate(&out).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *rbacRepositoryImpl) EnsureRole(ctx context.Context, role *entity.Role, permissionCodes []string) (*entity.Role, error) {
	var out entity.Role
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("code = ?", role.Code).First(&out).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		out = *role
		if len(permissionCodes) > 0 {
			if err := tx.Where("code IN ?", permissionCodes).Find(&out.Permissions).Error; err != nil {
				return err
			}
		}
		return tx.Create(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *rbacRepositoryImpl) GetRoleByCode(ctx context.Context, code string) (*entity.Role, error) {
	var role entity.Role
	err := r.db.WithContext(ctx).Preload("Permissions").Where("code = ?", code).First(&role).Error
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *rbacRepositoryImpl) ListRoles(ctx context.Context) ([]entity.Role, error) {
	var roles []entity.Role
	err := r.db.WithContext(ctx).Preload("Permissions").Order("level DESC").Find(&roles).Error
	return roles, err
}

func (r *rbacRepositoryImpl) FindActiveAssignment(ctx context.Context, userID, roleID int64) (*entity.UserRoleAssignment, error) {
	var a entity.UserRoleAssignment
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND role_id = ? AND is_active = ?", userID, roleID, true).
		Order("id DESC").
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *rbacRepositoryImpl) CreateAssignment(ctx context.Context, a *entity.UserRoleAssignment) error {
	return r.db.WithContext(ctx).Omit("Role").Create(a).Error
}

func (r *rbacRepositoryImpl) DeactivateAssignment(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&entity.UserRoleAssignment{}).
		Where("id = ?", id).
		Update("is_active", false).Error
}

func (r *rbacRepositoryImpl) ValidAssignments(ctx context.Context, userID int64, now time.Time) ([]entity.UserRoleAssignment, error) {
	var list []entity.UserRoleAssignment
	err := r.db.WithContext(ctx).
		Preload("Role.Permissions").
		Where("user_id = ? AND is_active = ?", userID, true).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Find(&list).Error
	return list, err
}

func (r *rbacRepositoryImpl) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&entity.UserRoleAssignment{}).
		Where("is_active = ? AND expires_at IS NOT NULL AND expires_at < ?", true, now).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}
