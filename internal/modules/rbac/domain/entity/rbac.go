package entity

import (
	"time"

	"AgentPedia/pkg/caller"
)

// PermissionAll 通配权限
const PermissionAll = "*"

var Resources = []string{
	"user", "role", "permission", "agent", "api_key",
	"conversation", "favorite", "usage_log", "audit_log", "system",
}

var Actions = []string{"create", "read", "update", "delete", "manage"}

// PermissionCode resource.action
func PermissionCode(resource, action string) string {
	return resource + "." + action
}

type Permission struct {
	Id          int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"column:name;type:varchar(100);not null" json:"name"`
	Code        string    `gorm:"column:code;type:varchar(100);uniqueIndex;not null" json:"code"`
	Resource    string    `gorm:"column:resource;type:varchar(50)" json:"resource"`
	Action      string    `gorm:"column:action;type:varchar(50)" json:"action"`
	Description string    `gorm:"column:description;type:varchar(255)" json:"description"`
	IsSystem    bool      `gorm:"column:is_system" json:"is_system"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Permission) TableName() string { return "permissions" }

type Role struct {
	Id          int64        `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name        string       `gorm:"column:name;type:varchar(50);not null" json:"name"`
	Code        string       `gorm:"column:code;type:varchar(50);uniqueIndex;not null" json:"code"`
	DisplayName string       `gorm:"column:display_name;type:varchar(100)" json:"display_name"`
	Description string       `gorm:"column:description;type:varchar(255)" json:"description"`
	Level       int          `gorm:"column:level" json:"level"`
	IsSystem    bool         `gorm:"column:is_system" json:"is_system"`
	IsActive    bool         `gorm:"column:is_active;default:true" json:"is_active"`
	MaxAPIKeys  int          `gorm:"column:max_api_keys" json:"max_api_keys"`
	MaxAgents   int          `gorm:"column:max_agents" json:"max_agents"`
	Permissions []Permission `gorm:"many2many:role_permissions" json:"permissions,omitempty"`
	CreatedAt   time.Time    `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"column:updated_at" json:"updated_at"`
}

func (Role) TableName() string { return "roles" }

type UserRoleAssignment struct {
	Id        int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserId    int64      `gorm:"column:user_id;index;not null" json:"user_id"`
	RoleId    int64      `gorm:"column:role_id;index;not null" json:"role_id"`
	Role      Role       `gorm:"foreignKey:RoleId" json:"role"`
	GrantedBy int64      `gorm:"column:granted_by" json:"granted_by,omitempty"`
	ExpiresAt *time.Time `gorm:"column:expires_at" json:"expires_at,omitempty"`
	Reason    string     `gorm:"column:reason;type:varchar(255)" json:"reason,omitempty"`
	IsActive  bool       `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt time.Time  `gorm:"column:created_at" json:"created_at"`
}

func (UserRoleAssignment) TableName() string { return "user_role_assignments" }

// Valid 激活且未过期
func (a *UserRoleAssignment) Valid(now time.Time) bool {
	return a.IsActive && (a.ExpiresAt == nil || a.ExpiresAt.After(now))
}

// RoleDefault 默认角色定义
type RoleDefault struct {
	Code        string
	DisplayName string
	Description string
	Level       int
	MaxAPIKeys  int
	MaxAgents   int
	Permissions []string
}

var userPermissions = []string{
	"agent.create", "agent.read", "agent.update", "agent.delete",
	"api_key.create", "api_key.read", "api_key.delete",
	"conversation.create", "conversation.read", "conversation.update",
	"favorite.create", "favorite.read", "favorite.delete",
	"usage_log.read",
}

// DefaultRoles 系统内置角色
var DefaultRoles = []RoleDefault{
	{Code: caller.RoleSuperAdmin, DisplayName: "超级管理员", Description: "系统超级管理员，拥有所有权限",
		Level: 100, MaxAPIKeys: 100, MaxAgents: 1000, Permissions: []string{PermissionAll}},
	{Code: caller.RoleAdmin, DisplayName: "管理员", Description: "系统管理员，管理用户和系统配置",
		Level: 90, MaxAPIKeys: 50, MaxAgents: 500, Permissions: []string{
			"user.create", "user.read", "user.update", "user.delete", "user.manage",
			"role.create", "role.read", "role.update", "role.delete",
			"permission.create", "permission.read", "permission.update", "permission.delete",
			"agent.create", "agent.read", "agent.update", "agent.delete", "agent.manage",
			"api_key.create", "api_key.read", "api_key.update", "api_key.delete",
			"conversation.read", "conversation.manage", "favorite.read", "favorite.manage",
			"usage_log.read", "audit_log.read", "system.manage",
		}},
	{Code: caller.RoleModerator, DisplayName: "版主", Description: "内容管理员，管理内容和用户行为",
		Level: 80, MaxAPIKeys: 20, MaxAgents: 100, Permissions: []string{
			"agent.read", "agent.update", "conversation.read", "conversation.manage",
			"api_key.read", "favorite.read", "favorite.manage", "usage_log.read",
		}},
	{Code: caller.RoleDeveloper, DisplayName: "开发者", Description: "开发者，可以创建和管理Agent",
		Level: 70, MaxAPIKeys: 10, MaxAgents: 50, Permissions: []string{
			"agent.create", "agent.read", "agent.update", "agent.delete",
			"api_key.create", "api_key.read", "api_key.delete",
			"conversation.read", "favorite.create", "favorite.read", "favorite.delete",
			"usage_log.read",
		}},
	{Code: caller.RoleProUser, DisplayName: "专业用户", Description: "专业用户，拥有更多高级功能",
		Level: 60, MaxAPIKeys: 8, MaxAgents: 30, Permissions: userPermissions},
	{Code: caller.RoleUser, DisplayName: "普通用户", Description: "普通用户，基本功能权限",
		Level: 50, MaxAPIKeys: 5, MaxAgents: 10, Permissions: userPermissions},
	{Code: caller.RoleVerifiedUser, DisplayName: "已验证用户", Description: "已验证邮箱的用户",
		Level: 40, MaxAPIKeys: 3, MaxAgents: 5, Permissions: []string{
			"agent.read", "conversation.create", "conversation.read",
			"favorite.create", "favorite.read", "favorite.delete", "usage_log.read",
		}},
	{Code: caller.RoleViewer, DisplayName: "只读用户", Description: "只读用户，只能查看内容",
		Level: 30, MaxAPIKeys: 1, MaxAgents: 3, Permissions: []string{"agent.read", "conversation.read", "usage_log.read"}},
}
