package request

import (
	"time"

	"AgentPedia/pkg/pagination"
)

type RegisterRequest struct {
	Username        string `json:"username" binding:"required,min=3,max=50"`
	Email           string `json:"email" binding:"required,email,max=255"`
	Password        string `json:"password" binding:"required,min=8,max=128"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=Password"`
	FullName        string `json:"full_name" binding:"max=100"`
	Bio             string `json:"bio" binding:"max=500"`
	AvatarUrl       string `json:"avatar_url" binding:"omitempty,url,max=500"`
	Timezone        string `json:"timezone" binding:"max=50"`
	Language        string `json:"language" binding:"max=10"`
	Theme           string `json:"theme" binding:"omitempty,oneof=light dark auto"`
}

// LoginRequest username 可填用户名或邮箱
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type UpdateMeRequest struct {
	FullName  *string `json:"full_name" binding:"omitempty,max=100"`
	Bio       *string `json:"bio" binding:"omitempty,max=500"`
	AvatarUrl *string `json:"avatar_url" binding:"omitempty,max=500"`
	Timezone  *string `json:"timezone" binding:"omitempty,max=50"`
	Language  *string `json:"language" binding:"omitempty,max=10"`
	Theme     *string `json:"theme" binding:"omitempty,oneof=light dark auto"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=128"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=NewPassword"`
}

type ListUsersRequest struct {
	pagination.Query
	Search        string     `form:"search"`
	Status        string     `form:"status" binding:"omitempty,oneof=pending active inactive suspended"`
	Role          string     `form:"role"`
	CreatedAfter  *time.Time `form:"created_after" time_format:"2006-01-02"`
	CreatedBefore *time.Time `form:"created_before" time_format:"2006-01-02"`
}

// AdminUpdateUserRequest 管理员可额外修改角色与状态
type AdminUpdateUserRequest struct {
	UpdateMeRequest
	Role            *string `json:"role" binding:"omitempty,oneof=super_admin admin moderator developer pro_user verified_user user viewer"`
	Status          *string `json:"status" binding:"omitempty,oneof=pending active inactive suspended"`
	IsEmailVerified *bool   `json:"is_email_verified"`
}
