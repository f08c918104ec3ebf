package request

import "time"

type AssignRoleRequest struct {
	RoleCode  string     `json:"role_code" binding:"required"`
	ExpiresAt *time.Time `json:"expires_at"`
	Reason    string     `json:"reason" binding:"max=255"`
}
