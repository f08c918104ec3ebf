package caller

// 角色
const (
	RoleSuperAdmin   = "super_admin"
	RoleAdmin        = "admin"
	RoleModerator    = "moderator"
	RoleDeveloper    = "developer"
	RoleProUser      = "pro_user"
	RoleVerifiedUser = "verified_user"
	RoleUser         = "user"
	RoleViewer       = "viewer"
)

// Caller 当前请求的调用者，UserID 为 0 表示匿名
type Caller struct {
	UserID   int64
	Username string
	Role     string
	// APIKeyID 通过 API Key 鉴权时非 0
	APIKeyID int64
}

func Anonymous() Caller {
	return Caller{}
}

func (c Caller) IsAnonymous() bool {
	return c.UserID == 0
}

func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin || c.Role == RoleSuperAdmin
}

// CanModify 所有者或管理员
func (c Caller) CanModify(ownerID int64) bool {
	if c.IsAnonymous() {
		return false
	}
	return c.UserID == ownerID || c.IsAdmin()
}
