package entity

import (
	"time"

	"gorm.io/gorm"
)

const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusSuspended = "suspended"
)

type UserInfo struct {
	Id                  int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Username            string         `gorm:"column:username;type:varchar(50);uniqueIndex;not null" json:"username"`
	Email               string         `gorm:"column:email;type:varchar(255);uniqueIndex;not null" json:"email"`
	Password            string         `gorm:"column:password;type:varchar(255);not null" json:"-"`
	FullName            string         `gorm:"column:full_name;type:varchar(100)" json:"full_name"`
	Bio                 string         `gorm:"column:bio;type:varchar(500)" json:"bio"`
	AvatarUrl           string         `gorm:"column:avatar_url;type:varchar(500)" json:"avatar_url"`
	Timezone            string         `gorm:"column:timezone;type:varchar(50);default:UTC" json:"timezone"`
	Language            string         `gorm:"column:language;type:varchar(10);default:en" json:"language"`
	Theme               string         `gorm:"column:theme;type:varchar(20);default:light" json:"theme"`
	Role                string         `gorm:"column:role;type:varchar(30);index;not null" json:"role"`
	Status              string         `gorm:"column:status;type:varchar(20);index;not null" json:"status"`
	IsEmailVerified     bool           `gorm:"column:is_email_verified" json:"is_email_verified"`
	EmailVerifiedAt     *time.Time     `gorm:"column:email_verified_at" json:"email_verified_at,omitempty"`
	LastLoginAt         *time.Time     `gorm:"column:last_login_at" json:"last_login_at,omitempty"`
	LastLoginIp         string         `gorm:"column:last_login_ip;type:varchar(64)" json:"last_login_ip,omitempty"`
	LoginCount          int64          `gorm:"column:login_count" json:"login_count"`
	FailedLoginAttempts int            `gorm:"column:failed_login_attempts" json:"failed_login_attempts"`
	LockedUntil         *time.Time     `gorm:"column:locked_until" json:"locked_until,omitempty"`
	PasswordChangedAt   time.Time      `gorm:"column:password_changed_at" json:"password_changed_at"`
	CreatedAt           time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"column:updated_at" json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (UserInfo) TableName() string { return "users" }

func (u *UserInfo) Locked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

func (u *UserInfo) Active() bool {
	return u.Status == StatusActive
}
