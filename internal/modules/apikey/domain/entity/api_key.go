package entity

import "time"

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusRevoked  = "revoked"
)

const (
	ScopeRead  = "read"
	ScopeWrite = "write"
	ScopeAdmin = "admin"
)

// APIKey 明文只在创建时返回一次，库中保存 sha256 与前 8 位
type APIKey struct {
	Id                 int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserId             int64      `gorm:"column:user_id;not null;index" json:"user_id"`
	Name               string     `gorm:"column:name;type:varchar(100);not null" json:"name"`
	Description        string     `gorm:"column:description;type:varchar(500)" json:"description"`
	KeyHash            string     `gorm:"column:key_hash;type:char(64);uniqueIndex" json:"-"`
	Prefix             string     `gorm:"column:prefix;type:varchar(8)" json:"prefix"`
	Scopes             []string   `gorm:"column:scopes;serializer:json" json:"scopes"`
	Status             string     `gorm:"column:status;type:varchar(20);index" json:"status"`
	RateLimitPerMinute int        `gorm:"column:rate_limit_per_minute" json:"rate_limit_per_minute"`
	RateLimitPerHour   int        `gorm:"column:rate_limit_per_hour" json:"rate_limit_per_hour"`
	RateLimitPerDay    int        `gorm:"column:rate_limit_per_day" json:"rate_limit_per_day"`
	UsageCount         int64      `gorm:"column:usage_count" json:"usage_count"`
	LastUsedAt         *time.Time `gorm:"column:last_used_at" json:"last_used_at,omitempty"`
	LastUsedIp         string     `gorm:"column:last_used_ip;type:varchar(45)" json:"last_used_ip,omitempty"`
	ExpiresAt          *time.Time `gorm:"column:expires_at" json:"expires_at,omitempty"`
	CreatedAt          time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (APIKey) TableName() string { return "api_keys" }

func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && k.ExpiresAt.Before(now)
}

// Usable 激活且未过期
func (k *APIKey) Usable(now time.Time) bool {
	return k.Status == StatusActive && !k.Expired(now)
}

// Allows admin 覆盖全部，写操作需要 write
func (k *APIKey) Allows(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope || s == ScopeAdmin {
			return true
		}
	}
	return false
}
