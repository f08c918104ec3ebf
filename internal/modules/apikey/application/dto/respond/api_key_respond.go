package respond

import (
	"time"

	"AgentPedia/internal/modules/apikey/domain/entity"
)

// APIKeyCreated Key 为明文，仅此一次返回
type APIKeyCreated struct {
	*entity.APIKey
	Key string `json:"key"`
}

type APIKeyStats struct {
	TotalKeys   int64 `json:"total_keys"`
	ActiveKeys  int64 `json:"active_keys"`
	ExpiredKeys int64 `json:"expired_keys"`
	RevokedKeys int64 `json:"revoked_keys"`
	TotalUsage  int64 `json:"total_usage"`
}

type RateLimitInfo struct {
	LimitPerMinute     int       `json:"limit_per_minute"`
	LimitPerHour       int       `json:"limit_per_hour"`
	LimitPerDay        int       `json:"limit_per_day"`
	RemainingPerMinute int64     `json:"remaining_per_minute"`
	RemainingPerHour   int64     `json:"remaining_per_hour"`
	RemainingPerDay    int64     `json:"remaining_per_day"`
	ResetTimeMinute    time.Time `json:"reset_time_minute"`
	ResetTimeHour      time.Time `json:"reset_time_hour"`
	ResetTimeDay       time.Time `json:"reset_time_day"`
}

type APIKeyUsage struct {
	KeyId              int64         `json:"key_id"`
	KeyName            string        `json:"key_name"`
	UsageCount         int64         `json:"usage_count"`
	LastUsedAt         *time.Time    `json:"last_used_at"`
	RateLimitRemaining RateLimitInfo `json:"rate_limit_remaining"`
}

// RateLimitDecision Allowed 为 false 时 Reason 说明原因
type RateLimitDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	RateLimitInfo
}
