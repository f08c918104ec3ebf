package repository

import (
	"context"
	"time"

	"AgentPedia/internal/modules/apikey/domain/entity"
)

type APIKeyStats struct {
	TotalKeys   int64
	ActiveKeys  int64
	ExpiredKeys int64
	RevokedKeys int64
	TotalUsage  int64
}

type APIKeyRepository interface {
	CreateAPIKey(ctx context.Context, key *entity.APIKey) error
	GetAPIKeyById(ctx context.Context, id int64) (*entity.APIKey, error)
	GetAPIKeyByHash(ctx context.Context, hash string) (*entity.APIKey, error)
	UpdateAPIKey(ctx context.Context, id int64, fields map[string]interface{}) error
	DeleteAPIKey(ctx context.Context, id int64) error
	ListAPIKeys(ctx context.Context, userID int64, status string, offset, limit int) ([]entity.APIKey, int64, error)
	CountNonRevoked(ctx context.Context, userID int64) (int64, error)
	Stats(ctx context.Context, userID int64, now time.Time) (*APIKeyStats, error)
	RecordUsage(ctx context.Context, id int64, ip string, at time.Time) error
}

// Window 固定窗口
type Window struct {
	Name   string
	Length time.Duration
	Limit  int
}

// WindowState 当前窗口的用量
type WindowState struct {
	Window
	Used    int64
	ResetAt time.Time
}

func (s WindowState) Remaining() int64 {
	if r := int64(s.Limit) - s.Used; r > 0 {
		return r
	}
	return 0
}

// RateLimiter 按 key 计数的固定窗口限流
type RateLimiter interface {
	// Take 所有窗口均有余量时计数加一并返回 true，否则不计数
	Take(ctx context.Context, keyID int64, windows []Window, now time.Time) (bool, []WindowState, error)
	Peek(ctx context.Context, keyID int64, windows []Window, now time.Time) ([]WindowState, error)
	Reset(ctx context.Context, keyID int64, windows []Window, now time.Time) error
}
