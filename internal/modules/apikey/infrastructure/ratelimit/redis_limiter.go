// Package ratelimit API Key 固定窗口限流，计数保存在 Redis，未配置 Redis 时退化为进程内计数
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"AgentPedia/internal/modules/apikey/domain/repository"
	rds "AgentPedia/pkg/redis"

	"github.com/redis/go-redis/v9"
)

type redisLimiter struct {
	c redis.Cmdable
}

func NewRedisLimiter(c redis.Cmdable) repository.RateLimiter {
	return &redisLimiter{c: c}
}

// bucketKey 窗口起点写入 key，窗口切换即自然重置
func bucketKey(keyID int64, w repository.Window, now time.Time) (string, time.Time) {
	start := now.UTC().Truncate(w.Length)
	return fmt.Sprintf("apikey:rl:%d:%s:%d", keyID, w.Name, start.Unix()), start.Add(w.Length)
}

func (l *redisLimiter) Peek(ctx context.Context, keyID int64, windows []repository.Window, now time.Time) ([]repository.WindowState, error) {
	states := make([]repository.WindowState, 0, len(windows))
	for _, w := range windows {
		key, reset := bucketKey(keyID, w, now)
		used, err := rds.GetInt(ctx, l.c, key)
		if err != nil {
			return nil, err
		}
		states = append(states, repository.WindowState{Window: w, Used: used, ResetAt: reset})
	}
	return states, nil
}

func (l *redisLimiter) Take(ctx context.Context, keyID int64, windows []repository.Window, now time.Time) (bool, []repository.WindowState, error) {
	states, err := l.Peek(ctx, keyID, windows, now)
	if err != nil {
		return false, nil, err
	}
	if exhausted(states) {
		return false, states, nil
	}
	for i := range states {
		key, _ := bucketKey(keyID, states[i].Window, now)
		used, err := rds.IncrWindow(ctx, l.c, key, states[i].Length)
		if err != nil {
			return false, nil, err
		}
		states[i].Used = used
	}
	return true, states, nil
}

func (l *redisLimiter) Reset(ctx context.Context, keyID int64, windows []repository.Window, now time.Time) error {
	keys := make([]string, 0, len(windows))
	for _, w := range windows {
		key, _ := bucketKey(keyID, w, now)
		keys = append(keys, key)
	}
	return l.c.Del(ctx, keys...).Err()
}

func exhausted(states []repository.WindowState) bool {
	for _, s := range states {
		if s.Limit > 0 && s.Used >= int64(s.Limit) {
			return true
		}
	}
	return false
}
