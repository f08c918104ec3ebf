// Package redis 固定窗口计数辅助
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var errNotConnected = errors.New("redis 未连接")

// IncrWindow 固定窗口计数，key 需包含窗口序号
func IncrWindow(ctx context.Context, c redis.Cmdable, key string, window time.Duration) (int64, error) {
	if c == nil {
		return 0, errNotConnected
	}
	pipe := c.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// GetInt 读取计数，键不存在返回 0
func GetInt(ctx context.Context, c redis.Cmdable, key string) (int64, error) {
	if c == nil {
		return 0, errNotConnected
	}
	n, err := c.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}
