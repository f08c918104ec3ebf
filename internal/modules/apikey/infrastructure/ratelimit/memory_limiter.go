package ratelimit

import (
	"context"
	"sync"
	"time"

	"AgentPedia/internal/modules/apikey/domain/repository"
)

type memoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]memBucket
}

type memBucket struct {
	used    int64
	resetAt time.Time
}

// NewMemoryLimiter 单实例部署使用，多实例时计数不共享
func NewMemoryLimiter() repository.RateLimiter {
	return &memoryLimiter{buckets: map[string]memBucket{}}
}

func (l *memoryLimiter) Peek(ctx context.Context, keyID int64, windows []repository.Window, now time.Time) ([]repository.WindowState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.peek(keyID, windows, now), nil
}

func (l *memoryLimiter) peek(keyID int64, windows []repository.Window, now time.Time) []repository.WindowState {
	states := make([]repository.WindowState, 0, len(windows))
	for _, w := range windows {
		key, reset := bucketKey(keyID, w, now)
		states = append(states, repository.WindowState{Window: w, Used: l.buckets[key].used, ResetAt: reset})
	}
	return states
}

func (l *memoryLimiter) Take(ctx context.Context, keyID int64, windows []repository.Window, now time.Time) (bool, []repository.WindowState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(now)
	states := l.peek(keyID, windows, now)
	if exhausted(states) {
		return false, states, nil
	}
	for i := range states {
		key, reset := bucketKey(keyID, states[i].Window, now)
		b := l.buckets[key]
		b.used++
		b.resetAt = reset
		l.buckets[key] = b
		states[i].Used = b.used
	}
	return true, states, nil
}

func (l *memoryLimiter) Reset(ctx context.Context, keyID int64, windows []repository.Window, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, w := range windows {
		key, _ := bucketKey(keyID, w, now)
		delete(l.buckets, key)
	}
	return nil
}

func (l *memoryLimiter) prune(now time.Time) {
	for k, b := range l.buckets {
		if !now.Before(b.resetAt) {
			delete(l.buckets, k)
		}
	}
}
