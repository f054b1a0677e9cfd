package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const RedisAlertKeyPrefix = "alert:sent:"

// AlertTracker remembers which alerts already went out on a given day.
// Entries expire on their own, nothing is held for the process lifetime.
type AlertTracker interface {
	// MarkIfFirst records (kind, key) for day and reports whether this call
	// was the first to do so.
	MarkIfFirst(ctx context.Context, kind, key string, day time.Time) (bool, error)
}

func alertKey(kind, key string, day time.Time) string {
	return fmt.Sprintf("%s%s:%s:%s", RedisAlertKeyPrefix, kind, day.Format("20060102"), key)
}

// alertTTL keeps a mark until the end of the day after day.
func alertTTL(day time.Time) time.Duration {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	ttl := time.Until(start.AddDate(0, 0, 2))
	if ttl <= 0 {
		// Past date - short TTL for cleanup
		return time.Minute
	}
	return ttl
}

type RedisAlertTracker struct {
	redisClient *redis.Client
	log         *logrus.Logger
}

func NewRedisAlertTracker(redisClient *redis.Client, log *logrus.Logger) *RedisAlertTracker {
	return &RedisAlertTracker{redisClient: redisClient, log: log}
}

func (t *RedisAlertTracker) MarkIfFirst(ctx context.Context, kind, key string, day time.Time) (bool, error) {
	ok, err := t.redisClient.SetNX(ctx, alertKey(kind, key, day), 1, alertTTL(day)).Result()
	if err != nil {
		t.log.Warnf("Failed to mark alert %s/%s: %+v", kind, key, err)
		return false, fmt.Errorf("mark alert %s/%s: %w", kind, key, err)
	}
	return ok, nil
}

// MemoryAlertTracker is the in-process equivalent, pruned as days pass.
type MemoryAlertTracker struct {
	mu      sync.Mutex
	entries map[string]time.Time // key -> expiry
	now     func() time.Time
}

func NewMemoryAlertTracker() *MemoryAlertTracker {
	return &MemoryAlertTracker{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (t *MemoryAlertTracker) MarkIfFirst(ctx context.Context, kind, key string, day time.Time) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for k, exp := range t.entries {
		if now.After(exp) {
			delete(t.entries, k)
		}
	}

	k := alertKey(kind, key, day)
	if _, seen := t.entries[k]; seen {
		return false, nil
	}
	t.entries[k] = now.Add(alertTTL(day))
	return true, nil
}
