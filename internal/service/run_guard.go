package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrRunInProgress is returned when another holder owns the guard.
var ErrRunInProgress = errors.New("run already in progress")

// releaseGuardScript deletes the key only if it still holds our token, so a
// run that outlived its TTL cannot release a newer holder's guard.
var releaseGuardScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

const (
	RedisRunGuardKeyPrefix = "run_guard:"

	guardReleaseTimeout  = 5 * time.Second
	guardCleanupInterval = 10 * time.Minute
	guardStaleThreshold  = 10 * time.Minute
)

// RunGuard allows a single in-flight run per name.
type RunGuard interface {
	// Acquire returns a release func, or ErrRunInProgress.
	Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error)
}

// RedisRunGuard shares the guard across every instance using SET NX PX.
type RedisRunGuard struct {
	redisClient *redis.Client
	log         *logrus.Logger
}

func NewRedisRunGuard(redisClient *redis.Client, log *logrus.Logger) *RedisRunGuard {
	return &RedisRunGuard{redisClient: redisClient, log: log}
}

func (g *RedisRunGuard) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	key := RedisRunGuardKeyPrefix + name
	token := uuid.NewString()

	ok, err := g.redisClient.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		g.log.Warnf("Failed to acquire run guard %s: %+v", name, err)
		return nil, fmt.Errorf("acquire run guard %s: %w", name, err)
	}
	if !ok {
		return nil, ErrRunInProgress
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), guardReleaseTimeout)
		defer cancel()
		if err := releaseGuardScript.Run(ctx, g.redisClient, []string{key}, token).Err(); err != nil {
			g.log.Warnf("Failed to release run guard %s (expires on its own): %+v", name, err)
		}
	}
	return release, nil
}

// LocalRunGuard keeps the guard in process memory. Used when a single
// instance runs the job, and in tests.
//
// Idle entries are removed by a background goroutine; call Stop during
// shutdown.
type LocalRunGuard struct {
	log    *logrus.Logger
	guards sync.Map // map[string]*mutexWithTimestamp

	stopChan chan struct{}
	wg       sync.WaitGroup
	stopped  atomic.Bool
}

// mutexWithTimestamp tracks mutex usage for cleanup
type mutexWithTimestamp struct {
	mu       sync.Mutex
	lastUsed atomic.Int64 // Unix timestamp
}

func NewLocalRunGuard(log *logrus.Logger) *LocalRunGuard {
	g := &LocalRunGuard{
		log:      log,
		stopChan: make(chan struct{}),
	}

	g.wg.Add(1)
	go g.cleanupLoop()

	return g
}

// Acquire ignores ttl, a local guard lives exactly as long as its holder.
func (g *LocalRunGuard) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	var mt *mutexWithTimestamp
	for {
		v, _ := g.guards.LoadOrStore(name, &mutexWithTimestamp{})
		mt = v.(*mutexWithTimestamp)
		mt.lastUsed.Store(time.Now().Unix())

		if !mt.mu.TryLock() {
			return nil, ErrRunInProgress
		}
		// cleanupStale may have dropped the entry between LoadOrStore and
		// TryLock; a lock on a detached mutex excludes nobody
		if current, ok := g.guards.Load(name); ok && current == v {
			break
		}
		mt.mu.Unlock()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			mt.lastUsed.Store(time.Now().Unix())
			mt.mu.Unlock()
		})
	}, nil
}

// Stop gracefully shuts down the cleanup goroutine.
// Safe to call multiple times.
func (g *LocalRunGuard) Stop() {
	if g.stopped.CompareAndSwap(false, true) {
		close(g.stopChan)
		g.wg.Wait()
	}
}

func (g *LocalRunGuard) cleanupLoop() {
	defer g.wg.Done()

	ticker := time.NewTicker(guardCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stopChan:
			return
		case <-ticker.C:
			g.cleanupStale()
		}
	}
}

// cleanupStale checks lastUsed while holding the lock so a concurrent
// Acquire cannot be dropped between the check and the delete.
func (g *LocalRunGuard) cleanupStale() {
	cutoff := time.Now().Add(-guardStaleThreshold).Unix()
	var cleaned int

	g.guards.Range(func(key, value any) bool {
		mt, ok := value.(*mutexWithTimestamp)
		if !ok {
			return true
		}
		if mt.mu.TryLock() {
			if mt.lastUsed.Load() < cutoff && g.guards.CompareAndDelete(key, value) {
				cleaned++
			}
			mt.mu.Unlock()
		}
		return true
	})

	if cleaned > 0 {
		g.log.Debugf("Cleaned up %d idle run guards", cleaned)
	}
}
