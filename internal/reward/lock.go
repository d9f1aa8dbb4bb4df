package reward

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serializes balance updates per user.
type Locker interface {
	// Lock acquires every key and returns a function releasing them.
	Lock(ctx context.Context, keys ...string) (func(), error)
}

// NopLocker performs no locking. Concurrent updates to one balance may be lost.
type NopLocker struct{}

// Lock returns immediately.
func (NopLocker) Lock(context.Context, ...string) (func(), error) {
	return func() {}, nil
}

// ErrLockTimeout is returned when a lock cannot be acquired in time.
var ErrLockTimeout = errors.New("timed out waiting for balance lock")

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript renews the key's expiry only if it still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX and token-checked release.
// Held locks are renewed every ttl/3 until released, so a slow identity
// store call cannot outlive the lock.
type RedisLocker struct {
	client  *redis.Client
	ttl     time.Duration
	wait    time.Duration
	retry   time.Duration
	refresh time.Duration
}

// NewRedisLocker creates a locker. ttl bounds how long a crashed holder blocks
// others; wait bounds how long Lock polls.
func NewRedisLocker(client *redis.Client, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, wait: wait, retry: 25 * time.Millisecond, refresh: ttl / 3}
}

// Lock acquires the keys in sorted order so concurrent transfers cannot deadlock.
func (l *RedisLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	sorted := uniqueSorted(keys)
	token := uuid.NewString()

	var held []string
	release := func() {
		// Release with a fresh context so a cancelled request still unlocks
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for _, k := range held {
			_ = releaseScript.Run(rctx, l.client, []string{k}, token).Err()
		}
	}

	deadline := time.Now().Add(l.wait)
	for _, key := range sorted {
		if err := l.acquire(ctx, key, token, deadline); err != nil {
			release()
			return nil, err
		}
		held = append(held, key)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.keepAlive(done, held, token)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
			release()
		})
	}, nil
}

// keepAlive renews the held keys until done is closed. A key that no longer
// holds token is left alone.
func (l *RedisLocker) keepAlive(done <-chan struct{}, keys []string, token string) {
	if l.refresh <= 0 {
		return
	}
	ticker := time.NewTicker(l.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.refresh)
			for _, k := range keys {
				if err := extendScript.Run(ctx, l.client, []string{k}, token, l.ttl.Milliseconds()).Err(); err != nil {
					slog.Warn("extending balance lock failed", "key", k, "error", err)
				}
			}
			cancel()
		}
	}
}

func (l *RedisLocker) acquire(ctx context.Context, key, token string, deadline time.Time) error {
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquiring lock %s: %w", key, err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s", ErrLockTimeout, key)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

func uniqueSorted(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func lockKey(userID string) string {
	return "propchain:lock:coins:" + userID
}
